// Package console delivers parts by printing them, one line per part.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/rg/smsrelay/internal/messaging"
)

type Sender struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSender writes to out, or stdout when out is nil.
func NewSender(out io.Writer) *Sender {
	if out == nil {
		out = os.Stdout
	}
	return &Sender{out: out}
}

func (s *Sender) Send(ctx context.Context, part *messaging.OutgoingPart) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintln(s.out, part.Text); err != nil {
		return fmt.Errorf("failed to write part %d of %d: %w", part.Index, part.Total, err)
	}

	slog.Debug("Part written to console", "sms_id", part.SmsID, "part", part.Index, "total", part.Total)
	return nil
}

func (s *Sender) Name() string {
	return "console"
}

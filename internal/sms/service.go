// Package sms sends text messages: it validates a request, segments the
// message with the configuration in force, stores the result and hands
// every part to the delivery channel.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rg/smsrelay/internal/messaging"
	"github.com/rg/smsrelay/internal/metrics"
	"github.com/rg/smsrelay/internal/security"
	"github.com/rg/smsrelay/internal/segment"
	"github.com/rg/smsrelay/internal/smsconfig"
	"github.com/rg/smsrelay/internal/storage"
	"github.com/rg/smsrelay/internal/validate"
)

var (
	// ErrPersist means the message was segmented but could not be stored.
	// Nothing was delivered.
	ErrPersist = errors.New("failed to persist sms")
	// ErrDelivery means the message was stored but at least one part did not
	// reach the delivery channel.
	ErrDelivery = errors.New("failed to deliver sms")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Store persists sent messages.
type Store interface {
	SaveSms(ctx context.Context, sms *storage.Sms) error
	GetSms(ctx context.Context, id string) (*storage.Sms, error)
	ListSms(ctx context.Context, limit int) ([]*storage.Sms, error)
}

// ConfigSource yields the segmentation settings in force.
type ConfigSource interface {
	Current(ctx context.Context) (*storage.Configuration, error)
}

// Request is a message to send.
type Request struct {
	From    string `json:"from" validate:"notblank,phone"`
	To      string `json:"to" validate:"notblank,phone"`
	Message string `json:"message" validate:"notblank"`
}

// Validate reports every invalid field at once as a validate.Errors.
func (r Request) Validate() error {
	return validate.Struct(r)
}

// Record is a stored message as returned to callers.
type Record struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Size     int       `json:"size"`
	Parts    int       `json:"parts"`
	SentDate time.Time `json:"sentDate"`
	Content  []string  `json:"content,omitempty"`
}

// Preview is the segmentation of a message without sending it.
type Preview struct {
	Size           int      `json:"size"`
	Parts          int      `json:"parts"`
	MaxSmsLength   int      `json:"maxSmsLength"`
	SuffixTemplate string   `json:"suffixTemplate"`
	Content        []string `json:"content"`
}

type Service struct {
	store     Store
	configs   ConfigSource
	sender    messaging.Sender
	metrics   *metrics.Metrics
	redactor  *security.Redactor
	segmenter segment.Segmenter
	now       func() time.Time
}

// NewService wires the pipeline. redactor may be nil. maxParts of zero
// keeps segment.DefaultMaxParts.
func NewService(store Store, configs ConfigSource, sender messaging.Sender, m *metrics.Metrics, redactor *security.Redactor, maxParts int) *Service {
	return &Service{
		store:     store,
		configs:   configs,
		sender:    sender,
		metrics:   m,
		redactor:  redactor,
		segmenter: segment.Segmenter{MaxParts: maxParts},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send validates req, segments it, stores it and delivers every part in
// order. On ErrDelivery the stored record is returned along with the error.
func (s *Service) Send(ctx context.Context, req Request) (*Record, error) {
	if err := req.Validate(); err != nil {
		s.count(metrics.ResultInvalid)
		return nil, err
	}

	parts, cfg, err := s.split(ctx, req.Message)
	if err != nil {
		s.countSplitFailure(err)
		return nil, err
	}

	record := &Record{
		ID:       uuid.NewString(),
		From:     req.From,
		To:       req.To,
		Size:     utf8.RuneCountInString(req.Message),
		Parts:    len(parts),
		SentDate: s.now(),
		Content:  segment.Texts(parts),
	}

	logger := slog.With("id", record.ID, "to", security.MaskPhone(record.To), "parts", record.Parts)
	logger.Debug("Message segmented",
		"size", record.Size,
		"max_sms_length", cfg.MaxSmsLength,
		"preview", s.redactor.Preview(req.Message, 40))

	if err := s.store.SaveSms(ctx, toStorage(record)); err != nil {
		s.count(metrics.ResultPersistFailed)
		logger.Error("Failed to store message", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	for _, p := range parts {
		out := &messaging.OutgoingPart{
			SmsID: record.ID,
			From:  record.From,
			To:    record.To,
			Index: p.Index,
			Total: p.Total,
			Text:  p.Text(),
		}
		if err := s.sender.Send(ctx, out); err != nil {
			s.count(metrics.ResultDeliveryFailed)
			logger.Error("Failed to deliver part", "part", p.Index, "sender", s.sender.Name(), "error", err)
			return record, fmt.Errorf("%w: part %d of %d: %w", ErrDelivery, p.Index, p.Total, err)
		}
		s.metrics.PartsSentTotal.Inc()
	}

	s.count(metrics.ResultSent)
	s.metrics.PartsPerMessage.Observe(float64(record.Parts))
	logger.Info("Message sent", "size", record.Size, "sender", s.sender.Name())

	return record, nil
}

// Preview segments message with the configuration in force.
func (s *Service) Preview(ctx context.Context, message string) (*Preview, error) {
	if strings.TrimSpace(message) == "" {
		return nil, validate.Errors{"message": "must not be blank"}
	}

	parts, cfg, err := s.split(ctx, message)
	if err != nil {
		return nil, err
	}

	return &Preview{
		Size:           utf8.RuneCountInString(message),
		Parts:          len(parts),
		MaxSmsLength:   cfg.MaxSmsLength,
		SuffixTemplate: cfg.SuffixTemplate,
		Content:        segment.Texts(parts),
	}, nil
}

// Get returns a stored message with its parts, or nil when id is unknown.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	sms, err := s.store.GetSms(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sms %s: %w", id, err)
	}
	if sms == nil {
		return nil, nil
	}
	return fromStorage(sms), nil
}

// List returns the most recent messages without content. The limit is
// clamped to [1, MaxListLimit], and zero selects DefaultListLimit.
func (s *Service) List(ctx context.Context, limit int) ([]*Record, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	list, err := s.store.ListSms(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sms: %w", err)
	}

	records := make([]*Record, 0, len(list))
	for _, sms := range list {
		records = append(records, fromStorage(sms))
	}
	return records, nil
}

func (s *Service) split(ctx context.Context, message string) ([]segment.Part, *storage.Configuration, error) {
	cfg, err := s.configs.Current(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tmpl, err := segment.ParseTemplate(cfg.SuffixTemplate)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration %d: %w", cfg.ID, err)
	}

	parts, err := s.segmenter.Split(message, cfg.MaxSmsLength, tmpl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to segment message: %w", err)
	}
	return parts, cfg, nil
}

func (s *Service) countSplitFailure(err error) {
	switch {
	case errors.Is(err, smsconfig.ErrNoConfiguration):
		s.count(metrics.ResultNotConfigured)
	case errors.Is(err, segment.ErrSuffixTooLong):
		s.count(metrics.ResultSegmentFailed)
		s.metrics.SegmentFailures.WithLabelValues(metrics.ReasonSuffixTooLong).Inc()
	case errors.Is(err, segment.ErrSearchExhausted):
		s.count(metrics.ResultSegmentFailed)
		s.metrics.SegmentFailures.WithLabelValues(metrics.ReasonExhausted).Inc()
	}
}

func (s *Service) count(result string) {
	s.metrics.MessagesTotal.WithLabelValues(result).Inc()
}

func toStorage(r *Record) *storage.Sms {
	return &storage.Sms{
		ID:       r.ID,
		To:       r.To,
		From:     r.From,
		Size:     r.Size,
		Parts:    r.Parts,
		SentDate: r.SentDate,
		Content:  r.Content,
	}
}

func fromStorage(sms *storage.Sms) *Record {
	return &Record{
		ID:       sms.ID,
		From:     sms.From,
		To:       sms.To,
		Size:     sms.Size,
		Parts:    sms.Parts,
		SentDate: sms.SentDate,
		Content:  sms.Content,
	}
}

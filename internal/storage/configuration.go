package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Configuration is one row of sms_configuration. The newest row is the
// one in force.
type Configuration struct {
	ID             int64     `json:"id"`
	MaxSmsLength   int       `json:"maxSmsLength"`
	SuffixTemplate string    `json:"suffixTemplate"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s *Storage) SaveConfiguration(ctx context.Context, maxSmsLength int, suffixTemplate string) (*Configuration, error) {
	now := time.Now().UTC()

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO sms_configuration (max_sms_length, suffix_template, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`), maxSmsLength, suffixTemplate, now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}

	return &Configuration{
		ID:             id,
		MaxSmsLength:   maxSmsLength,
		SuffixTemplate: suffixTemplate,
		CreatedAt:      now,
	}, nil
}

// LatestConfiguration returns the most recently created configuration, or
// nil when none exists.
func (s *Storage) LatestConfiguration(ctx context.Context) (*Configuration, error) {
	var c Configuration
	err := s.db.QueryRowContext(ctx, `
		SELECT id, max_sms_length, suffix_template, created_at
		FROM sms_configuration
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&c.ID, &c.MaxSmsLength, &c.SuffixTemplate, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest configuration: %w", err)
	}
	return &c, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sms is a sent message together with the parts it was delivered as.
type Sms struct {
	ID        string
	To        string
	From      string
	Size      int
	Parts     int
	SentDate  time.Time
	CreatedAt time.Time
	Content   []string
}

// SaveSms stores the message row and its parts in one transaction.
func (s *Storage) SaveSms(ctx context.Context, sms *Sms) error {
	if sms.CreatedAt.IsZero() {
		sms.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO sms (id, to_number, from_number, size, parts, sent_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), sms.ID, sms.To, sms.From, sms.Size, sms.Parts, sms.SentDate, sms.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save sms: %w", err)
	}

	for i, part := range sms.Content {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO sms_content (sms_id, part_index, content_part)
			VALUES (?, ?, ?)
		`), sms.ID, i+1, part)
		if err != nil {
			return fmt.Errorf("failed to save sms part %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sms: %w", err)
	}
	return nil
}

// GetSms returns the message with its parts in order, or nil when id is
// unknown.
func (s *Storage) GetSms(ctx context.Context, id string) (*Sms, error) {
	var sms Sms
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, to_number, from_number, size, parts, sent_date, created_at
		FROM sms
		WHERE id = ?
	`), id).Scan(&sms.ID, &sms.To, &sms.From, &sms.Size, &sms.Parts, &sms.SentDate, &sms.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sms: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT content_part
		FROM sms_content
		WHERE sms_id = ?
		ORDER BY part_index
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sms content: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var part string
		if err := rows.Scan(&part); err != nil {
			return nil, fmt.Errorf("failed to scan sms content: %w", err)
		}
		sms.Content = append(sms.Content, part)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sms content: %w", err)
	}

	return &sms, nil
}

// ListSms returns the most recently sent messages without their content,
// newest first.
func (s *Storage) ListSms(ctx context.Context, limit int) ([]*Sms, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, to_number, from_number, size, parts, sent_date, created_at
		FROM sms
		ORDER BY sent_date DESC, created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sms: %w", err)
	}
	defer rows.Close()

	var list []*Sms
	for rows.Next() {
		var sms Sms
		if err := rows.Scan(&sms.ID, &sms.To, &sms.From, &sms.Size, &sms.Parts, &sms.SentDate, &sms.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sms: %w", err)
		}
		list = append(list, &sms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sms list: %w", err)
	}

	return list, nil
}

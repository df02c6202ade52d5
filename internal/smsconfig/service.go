// Package smsconfig owns the segmentation settings in force: the maximum SMS
// length and the suffix template. The newest stored configuration wins and
// is served from a cache that Refresh reloads.
package smsconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rg/smsrelay/internal/segment"
	"github.com/rg/smsrelay/internal/storage"
	"github.com/rg/smsrelay/internal/validate"
)

var ErrNoConfiguration = errors.New("no SMS configuration found")

// Store persists configurations.
type Store interface {
	SaveConfiguration(ctx context.Context, maxSmsLength int, suffixTemplate string) (*storage.Configuration, error)
	LatestConfiguration(ctx context.Context) (*storage.Configuration, error)
}

// Input is a new configuration as submitted by an operator.
type Input struct {
	MaxSmsLength   int    `json:"maxSmsLength" validate:"min=1"`
	SuffixTemplate string `json:"suffixTemplate" validate:"notblank"`
}

// Validate checks the bounds and that the template renders a part number
// and a part total.
func (in Input) Validate() error {
	errs := validate.Collect(in)
	if _, bad := errs["suffixTemplate"]; !bad {
		if _, err := segment.ParseTemplate(in.SuffixTemplate); err != nil {
			errs.Add("suffixTemplate", "must contain exactly two %d slots (part number, total parts)")
		}
	}
	return errs.Err()
}

type Service struct {
	store Store
	cache Cache
}

func NewService(store Store, cache Cache) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{store: store, cache: cache}
}

// Current returns the configuration in force, loading it on a cache miss.
func (s *Service) Current(ctx context.Context) (*storage.Configuration, error) {
	cfg, err := s.cache.Get(ctx)
	if err != nil {
		slog.Warn("Failed to read configuration cache", "error", err)
	}
	if cfg != nil {
		return cfg, nil
	}

	slog.Debug("SMS configuration is not loaded")
	return s.Refresh(ctx)
}

// Refresh reloads the newest configuration from the store into the cache.
func (s *Service) Refresh(ctx context.Context) (*storage.Configuration, error) {
	cfg, err := s.store.LatestConfiguration(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg == nil {
		return nil, ErrNoConfiguration
	}

	if err := s.cache.Set(ctx, cfg); err != nil {
		slog.Warn("Failed to cache configuration", "error", err)
	}

	slog.Debug("SMS configuration loaded",
		"id", cfg.ID,
		"max_sms_length", cfg.MaxSmsLength,
		"suffix_template", cfg.SuffixTemplate)
	return cfg, nil
}

// Create stores a new configuration and puts it in force immediately.
func (s *Service) Create(ctx context.Context, in Input) (*storage.Configuration, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	cfg, err := s.store.SaveConfiguration(ctx, in.MaxSmsLength, in.SuffixTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to create configuration: %w", err)
	}

	if err := s.cache.Set(ctx, cfg); err != nil {
		slog.Warn("Failed to cache configuration, invalidating", "error", err)
		if err := s.cache.Invalidate(ctx); err != nil {
			slog.Error("Failed to invalidate configuration cache", "error", err)
		}
	}

	slog.Info("New SMS configuration created",
		"id", cfg.ID,
		"max_sms_length", cfg.MaxSmsLength,
		"suffix_template", cfg.SuffixTemplate)
	return cfg, nil
}

// Seed stores defaults when no configuration exists yet. It reports whether
// it wrote anything.
func (s *Service) Seed(ctx context.Context, defaults Input) (bool, error) {
	existing, err := s.store.LatestConfiguration(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check configuration: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	if _, err := s.Create(ctx, defaults); err != nil {
		return false, fmt.Errorf("failed to seed configuration: %w", err)
	}
	return true, nil
}

// Package api exposes the relay over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rg/smsrelay/internal/config"
	"github.com/rg/smsrelay/internal/metrics"
	"github.com/rg/smsrelay/internal/sms"
	"github.com/rg/smsrelay/internal/smsconfig"
	"github.com/rg/smsrelay/internal/storage"
)

// SmsService is the part of sms.Service the handlers use.
type SmsService interface {
	Send(ctx context.Context, req sms.Request) (*sms.Record, error)
	Get(ctx context.Context, id string) (*sms.Record, error)
	List(ctx context.Context, limit int) ([]*sms.Record, error)
	Preview(ctx context.Context, message string) (*sms.Preview, error)
}

// ConfigService is the part of smsconfig.Service the handlers use.
type ConfigService interface {
	Current(ctx context.Context) (*storage.Configuration, error)
	Create(ctx context.Context, in smsconfig.Input) (*storage.Configuration, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Auth           config.AuthConfig
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	// Gatherer backs /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Health is pinged by /health. May be nil.
	Health Pinger
}

type Handler struct {
	sms     SmsService
	configs ConfigService
	health  Pinger
	started time.Time
}

func NewRouter(smsService SmsService, configs ConfigService, opts Options) (http.Handler, error) {
	auth, err := NewAuthenticator(opts.Auth)
	if err != nil {
		return nil, err
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{
		sms:     smsService,
		configs: configs,
		health:  opts.Health,
		started: time.Now(),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(Instrument(opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/sms", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Use(RequireAnyRole(RoleUser, RoleAdmin))

		r.Post("/", h.handleSendSms)
		r.Get("/", h.handleListSms)
		r.Post("/preview", h.handlePreview)
		r.Get("/configuration", h.handleGetConfiguration)
		r.Post("/configuration", h.handleCreateConfiguration)
		r.Get("/{id}", h.handleGetSms)
	})

	return r, nil
}

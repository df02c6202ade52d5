package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rg/smsrelay/internal/api"
	"github.com/rg/smsrelay/internal/config"
	"github.com/rg/smsrelay/internal/messaging"
	"github.com/rg/smsrelay/internal/messaging/console"
	"github.com/rg/smsrelay/internal/messaging/telegram"
	"github.com/rg/smsrelay/internal/metrics"
	"github.com/rg/smsrelay/internal/security"
	"github.com/rg/smsrelay/internal/sms"
	"github.com/rg/smsrelay/internal/smsconfig"
	"github.com/rg/smsrelay/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting smsrelay...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("%s", cfg)
	setupLogging(cfg.Log)

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized successfully (driver: %s)", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	log.Printf("Configuration cache initialized (backend: %s)", cfg.Cache.Backend)

	configs := smsconfig.NewService(store, cache)
	seeded, err := configs.Seed(ctx, smsconfig.Input{
		MaxSmsLength:   cfg.SMS.MaxLength,
		SuffixTemplate: cfg.SMS.SuffixTemplate,
	})
	if err != nil {
		log.Fatalf("Failed to seed SMS configuration: %v", err)
	}
	if seeded {
		log.Printf("Seeded SMS configuration (max length: %d, suffix: %q)", cfg.SMS.MaxLength, cfg.SMS.SuffixTemplate)
	}

	refreshWorker := smsconfig.NewRefreshWorker(configs, cfg.Cache.RefreshInterval)
	go refreshWorker.Start(ctx)

	patterns := append(append([]string{}, security.DefaultPatterns...), cfg.Security.SecretPatterns...)
	redactor, err := security.NewRedactor(patterns)
	if err != nil {
		log.Fatalf("Failed to initialize redactor: %v", err)
	}
	log.Printf("Log redactor initialized with %d patterns", len(patterns))

	sender, err := newSender(cfg.Delivery)
	if err != nil {
		log.Fatalf("Failed to create %s sender: %v", cfg.Delivery.Type, err)
	}
	log.Printf("Delivery channel initialized (%s)", sender.Name())

	m := metrics.New(prometheus.DefaultRegisterer)
	smsService := sms.NewService(store, configs, sender, m, redactor, cfg.SMS.MaxParts)

	router, err := api.NewRouter(smsService, configs, api.Options{
		Auth:           cfg.Auth,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		Health:         store,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Listening on %s", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server stopped with error: %v", err)
	}
	log.Println("Server stopped")
}

func setupLogging(cfg config.LogConfig) {
	// Validated on load.
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newCache(ctx context.Context, cfg config.CacheConfig) (smsconfig.Cache, error) {
	if cfg.Backend != config.CacheRedis {
		return smsconfig.NewMemoryCache(), nil
	}

	client, err := smsconfig.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	return smsconfig.NewRedisCache(client, cfg.Redis.Prefix, cfg.Redis.TTL), nil
}

func newSender(cfg config.DeliveryConfig) (messaging.Sender, error) {
	switch cfg.Type {
	case config.DeliveryTelegram:
		return telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.ChatID)
	default:
		return console.NewSender(os.Stdout), nil
	}
}

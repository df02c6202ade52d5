package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rg/smsrelay/internal/config"
)

type Storage struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and applies pending migrations.
func Open(cfg config.StorageConfig) (*Storage, error) {
	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	if err := migrateUp(cfg.Driver, dsn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, cfg.Driver), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, driver string) *Storage {
	return &Storage{db: db, driver: driver}
}

func dataSourceName(cfg config.StorageConfig) (string, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return cfg.Path + "?_foreign_keys=on&_busy_timeout=5000", nil
	case config.DriverPostgres:
		return cfg.DSN, nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $1, $2, ... for postgres.
func (s *Storage) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

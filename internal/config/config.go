package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Delivery DeliveryConfig `yaml:"delivery"`
	SMS      SMSConfig      `yaml:"sms"`
	Log      LogConfig      `yaml:"log"`
	Security SecurityConfig `yaml:"security"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

const (
	AuthModeNone  = "none"
	AuthModeBasic = "basic"
)

type AuthConfig struct {
	// Mode is "none" (everything permitted) or "basic" (HTTP basic auth).
	Mode         string   `yaml:"mode"`
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Password     string   `yaml:"password"`
	Roles        []string `yaml:"roles"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver       string `yaml:"driver"`
	Path         string `yaml:"path"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

const (
	DeliveryConsole  = "console"
	DeliveryTelegram = "telegram"
)

type DeliveryConfig struct {
	Type     string         `yaml:"type"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// SMSConfig holds the segmentation defaults seeded into an empty database
// and the search ceiling used by every split.
type SMSConfig struct {
	MaxLength      int    `yaml:"max_length"`
	SuffixTemplate string `yaml:"suffix_template"`
	MaxParts       int    `yaml:"max_parts"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SecurityConfig struct {
	SecretPatterns []string `yaml:"secret_patterns"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	return LoadFile(configPath)
}

func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	content := expandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Auth: AuthConfig{
			Mode:  AuthModeNone,
			Roles: []string{"USER"},
		},
		Storage: StorageConfig{
			Driver:       DriverSQLite,
			Path:         "./data/smsrelay.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Cache: CacheConfig{
			Backend:         CacheMemory,
			RefreshInterval: time.Minute,
			Redis: RedisConfig{
				Prefix: "smsrelay:",
				TTL:    10 * time.Minute,
			},
		},
		Delivery: DeliveryConfig{Type: DeliveryConsole},
		SMS: SMSConfig{
			MaxLength:      160,
			SuffixTemplate: "... - Part %d of %d",
			MaxParts:       1000,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Auth.Mode {
	case AuthModeNone:
	case AuthModeBasic:
		if c.Auth.Username == "" {
			return fmt.Errorf("auth.username is required for basic auth")
		}
		if c.Auth.PasswordHash == "" && c.Auth.Password == "" {
			return fmt.Errorf("auth.password_hash or auth.password is required for basic auth")
		}
		if len(c.Auth.Roles) == 0 {
			return fmt.Errorf("auth.roles must list at least one role")
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeNone, AuthModeBasic, c.Auth.Mode)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite3")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Storage.Driver)
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", CacheMemory, CacheRedis, c.Cache.Backend)
	}
	if c.Cache.RefreshInterval < 0 {
		return fmt.Errorf("cache.refresh_interval must not be negative")
	}

	switch c.Delivery.Type {
	case DeliveryConsole:
	case DeliveryTelegram:
		if c.Delivery.Telegram.Token == "" {
			return fmt.Errorf("delivery.telegram.token is required")
		}
		if c.Delivery.Telegram.ChatID == 0 {
			return fmt.Errorf("delivery.telegram.chat_id is required")
		}
	default:
		return fmt.Errorf("delivery.type must be %q or %q, got %q", DeliveryConsole, DeliveryTelegram, c.Delivery.Type)
	}

	if c.SMS.MaxLength < 1 {
		return fmt.Errorf("sms.max_length must be at least 1")
	}
	if strings.TrimSpace(c.SMS.SuffixTemplate) == "" {
		return fmt.Errorf("sms.suffix_template is required")
	}
	if c.SMS.MaxParts < 2 {
		return fmt.Errorf("sms.max_parts must be at least 2")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("Configuration:\n")
	sb.WriteString(fmt.Sprintf("  Server Addr: %s\n", c.Server.Addr))
	sb.WriteString(fmt.Sprintf("  Auth Mode: %s\n", c.Auth.Mode))
	if c.Auth.Mode == AuthModeBasic {
		sb.WriteString(fmt.Sprintf("  Auth User: %s (roles: %s)\n", c.Auth.Username, strings.Join(c.Auth.Roles, ",")))
		sb.WriteString(fmt.Sprintf("  Auth Password: %s\n", maskSecret(c.Auth.Password+c.Auth.PasswordHash)))
	}
	sb.WriteString(fmt.Sprintf("  Storage Driver: %s\n", c.Storage.Driver))
	if c.Storage.Driver == DriverPostgres {
		sb.WriteString(fmt.Sprintf("  Storage DSN: %s\n", maskSecret(c.Storage.DSN)))
	} else {
		sb.WriteString(fmt.Sprintf("  Storage Path: %s\n", c.Storage.Path))
	}
	sb.WriteString(fmt.Sprintf("  Cache Backend: %s (refresh every %s)\n", c.Cache.Backend, c.Cache.RefreshInterval))
	if c.Cache.Backend == CacheRedis {
		sb.WriteString(fmt.Sprintf("  Redis Addr: %s\n", c.Cache.Redis.Addr))
	}
	sb.WriteString(fmt.Sprintf("  Delivery: %s\n", c.Delivery.Type))
	if c.Delivery.Type == DeliveryTelegram {
		sb.WriteString(fmt.Sprintf("  Telegram Token: %s\n", maskSecret(c.Delivery.Telegram.Token)))
		sb.WriteString(fmt.Sprintf("  Telegram Chat: %d\n", c.Delivery.Telegram.ChatID))
	}
	sb.WriteString(fmt.Sprintf("  SMS Defaults: max_length=%d suffix_template=%q max_parts=%d\n",
		c.SMS.MaxLength, c.SMS.SuffixTemplate, c.SMS.MaxParts))
	sb.WriteString(fmt.Sprintf("  Log: level=%s format=%s\n", c.Log.Level, c.Log.Format))
	return sb.String()
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	// Base URL of the chunk server the agent talks to, e.g. the
	// per-file temporary URL handed out by the API.
	EndpointBaseURL string `envconfig:"ENDPOINT_BASE_URL" required:"true"`
	EndpointToken   string `envconfig:"ENDPOINT_TOKEN"`

	// Hex-encoded AES file key and the counter seed for the file
	// being transferred.
	FileKeyHex      string `envconfig:"FILE_KEY_HEX" required:"true"`
	FileCounterSeed uint64 `envconfig:"FILE_COUNTER_SEED"`

	// Mode selects the transfer direction for this agent run.
	Mode     string `envconfig:"MODE" default:"download"`
	FileName string `envconfig:"FILE_NAME" required:"true"`
	FileSize int64  `envconfig:"FILE_SIZE"`

	TargetDir   string `envconfig:"TARGET_DIR" default:"."`
	DBPath      string `envconfig:"DB_PATH" default:"transfers.db"`
	ChunkSize   int64  `envconfig:"CHUNK_SIZE" default:"1048576"`
	MaxParallel int    `envconfig:"MAX_PARALLEL" default:"4"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"INFO"`

	// Static fallback used when resolving the endpoint host fails.
	DNSFallback []string `envconfig:"DNS_FALLBACK"`

	KeepTransferredFor time.Duration `envconfig:"KEEP_TRANSFERRED_FOR" default:"24h"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"10m"`

	WebhookURL string `envconfig:"WEBHOOK_URL"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9820"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package config

import (
	"time"

	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/storage/postgres"
)

// Output drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	API      APIConfig          `yaml:"api"`
	Retry    RetryConfig        `yaml:"retry"`
	Harvest  HarvestConfig      `yaml:"harvest"`
	Batch    BatchConfig        `yaml:"batch"`
	Output   OutputConfig       `yaml:"output"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Server   ServerConfig       `yaml:"server"`
}

// APIConfig holds YouTube Data API settings.
type APIConfig struct {
	Key              string        `yaml:"key"`
	PageSize         int64         `yaml:"page_size"`
	ReplyPageSize    int64         `yaml:"reply_page_size"`
	PlaylistPageSize int64         `yaml:"playlist_page_size"`
	TextFormat       string        `yaml:"text_format"` // html, plainText
	Timeout          time.Duration `yaml:"timeout"`
}

// RetryConfig controls the retrying caller.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	Interval          time.Duration `yaml:"interval"`
	Throttle          time.Duration `yaml:"throttle"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = no limiter
}

// HarvestConfig controls per-root harvesting.
type HarvestConfig struct {
	ProcessingFailureDelay time.Duration `yaml:"processing_failure_delay"`
	MaxRestarts            int           `yaml:"max_restarts"` // 0 = unbounded
	MaxPages               int           `yaml:"max_pages"`
	ReplyRefetchAttempts   int           `yaml:"reply_refetch_attempts"`
}

// BatchConfig holds batching settings.
type BatchConfig struct {
	Size int `yaml:"size"`
}

// OutputConfig selects the storage sink.
type OutputConfig struct {
	Driver     string `yaml:"driver"` // file, sqlite, postgres, memory
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables /health and /metrics
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

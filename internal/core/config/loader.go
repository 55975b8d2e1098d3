package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file on top of Default. Keys absent
// from the file keep their default; keys set to zero stay zero. An empty
// path yields the defaults. A missing api.key is taken from YOUTUBE_API_KEY.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("YOUTUBE_API_KEY")
	}
	return cfg, nil
}

// Default returns the configuration used when a file sets nothing.
func Default() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			PageSize:         100,
			ReplyPageSize:    100,
			PlaylistPageSize: 50,
			TextFormat:       "html",
			Timeout:          30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 10,
			Interval:    time.Second,
			Throttle:    50 * time.Millisecond,
		},
		Harvest: HarvestConfig{
			ProcessingFailureDelay: 10 * time.Second,
			MaxPages:               10000,
			ReplyRefetchAttempts:   2,
		},
		Batch: BatchConfig{Size: 100},
		Output: OutputConfig{
			Driver:     DriverFile,
			Dir:        "./out",
			SQLitePath: "./harvest.db",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Validate reports configuration errors that would make a run fail.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.API.Key == "" {
		errs = append(errs, errors.New("api.key is required"))
	}
	if c.API.TextFormat != "html" && c.API.TextFormat != "plainText" {
		errs = append(errs, fmt.Errorf("api.text_format must be html or plainText, got %q", c.API.TextFormat))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be positive"))
	}
	if c.Batch.Size < 1 {
		errs = append(errs, errors.New("batch.size must be positive"))
	}
	if c.Harvest.MaxRestarts < 0 || c.Harvest.MaxPages < 0 || c.Harvest.ReplyRefetchAttempts < 0 {
		errs = append(errs, errors.New("harvest limits must not be negative"))
	}

	switch c.Output.Driver {
	case DriverFile, DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown output.driver %q", c.Output.Driver))
	}

	return errors.Join(errs...)
}

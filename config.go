package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"webquery/query_engine"
)

// Configuration validation errors
var (
	ErrNoSeeds          = errors.New("crawler.seeds must list at least one URL")
	ErrInvalidWorkers   = errors.New("crawler.workers must be at least 1")
	ErrInvalidMaxPages  = errors.New("crawler.max_pages must be at least 1")
	ErrInvalidDelay     = errors.New("crawler.delay_ms must be non-negative")
	ErrInvalidTimeout   = errors.New("crawler.timeout_sec must be at least 1")
	ErrInvalidQueueSize = errors.New("crawler.queue_size must be at least 1")
	ErrMissingOutput    = errors.New("output.path is required")
	ErrInvalidFormat    = errors.New("output.format must be 'json' or 'sqlite'")
	ErrInvalidLogLevel  = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete crawl configuration
type Config struct {
	Crawler CrawlerConfig `yaml:"crawler"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// CrawlerConfig contains crawl traversal settings
type CrawlerConfig struct {
	Seeds            []string `yaml:"seeds"`
	Workers          int      `yaml:"workers"`
	MaxPages         int64    `yaml:"max_pages"`
	DelayMs          int      `yaml:"delay_ms"`
	TimeoutSec       int      `yaml:"timeout_sec"`
	QueueSize        int      `yaml:"queue_size"`
	UserAgent        string   `yaml:"user_agent"`
	RespectRobots    bool     `yaml:"respect_robots"`
	FollowExtensions []string `yaml:"follow_extensions"`
}

// OutputConfig defines where the index snapshot is written
type OutputConfig struct {
	Path      string `yaml:"path"`
	Format    string `yaml:"format"`
	SaveEvery int    `yaml:"save_every"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			Workers:          8,
			MaxPages:         1000,
			DelayMs:          200,
			TimeoutSec:       30,
			QueueSize:        100000,
			UserAgent:        "webquery-crawler/1.0 (Go)",
			RespectRobots:    true,
			FollowExtensions: []string{".html", ".htm"},
		},
		Output: OutputConfig{
			Path:      "index_output/index.json",
			SaveEvery: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, xerrors.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// ApplyDefaults fills in values derived from other settings. An unset output
// format follows the output file extension.
func (c *Config) ApplyDefaults() {
	if c.Output.Format == "" && c.Output.Path != "" {
		c.Output.Format = query_engine.FormatForPath(c.Output.Path)
	}
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var err error

	if len(c.Crawler.Seeds) == 0 {
		err = multierror.Append(err, ErrNoSeeds)
	}
	for i, seed := range c.Crawler.Seeds {
		u, parseErr := url.Parse(seed)
		if parseErr != nil || u.Scheme == "" {
			err = multierror.Append(err, fmt.Errorf("crawler.seeds[%d]: %q is not an absolute URL", i, seed))
		}
	}
	if c.Crawler.Workers < 1 {
		err = multierror.Append(err, ErrInvalidWorkers)
	}
	if c.Crawler.MaxPages < 1 {
		err = multierror.Append(err, ErrInvalidMaxPages)
	}
	if c.Crawler.DelayMs < 0 {
		err = multierror.Append(err, ErrInvalidDelay)
	}
	if c.Crawler.TimeoutSec < 1 {
		err = multierror.Append(err, ErrInvalidTimeout)
	}
	if c.Crawler.QueueSize < 1 {
		err = multierror.Append(err, ErrInvalidQueueSize)
	}
	if c.Output.Path == "" {
		err = multierror.Append(err, ErrMissingOutput)
	}
	if c.Output.Format != query_engine.FormatJSON && c.Output.Format != query_engine.FormatSQLite {
		err = multierror.Append(err, ErrInvalidFormat)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierror.Append(err, ErrInvalidLogLevel)
	}

	return err
}

// Delay returns the politeness delay between requests
func (c *CrawlerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Timeout returns the per-request timeout
func (c *CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Seeds: %d, Workers: %d, MaxPages: %d, Output: %s}",
		len(c.Crawler.Seeds),
		c.Crawler.Workers,
		c.Crawler.MaxPages,
		c.Output.Path,
	)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	ModeDev    = "DEV"
	ModeTest   = "TEST"
	ModeDeploy = "DEPLOY"
)

type ServiceConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

type ServerConfig struct {
	Listen           string `yaml:"listen"`
	Mode             string `yaml:"mode"`
	ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"`
	RequestTimeoutS  int    `yaml:"request_timeout_s"`
}

type ModelConfig struct {
	Location string `yaml:"location"`
}

type StatisticsConfig struct {
	WindowS int `yaml:"window_s"`
}

// Window returns the statistics window as a duration.
func (c StatisticsConfig) Window() time.Duration {
	return time.Duration(c.WindowS) * time.Second
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	JSON          bool   `yaml:"json"`
	FileName      string `yaml:"file_name"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	BackupCount   int    `yaml:"backup_count"`
	MaxAgeDays    int    `yaml:"max_age_days"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
	LogSpans    bool    `yaml:"log_spans" json:"log_spans"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Server: ServerConfig{
			Listen:           ":8080",
			Mode:             ModeDev,
			ShutdownTimeoutS: 5,
			RequestTimeoutS:  10,
		},
		Model: ModelConfig{
			Location: "models/lexicon.yaml",
		},
		Statistics: StatisticsConfig{
			WindowS: 60,
		},
		Storage: StorageConfig{
			Path: "sentiment.db",
		},
		Logging: LoggingConfig{
			Level:         "info",
			MaxFileSizeMB: 10,
			BackupCount:   5,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// Load reads config from file with env var overrides. A missing file leaves
// the defaults in place.
func Load(path string) (*ServiceConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *ServiceConfig) error {
	if listen := os.Getenv("SENTIMENT_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
	if mode := os.Getenv("SENTIMENT_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}
	if location := os.Getenv("SENTIMENT_MODEL_LOCATION"); location != "" {
		cfg.Model.Location = location
	}
	if dbPath, ok := os.LookupEnv("SENTIMENT_DB_PATH"); ok {
		cfg.Storage.Path = dbPath
	}
	if level := os.Getenv("SENTIMENT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if raw := os.Getenv("SENTIMENT_WINDOW_S"); raw != "" {
		window, err := strconv.Atoi(raw)
		if err != nil {
			return &Error{fmt.Sprintf("SENTIMENT_WINDOW_S: %q is not an integer", raw)}
		}
		cfg.Statistics.WindowS = window
	}
	return nil
}

// Validate reports every invalid setting and normalises the soft ones.
func (c *ServiceConfig) Validate() error {
	var errs error
	c.Server.Mode = strings.ToUpper(strings.TrimSpace(c.Server.Mode))
	switch c.Server.Mode {
	case ModeDev, ModeTest, ModeDeploy:
	default:
		errs = multierr.Append(errs, ErrInvalidMode)
	}
	if c.Server.Listen == "" {
		errs = multierr.Append(errs, ErrMissingListen)
	}
	if c.Model.Location == "" {
		errs = multierr.Append(errs, ErrMissingModel)
	}
	if c.Statistics.WindowS <= 0 {
		errs = multierr.Append(errs, ErrInvalidWindow)
	}
	if c.Logging.BackupCount < 0 {
		errs = multierr.Append(errs, &Error{"logging backup_count must be >= 0"})
	}
	if c.Server.ShutdownTimeoutS <= 0 {
		c.Server.ShutdownTimeoutS = 5
	}
	if c.Server.RequestTimeoutS <= 0 {
		c.Server.RequestTimeoutS = 10
	}
	if c.Logging.MaxFileSizeMB <= 0 {
		c.Logging.MaxFileSizeMB = 10
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
	return errs
}

var (
	ErrInvalidMode   = &Error{"server mode must be one of DEV, TEST, DEPLOY"}
	ErrMissingListen = &Error{"server listen address is required"}
	ErrMissingModel  = &Error{"model location is required"}
	ErrInvalidWindow = &Error{"statistics window_s must be > 0"}
)

type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

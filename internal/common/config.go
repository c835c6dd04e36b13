// Package common provides shared utilities for tasktrace.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for tasktrace.
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Worker      WorkerConfig     `toml:"worker"`
	LogFabric   LogFabricConfig  `toml:"log_fabric"`
	Logging     LoggingConfig    `toml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the on-disk roots for the three durable stores.
type StorageConfig struct {
	QueueRoot string `toml:"queue_root"` // todo/doing/done/failed buckets live under here
	DepRoot   string `toml:"dep_root"`   // dependency snapshots, one subdir per job id
	LogRoot   string `toml:"log_root"`   // archived per-job log files
}

// WorkerConfig holds the single worker's execution behavior.
type WorkerConfig struct {
	// PollFrequency is how long the worker sleeps between empty dequeue
	// attempts, expressed as a duration string (e.g. "1s").
	PollFrequency string `toml:"poll_frequency"`
	// ForceExitGrace is how long a cooperative shutdown waits for the worker
	// to finish its current job before run stops waiting and returns. The
	// in-flight subprocess is not killed.
	ForceExitGrace string `toml:"force_exit_grace"`
}

// GetPollFrequency parses and returns the poll frequency duration.
func (c *WorkerConfig) GetPollFrequency() time.Duration {
	d, err := time.ParseDuration(c.PollFrequency)
	if err != nil {
		return time.Second
	}
	return d
}

// GetForceExitGrace parses and returns the force-exit grace duration.
func (c *WorkerConfig) GetForceExitGrace() time.Duration {
	d, err := time.ParseDuration(c.ForceExitGrace)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// LogFabricConfig holds buffer sizing for the log broadcasting fabric.
type LogFabricConfig struct {
	// LiveQueueSize bounds the single worker-to-streamer fan-in queue
	// shared by all jobs.
	LiveQueueSize int `toml:"live_queue_size"`
	// ReadQueueSize bounds each job's live queue and each subscriber's
	// fan-out buffer.
	ReadQueueSize int `toml:"read_queue_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string   `toml:"level"`
	Outputs []string `toml:"outputs"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			QueueRoot: "data/queue",
			DepRoot:   "data/dep",
			LogRoot:   "data/log",
		},
		Worker: WorkerConfig{
			PollFrequency:  "1s",
			ForceExitGrace: "5s",
		},
		LogFabric: LogFabricConfig{
			LiveQueueSize: 256,
			ReadQueueSize: 256,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Outputs: []string{"console"},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later paths override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TASKTRACE_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TASKTRACE_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TASKTRACE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TASKTRACE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("TASKTRACE_QUEUE_ROOT"); v != "" {
		config.Storage.QueueRoot = v
	}
	if v := os.Getenv("TASKTRACE_DEP_ROOT"); v != "" {
		config.Storage.DepRoot = v
	}
	if v := os.Getenv("TASKTRACE_LOG_ROOT"); v != "" {
		config.Storage.LogRoot = v
	}

	if v := os.Getenv("TASKTRACE_WORKER_POLL_FREQUENCY"); v != "" {
		config.Worker.PollFrequency = v
	}
	if v := os.Getenv("TASKTRACE_WORKER_FORCE_EXIT_GRACE"); v != "" {
		config.Worker.ForceExitGrace = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

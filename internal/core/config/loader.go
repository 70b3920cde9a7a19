package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, expanding environment variables, and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Queue.MaxConcurrent <= 0 {
		c.Queue.MaxConcurrent = 3
	}
	if c.Queue.MaxRetries == nil {
		n := 2
		c.Queue.MaxRetries = &n
	}
	if c.Queue.RetryDelay < 0 {
		c.Queue.RetryDelay = 0
	}
	if len(c.Queue.Stages) == 0 {
		c.Queue.Stages = []string{"prepare", "build", "test", "deploy"}
	}

	if c.Recovery.MaxTotalAttempts <= 0 {
		c.Recovery.MaxTotalAttempts = 5
	}
	if c.Recovery.AutoFallback == nil {
		on := true
		c.Recovery.AutoFallback = &on
	}
	if c.Recovery.SupportActor == "" {
		c.Recovery.SupportActor = "support"
	}

	if c.Executor.StepDelay == 0 {
		c.Executor.StepDelay = 2 * time.Second
	}

	if len(c.Workers) == 0 {
		for i := range c.Queue.MaxConcurrent {
			c.Workers = append(c.Workers, WorkerConfig{
				ID:   fmt.Sprintf("worker-%d", i+1),
				Name: fmt.Sprintf("worker %d", i+1),
			})
		}
	}
	for i := range c.Workers {
		if c.Workers[i].Name == "" {
			c.Workers[i].Name = c.Workers[i].ID
		}
	}

	if c.Checkpoint.Interval == 0 {
		c.Checkpoint.Interval = 30 * time.Second
	}
	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = BackendMemory
	}
	c.Checkpoint.Backend = strings.ToLower(c.Checkpoint.Backend)
}

// Validate reports every inconsistency in the configuration.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Queue.MaxRetries != nil && *c.Queue.MaxRetries < 0 {
		errs = append(errs, errors.New("queue.max_retries must not be negative"))
	}

	seen := make(map[string]bool, len(c.Workers))
	for i, w := range c.Workers {
		if w.ID == "" {
			errs = append(errs, fmt.Errorf("workers[%d]: id is required", i))
			continue
		}
		if seen[w.ID] {
			errs = append(errs, fmt.Errorf("workers[%d]: duplicate id %q", i, w.ID))
		}
		seen[w.ID] = true
	}

	switch c.Checkpoint.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("checkpoint backend postgres requires database.url"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("checkpoint backend redis requires redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("unknown logging level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

package config

import (
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/notify"
	redisclient "github.com/HypeFluxAI/Thinkus-sub007/internal/infra/redis"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Queue      QueueConfig        `yaml:"queue"`
	Recovery   RecoveryConfig     `yaml:"recovery"`
	Executor   ExecutorConfig     `yaml:"executor"`
	Workers    []WorkerConfig     `yaml:"workers"`
	Checkpoint CheckpointConfig   `yaml:"checkpoint"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Notify     notify.AMQPConfig  `yaml:"notify"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health service
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// QueueConfig holds admission and retry settings.
type QueueConfig struct {
	MaxConcurrent   int                      `yaml:"max_concurrent"`
	MaxRetries      *int                     `yaml:"max_retries"`
	RetryDelay      time.Duration            `yaml:"retry_delay"`
	RetentionPeriod time.Duration            `yaml:"retention_period"` // 0 = infinite
	Stages          []string                 `yaml:"stages"`
	Durations       map[string]time.Duration `yaml:"durations"`
}

// RecoveryConfig holds the automated recovery policy.
type RecoveryConfig struct {
	MaxTotalAttempts int    `yaml:"max_total_attempts"`
	AutoFallback     *bool  `yaml:"auto_fallback"`
	JitterSeed       uint64 `yaml:"jitter_seed"` // 0 = seeded from the clock
	SupportActor     string `yaml:"support_actor"`
}

// ExecutorConfig tunes the built-in simulated stage executor.
type ExecutorConfig struct {
	StepDelay time.Duration `yaml:"step_delay"`
}

// WorkerConfig declares one worker slot.
type WorkerConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Capabilities []string `yaml:"capabilities"` // empty = any work type
}

// CheckpointConfig selects where snapshots go.
type CheckpointConfig struct {
	Interval time.Duration `yaml:"interval"`
	Backend  string        `yaml:"backend"` // memory, postgres, redis
}

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// ============================================================================
// Beaver-Distbuild Configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: YAML configuration for both the worker and orchestrator binaries,
// matching the options recognized in spec §6.3. Structured the way the
// teacher's internal/cli.Config is: a single struct decoded with
// gopkg.in/yaml.v3, grouped by concern, with sane zero-value-safe defaults
// applied after load.
//
// ============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of options recognized by either binary (spec
// §6.3); a worker process ignores the Orchestrator-only fields and vice
// versa, mirroring the teacher's single shared Config struct read by both
// run modes.
type Config struct {
	// BuildServicePort is the listening port for this process's gRPC
	// service (WorkerService on a worker, OrchestratorService on the
	// orchestrator).
	BuildServicePort int `yaml:"build_service_port"`

	// MaxMessagesPerBatch caps batch size for the worker's
	// NotificationManager. The orchestrator's per-worker Batcher does not
	// read it; that Batcher always batches up to 16 requests.
	MaxMessagesPerBatch int `yaml:"max_messages_per_batch"`

	// ReplicateOutputsToWorkers, when true, sends MaterializeOutputs
	// requests to every worker including ones not currently available.
	ReplicateOutputsToWorkers bool `yaml:"replicate_outputs_to_workers"`

	// FireForgetMaterializeOutputs, when true, the orchestrator's
	// RemoteWorkerDriver does not await MaterializeOutputs results.
	FireForgetMaterializeOutputs bool `yaml:"fire_forget_materialize_outputs"`

	// EnableDistributedSourceHashing, when true, omits source files from
	// the hash list sent to workers (assumed already available there).
	EnableDistributedSourceHashing bool `yaml:"enable_distributed_source_hashing"`

	// WorkerAttachTimeout bounds the Hello/waiting-for-Attach phase (spec
	// §4.2). Default 45 minutes.
	WorkerAttachTimeout time.Duration `yaml:"worker_attach_timeout"`

	// RemotePipTimeout is an optional per-pip remote execution timeout
	// (spec §4.6). Zero disables it.
	RemotePipTimeout time.Duration `yaml:"remote_pip_timeout"`

	// MaxRetryLimitOnRemoteWorkers distinguishes retryable remote
	// failures (RemoteWorkerFailure) from terminal ones
	// (DistributionFailure).
	MaxRetryLimitOnRemoteWorkers int `yaml:"max_retry_limit_on_remote_workers"`

	// MinimumWaitForRemoteWorker delays declaring the scheduler "done" so
	// late-attaching workers still get a chance.
	MinimumWaitForRemoteWorker time.Duration `yaml:"minimum_wait_for_remote_worker"`

	// AttachRetryInterval is how often the orchestrator retries Attach
	// while a worker hasn't yet answered (spec §4.2: default 60s).
	AttachRetryInterval time.Duration `yaml:"attach_retry_interval"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig matches the teacher's internal/cli.Config.Metrics shape.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Defaults returns a Config with every spec §6.3 default applied.
func Defaults() Config {
	return Config{
		BuildServicePort:             7001,
		MaxMessagesPerBatch:          100,
		ReplicateOutputsToWorkers:    false,
		FireForgetMaterializeOutputs: false,
		WorkerAttachTimeout:          45 * time.Minute,
		RemotePipTimeout:             0,
		MaxRetryLimitOnRemoteWorkers: 1,
		MinimumWaitForRemoteWorker:   5 * time.Second,
		AttachRetryInterval:          60 * time.Second,
		Metrics:                      MetricsConfig{Enabled: true, Port: 9090},
	}
}

// Load reads a YAML config file, applying defaults for any field the file
// doesn't set.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

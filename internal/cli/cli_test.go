package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/beaver-distbuild/internal/config"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "beaver-distbuild", cmd.Use, "Root command should be 'beaver-distbuild'")
	assert.Equal(t, "1.0.0", cmd.Version, "Version should be 1.0.0")

	commands := cmd.Commands()
	assert.Len(t, commands, 2, "Should have 2 subcommands")

	commandNames := make(map[string]bool)
	for _, c := range commands {
		commandNames[c.Use] = true
	}

	assert.True(t, commandNames["run"], "Should have 'run' command")
	assert.True(t, commandNames["status"], "Should have 'status' command")

	configFlag := cmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, configFlag, "Should have --config flag")
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue, "Default config path should be configs/default.yaml")
}

func TestBuildRunCommand(t *testing.T) {
	cmd := buildRunCommand()

	assert.NotNil(t, cmd, "buildRunCommand should return a non-nil command")
	assert.Equal(t, "run", cmd.Use, "Command should be 'run'")
	assert.Contains(t, cmd.Short, "Start", "Short description should mention 'Start'")
	assert.NotNil(t, cmd.RunE, "RunE function should be set")

	modeFlag := cmd.Flags().Lookup("mode")
	require.NotNil(t, modeFlag, "Should have --mode flag")
	assert.Equal(t, "worker", modeFlag.DefValue, "Default mode should be worker")

	orchestratorFlag := cmd.Flags().Lookup("orchestrator")
	assert.NotNil(t, orchestratorFlag, "Should have --orchestrator flag")

	workerIDFlag := cmd.Flags().Lookup("worker-id")
	require.NotNil(t, workerIDFlag, "Should have --worker-id flag")
	assert.Equal(t, "1", workerIDFlag.DefValue, "Default worker id should be 1")
}

func TestBuildStatusCommand(t *testing.T) {
	cmd := buildStatusCommand()

	assert.NotNil(t, cmd, "buildStatusCommand should return a non-nil command")
	assert.Equal(t, "status", cmd.Use, "Command should be 'status'")
	assert.Contains(t, cmd.Short, "status", "Short description should mention 'status'")
	assert.NotNil(t, cmd.RunE, "RunE function should be set")
}

func TestRunWorker_RequiresOrchestratorAddress(t *testing.T) {
	err := runWorker(config.Defaults(), "", 1)
	require.Error(t, err, "runWorker should require --orchestrator")
	assert.Contains(t, err.Error(), "orchestrator address is required")
}

func TestConfigLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	configContent := `
build_service_port: 7005
max_messages_per_batch: 50
replicate_outputs_to_workers: true
fire_forget_materialize_outputs: true
enable_distributed_source_hashing: true
worker_attach_timeout: 10m
remote_pip_timeout: 30s
max_retry_limit_on_remote_workers: 3
minimum_wait_for_remote_worker: 2s
attach_retry_interval: 15s
metrics:
  enabled: true
  port: 8080
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err, "failed to write test config file")

	configFile = configPath
	cfg, err := config.Load(configFile)
	require.NoError(t, err, "config.Load should not return an error")

	assert.Equal(t, 7005, cfg.BuildServicePort)
	assert.Equal(t, 50, cfg.MaxMessagesPerBatch)
	assert.True(t, cfg.ReplicateOutputsToWorkers)
	assert.True(t, cfg.FireForgetMaterializeOutputs)
	assert.True(t, cfg.EnableDistributedSourceHashing)
	assert.Equal(t, 10*time.Minute, cfg.WorkerAttachTimeout)
	assert.Equal(t, 30*time.Second, cfg.RemotePipTimeout)
	assert.Equal(t, 3, cfg.MaxRetryLimitOnRemoteWorkers)
	assert.Equal(t, 2*time.Second, cfg.MinimumWaitForRemoteWorker)
	assert.Equal(t, 15*time.Second, cfg.AttachRetryInterval)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 8080, cfg.Metrics.Port)
}

func TestConfigLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	assert.Error(t, err, "config.Load should return an error for nonexistent file")
	assert.Contains(t, err.Error(), "config: read")
}

func TestConfigLoad_PartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	partial := `
build_service_port: 9999
`
	err := os.WriteFile(configPath, []byte(partial), 0644)
	require.NoError(t, err, "failed to write partial config")

	cfg, err := config.Load(configPath)
	require.NoError(t, err, "partial config should parse successfully")
	assert.Equal(t, 9999, cfg.BuildServicePort)
	// Unset fields should still carry Defaults(), not zero values.
	assert.Equal(t, 45*time.Minute, cfg.WorkerAttachTimeout)
	assert.Equal(t, 60*time.Second, cfg.AttachRetryInterval)
}

func TestShowStatus(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "status_config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("build_service_port: 7001\n"), 0644))

	configFile = configPath
	err := showStatus()
	assert.NoError(t, err, "showStatus should not return an error")
}

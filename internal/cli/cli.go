// ============================================================================
// Beaver-Distbuild CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: User-facing command line interface for the worker and
// orchestrator binaries, built on Cobra — grounded on the teacher's own
// internal/cli.BuildCLI()/buildRunCommand()/runSystem() shape, with the
// queue-specific run modes replaced by this runtime's worker/orchestrator
// modes.
//
// Command Structure:
//   beaver-distbuild                   # Root command
//   ├── run                            # Start a worker or orchestrator
//   │   ├── --mode worker|orchestrator
//   │   └── --config, -c               # Specify config file
//   ├── status                         # View config/runtime status
//   ├── --version                      # Display version information
//   └── --help                         # Display help information
//
// Signal Handling:
//   run captures SIGINT/SIGTERM and shuts down gracefully: a worker
//   gracefully stops its gRPC server, an orchestrator disconnects every
//   driver in its registry and then gracefully stops its gRPC server.
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	v1 "github.com/ChuLiYu/beaver-distbuild/api/proto/v1"
	"github.com/ChuLiYu/beaver-distbuild/internal/config"
	"github.com/ChuLiYu/beaver-distbuild/internal/connsupervisor"
	"github.com/ChuLiYu/beaver-distbuild/internal/execpool"
	"github.com/ChuLiYu/beaver-distbuild/internal/lifecycle"
	"github.com/ChuLiYu/beaver-distbuild/internal/metrics"
	"github.com/ChuLiYu/beaver-distbuild/internal/remoteworker"
	"github.com/ChuLiYu/beaver-distbuild/internal/transport"
	"github.com/ChuLiYu/beaver-distbuild/internal/workerside"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// defaultPoolWorkers is the execpool worker count a standalone worker
// process runs with; there is no spec §6.3 option for this since the real
// scheduler (out of scope per spec §1) would size it instead.
const defaultPoolWorkers = 16

var configFile string

// BuildCLI assembles the root command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "beaver-distbuild",
		Short: "Beaver-Distbuild: a worker-side distribution runtime for a distributed build system",
		Long: `Beaver-Distbuild implements the worker lifecycle, pip-step request
intake, notification/batching egress pipeline, and orchestrator remote-worker
driver for a BuildXL-style distributed build.`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var mode string
	var orchestratorAddr string
	var workerID uint32

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a worker or orchestrator process",
		Long:  "Start the process in worker or orchestrator mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			switch mode {
			case "worker":
				return runWorker(cfg, orchestratorAddr, types.WorkerID(workerID))
			case "orchestrator":
				return runOrchestrator(cfg)
			default:
				return fmt.Errorf("unknown mode %q (expected worker or orchestrator)", mode)
			}
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "worker", "Process mode: worker, orchestrator")
	cmd.Flags().StringVar(&orchestratorAddr, "orchestrator", "", "Orchestrator address (worker mode)")
	cmd.Flags().Uint32Var(&workerID, "worker-id", 1, "Worker id this process requests at Hello (worker mode)")

	return cmd
}

func runWorker(cfg config.Config, orchestratorAddr string, workerID types.WorkerID) error {
	if orchestratorAddr == "" {
		return fmt.Errorf("orchestrator address is required in worker mode (use --orchestrator)")
	}
	log := slog.Default()
	log.Info("starting worker", "orchestrator", orchestratorAddr, "port", cfg.BuildServicePort, "workerId", workerID)

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	dialer := transport.New()
	defer dialer.CloseAll()
	conn, err := dialer.Conn(orchestratorAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to orchestrator: %w", err)
	}

	invocation := types.InvocationID{Environment: "default"}
	client := workerside.NewOrchestratorClient(v1.NewOrchestratorServiceClient(conn), invocation)

	pool := execpool.New(cfg.MaxMessagesPerBatch * 4)
	if err := pool.Start(defaultPoolWorkers); err != nil {
		return fmt.Errorf("failed to start pip execution pool: %w", err)
	}
	defer pool.Stop()

	reporter := workerside.NewInputReporter(localContentManager{}, &localInterner{})
	sm := lifecycle.New()

	general := workerside.NewExecutionLogStream(types.LogKindGeneral)
	manifest := workerside.NewExecutionLogStream(types.LogKindManifest)

	// Worker must exist before RequestExit can be dispatched, but
	// NotificationManager needs an ExitRequester at construction time;
	// exitToWorker closes over the not-yet-assigned worker pointer and is
	// only ever invoked after Worker is constructed below.
	var worker *workerside.Worker
	exitToWorker := exitRequesterFunc(func(reason string, unexpected bool) {
		if worker != nil {
			worker.RequestExit(reason, unexpected)
		}
	})

	notify := workerside.NewNotificationManager(workerID, client, exitToWorker, cfg.MaxMessagesPerBatch, general, manifest, log)
	intake := workerside.NewRequestIntake(localScheduler{}, reporter, pool, notify)
	worker = workerside.NewWorker(workerID, invocation, sm, intake, notify, client, cfg.WorkerAttachTimeout, log)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.BuildServicePort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.BuildServicePort, err)
	}
	grpcServer := grpc.NewServer()
	v1.RegisterWorkerServiceServer(grpcServer, worker)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("worker gRPC server failed", "error", err)
		}
	}()
	log.Info("worker gRPC server listening", "port", cfg.BuildServicePort)

	go performHandshake(worker, sm, cfg, workerID, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("received shutdown signal, stopping worker")
	grpcServer.GracefulStop()
	return nil
}

// performHandshake drives phases 1 and 3 of spec §4.2 from the worker side:
// Hello, then (once the orchestrator's Attach RPC has landed and moved the
// lifecycle past Starting) AttachCompleted.
func performHandshake(worker *workerside.Worker, sm *lifecycle.SM, cfg config.Config, workerID types.WorkerID, log *slog.Logger) {
	helloCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	requestedID := workerID
	outcome, err := worker.SayHello(helloCtx, types.WorkerIdentity{Host: "127.0.0.1", Port: cfg.BuildServicePort}, &requestedID)
	if err != nil {
		log.Error("hello failed", "error", err)
		return
	}
	if outcome != types.HelloOk {
		log.Warn("hello declined", "outcome", outcome)
		return
	}

	deadline := time.Now().Add(cfg.WorkerAttachTimeout)
	for sm.Current() == types.StatusNotStarted || sm.Current() == types.StatusStarting {
		if cfg.WorkerAttachTimeout > 0 && time.Now().After(deadline) {
			log.Error("timed out waiting for attach")
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	attachCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := worker.CompleteAttach(attachCtx, types.WorkerCapacities{WorkerID: workerID}, nil); err != nil {
		log.Error("complete attach failed", "error", err)
	}
}

// exitRequesterFunc adapts a plain function to workerside.ExitRequester.
type exitRequesterFunc func(reason string, unexpected bool)

func (f exitRequesterFunc) RequestExit(reason string, unexpected bool) {
	f(reason, unexpected)
}

func runOrchestrator(cfg config.Config) error {
	log := slog.Default()
	log.Info("starting orchestrator", "port", cfg.BuildServicePort)

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	invocation := types.InvocationID{Environment: "default"}
	dialer := transport.New()
	defer dialer.CloseAll()

	var orch *remoteworker.Orchestrator
	gate := &localAttachGate{
		onAdmit: func(location types.WorkerIdentity, workerID types.WorkerID) {
			go registerDriver(orch, dialer, invocation, location, workerID, cfg, log)
		},
	}
	orch = remoteworker.NewOrchestrator(invocation, gate, log)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.BuildServicePort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.BuildServicePort, err)
	}
	grpcServer := grpc.NewServer()
	v1.RegisterOrchestratorServiceServer(grpcServer, orch)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("orchestrator gRPC server failed", "error", err)
		}
	}()
	log.Info("orchestrator gRPC server listening", "port", cfg.BuildServicePort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("received shutdown signal, disconnecting drivers")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	orch.DisconnectAll(ctx)
	grpcServer.GracefulStop()
	return nil
}

// registerDriver dials a newly admitted worker's address and wires a
// Driver for it, the orchestrator-side counterpart of the worker's own
// Hello/Attach/AttachCompleted sequence (spec §4.2, §4.6: "created when
// the orchestrator learns a worker location").
func registerDriver(orch *remoteworker.Orchestrator, dialer *transport.Dialer, invocation types.InvocationID, location types.WorkerIdentity, workerID types.WorkerID, cfg config.Config, log *slog.Logger) {
	if _, exists := orch.Driver(workerID); exists {
		return
	}

	conn, err := dialer.Conn(location.Address())
	if err != nil {
		log.Error("failed to dial worker", "workerId", workerID, "address", location.Address(), "error", err)
		return
	}
	client := remoteworker.NewWorkerClient(v1.NewWorkerServiceClient(conn), invocation)

	supervisor := connsupervisor.New(context.Background())
	driverCfg := remoteworker.DriverConfig{
		AttachRetryInterval:          cfg.AttachRetryInterval,
		RemotePipTimeout:             cfg.RemotePipTimeout,
		MaxRetryLimitOnRemoteWorkers: cfg.MaxRetryLimitOnRemoteWorkers,
		FireForgetMaterializeOutputs: cfg.FireForgetMaterializeOutputs,
	}
	driver := remoteworker.NewDriver(workerID, invocation, client, localHashSource{}, supervisor, driverCfg, log)
	orch.Register(workerID, driver)

	driver.Start(context.Background(), types.BuildStartData{
		WorkerID:             workerID,
		OrchestratorLocation: location,
	})
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration status",
		Long:  "Display the effective configuration this process would run with",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
	return cmd
}

func showStatus() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("\n=== Beaver-Distbuild Configuration ===")
	fmt.Printf("Config file:                    %s\n", configFile)
	fmt.Printf("Build service port:             %d\n", cfg.BuildServicePort)
	fmt.Printf("Max messages per batch:         %d\n", cfg.MaxMessagesPerBatch)
	fmt.Printf("Replicate outputs to workers:   %t\n", cfg.ReplicateOutputsToWorkers)
	fmt.Printf("Fire-forget MaterializeOutputs: %t\n", cfg.FireForgetMaterializeOutputs)
	fmt.Printf("Distributed source hashing:     %t\n", cfg.EnableDistributedSourceHashing)
	fmt.Printf("Worker attach timeout:          %s\n", cfg.WorkerAttachTimeout)
	fmt.Printf("Remote pip timeout:             %s\n", cfg.RemotePipTimeout)
	fmt.Printf("Max retry on remote workers:    %d\n", cfg.MaxRetryLimitOnRemoteWorkers)
	fmt.Printf("Min wait for remote worker:     %s\n", cfg.MinimumWaitForRemoteWorker)
	if cfg.Metrics.Enabled {
		fmt.Printf("Metrics:                        enabled on :%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Println("Metrics:                        disabled")
	}
	fmt.Println()
	return nil
}

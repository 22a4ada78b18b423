// ============================================================================
// Package: internal/remoteworker
// File: driver.go
// Function: Driver — the orchestrator's per-attached-worker component (spec
// §4.6): drives the attach retry loop, exposes the per-step public methods
// the scheduler calls, and classifies single-pip failures into a retry
// reason. Grounded on the teacher's Controller (the attach retry loop
// mirrors Controller.Start's crash-recovery-then-loop sequencing) and
// JobManager (the per-pip retry-count bookkeeping mirrors its MaxRetry
// handling in job_manager.go).
// ============================================================================

package remoteworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ChuLiYu/beaver-distbuild/internal/connsupervisor"
	"github.com/ChuLiYu/beaver-distbuild/internal/lifecycle"
	"github.com/ChuLiYu/beaver-distbuild/internal/piptracker"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// DriverConfig tunes one Driver instance (spec §4.6, §6.3).
type DriverConfig struct {
	AttachRetryInterval          time.Duration // default 60s
	RemotePipTimeout              time.Duration // 0 disables the race-a-timer behavior
	MaxRetryLimitOnRemoteWorkers int
	FireForgetMaterializeOutputs bool
}

// Driver is the orchestrator's view of one remote worker.
type Driver struct {
	workerID   types.WorkerID
	invocation types.InvocationID
	sm         *lifecycle.SM
	client     *WorkerClient
	batcher    *Batcher
	completions *piptracker.CompletionTable
	supervisor *connsupervisor.Supervisor
	cfg        DriverConfig

	mu            sync.Mutex
	seq           uint64
	retryCounts   map[types.PipID]int
	everConnected bool
	earlyReleased bool

	disconnectOnce sync.Once
	wg             sync.WaitGroup
	log            *slog.Logger
}

// NewDriver wires a Driver around a worker client, hash source, and
// completion table. The caller supplies a Supervisor whose Context() is
// used to unblock in-flight awaits on connection loss.
func NewDriver(workerID types.WorkerID, invocation types.InvocationID, client *WorkerClient, hashSource HashSource, supervisor *connsupervisor.Supervisor, cfg DriverConfig, log *slog.Logger) *Driver {
	if cfg.AttachRetryInterval <= 0 {
		cfg.AttachRetryInterval = 60 * time.Second
	}
	if cfg.MaxRetryLimitOnRemoteWorkers <= 0 {
		cfg.MaxRetryLimitOnRemoteWorkers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	completions := piptracker.NewCompletionTable()
	d := &Driver{
		workerID:    workerID,
		invocation:  invocation,
		sm:          lifecycle.New(),
		client:      client,
		completions: completions,
		supervisor:  supervisor,
		cfg:         cfg,
		retryCounts: make(map[types.PipID]int),
		log:         log,
	}
	d.batcher = NewBatcher(workerID, client, hashSource, BatcherConfig{MaxMessagesPerBatch: 16}, d.onBatcherFailure, log)
	return d
}

// Status exposes the driver's lifecycle state for the orchestrator's
// registry and telemetry.
func (d *Driver) Status() types.WorkerStatus { return d.sm.Current() }

func (d *Driver) onBatcherFailure(err error) {
	d.supervisor.Fail(types.CauseUnrecoverableFailure, fmt.Sprintf("ExecutePips failed: %v", err))
}

// Start begins the attach retry loop (spec §4.6: "retry Attach every 60s
// until success, cancellation, or scheduler completion"). ctx cancellation
// and supervisor failure both stop the loop. A second goroutine watches
// the supervisor for a connection failure raised after that point (a
// batcher send failure, a remote pip timeout) and disconnects
// automatically, since nothing else is watching the supervisor's context
// once attachLoop has returned.
func (d *Driver) Start(ctx context.Context, buildStart types.BuildStartData) {
	d.sm.TryTransition(types.StatusNotStarted, types.StatusStarting)
	d.wg.Add(1)
	go d.attachLoop(ctx, buildStart)
	go d.watchConnection(ctx)
}

// watchConnection implements spec §7's ConnectionLost row: the first time
// the supervisor declares the connection lost, the driver must cancel
// sends, resolve all pending futures with a retryable failure, and
// transition to Stopping/Stopped — exactly what Disconnect already does.
// Disconnect is idempotent (disconnectOnce), so this races harmlessly
// against an explicit Disconnect call from the orchestrator.
func (d *Driver) watchConnection(ctx context.Context) {
	<-d.supervisor.Context().Done()
	d.Disconnect(ctx, nil, false)
}

func (d *Driver) attachLoop(ctx context.Context, buildStart types.BuildStartData) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.supervisor.Context().Done():
			return
		default:
		}

		err := d.client.Attach(ctx, buildStart)
		if err == nil {
			d.mu.Lock()
			d.everConnected = true
			d.mu.Unlock()
			d.sm.TryTransition(types.StatusStarting, types.StatusStarted)
			return
		}
		d.log.Warn("attach failed, retrying", "workerId", d.workerID, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-d.supervisor.Context().Done():
			return
		case <-time.After(d.cfg.AttachRetryInterval):
		}
	}
}

// OnAttachCompleted is called by the orchestrator server handler once the
// worker reports its capacities (spec §4.2 phase 3): transitions to
// Running and starts the outbound batcher.
func (d *Driver) OnAttachCompleted(capacities types.WorkerCapacities) {
	d.sm.ForceTransition(types.StatusRunning)
	d.batcher.Start()
}

// NotifyPipCompletion resolves the pending future for pip, if any (spec
// §4.6's PipCompletionTable.NotifyPipCompletion).
func (d *Driver) NotifyPipCompletion(pip types.PipID, data types.PipCompletionData) bool {
	return d.completions.NotifyCompletion(pip, data)
}

// MarkEarlyReleased records that the orchestrator has released this worker
// before or during attach (spec §4.2's early-release semantics).
func (d *Driver) MarkEarlyReleased() {
	d.mu.Lock()
	d.earlyReleased = true
	d.mu.Unlock()
}

func (d *Driver) nextSeq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return d.seq
}

// MaterializeInputs, CacheLookup, ExecuteProcess, ExecuteIpc, PostProcess,
// and MaterializeOutputs are the per-step public methods of spec §4.6.

func (d *Driver) MaterializeInputs(ctx context.Context, pip types.PipID, pipType types.PipType, priority int32) (types.PipCompletionData, types.RetryReason, error) {
	return d.run(ctx, pip, types.StepMaterializeInputs, pipType, priority, false)
}

func (d *Driver) CacheLookup(ctx context.Context, pip types.PipID, pipType types.PipType, priority int32) (types.PipCompletionData, types.RetryReason, error) {
	return d.run(ctx, pip, types.StepCacheLookup, pipType, priority, false)
}

func (d *Driver) ExecuteProcess(ctx context.Context, pip types.PipID, priority int32) (types.PipCompletionData, types.RetryReason, error) {
	return d.run(ctx, pip, types.StepExecuteProcess, types.PipTypeProcess, priority, false)
}

func (d *Driver) ExecuteIpc(ctx context.Context, pip types.PipID, priority int32) (types.PipCompletionData, types.RetryReason, error) {
	return d.run(ctx, pip, types.StepExecuteNonProcessPip, types.PipTypeIPC, priority, false)
}

func (d *Driver) PostProcess(ctx context.Context, pip types.PipID, pipType types.PipType, priority int32) (types.PipCompletionData, types.RetryReason, error) {
	return d.run(ctx, pip, types.StepPostProcess, pipType, priority, false)
}

// MaterializeOutputs honors DriverConfig.FireForgetMaterializeOutputs (spec
// §4.6: "may be configured fire-and-forget").
func (d *Driver) MaterializeOutputs(ctx context.Context, pip types.PipID, pipType types.PipType, priority int32) (types.PipCompletionData, types.RetryReason, error) {
	return d.run(ctx, pip, types.StepMaterializeOutputs, pipType, priority, d.cfg.FireForgetMaterializeOutputs)
}

func (d *Driver) run(ctx context.Context, pip types.PipID, step types.PipStep, pipType types.PipType, priority int32, fireAndForget bool) (types.PipCompletionData, types.RetryReason, error) {
	future, err := d.completions.Track(pip, step)
	if err != nil {
		return types.PipCompletionData{}, types.RetryReasonDistributionFailure, err
	}

	req := types.SinglePipBuildRequest{
		PipID:          pip,
		Step:           step,
		PipType:        pipType,
		Priority:       priority,
		SequenceNumber: d.nextSeq(),
	}
	d.batcher.Enqueue(req, future)

	if fireAndForget {
		if result, resolved := future.Resolved(); resolved {
			d.completions.Forget(pip)
			return d.interpret(step, pip, result)
		}
		// Not resolved yet: the caller does not wait (spec §4.6). The pip
		// remains tracked; a later NotifyPipCompletion or FailAll resolves
		// it asynchronously and the result is simply never observed here.
		return types.PipCompletionData{PipID: pip, Step: step}, types.RetryReasonNone, nil
	}

	awaitCtx := ctx
	var cancel context.CancelFunc
	if d.cfg.RemotePipTimeout > 0 {
		awaitCtx, cancel = context.WithTimeout(ctx, d.cfg.RemotePipTimeout)
		defer cancel()
	}

	result, err := future.Await(awaitCtx)
	if err != nil {
		d.completions.Forget(pip)
		if d.cfg.RemotePipTimeout > 0 && ctx.Err() == nil {
			// The outer ctx is still alive; only the per-pip race timed out.
			d.supervisor.Fail(types.CauseRemotePipTimeout, fmt.Sprintf("pip %d step %s exceeded remote pip timeout", pip, step))
			return types.PipCompletionData{}, types.RetryReasonRemoteWorkerFailure, types.NewDistributionError(types.CauseRemotePipTimeout, "remote pip timeout")
		}
		return types.PipCompletionData{}, types.RetryReasonDistributionFailure, err
	}
	d.completions.Forget(pip)
	return d.interpret(step, pip, result)
}

func (d *Driver) interpret(step types.PipStep, pip types.PipID, result piptracker.Result) (types.PipCompletionData, types.RetryReason, error) {
	if result.Err != nil {
		return result.Data, result.Retry, result.Err
	}
	if result.Data.Failed {
		return result.Data, d.classifyFailure(step, pip), nil
	}
	return result.Data, types.RetryReasonNone, nil
}

// classifyFailure implements spec §4.6's retry classification table.
func (d *Driver) classifyFailure(step types.PipStep, pip types.PipID) types.RetryReason {
	if step == types.StepMaterializeOutputs {
		return types.RetryReasonNotMaterialized
	}
	d.mu.Lock()
	d.retryCounts[pip]++
	count := d.retryCounts[pip]
	d.mu.Unlock()
	if count < d.cfg.MaxRetryLimitOnRemoteWorkers {
		return types.RetryReasonRemoteWorkerFailure
	}
	return types.RetryReasonDistributionFailure
}

// Disconnect tears the driver down (spec §4.6's Disconnect, spec §7's
// ConnectionLost): stops the batcher, fails every still-pending pip with
// RemoteWorkerFailure (retryable — DistributionFailure is the terminal
// classification used elsewhere, not this one), and, if the worker was ever
// attached, issues a best-effort Exit RPC. Logs a "problematic worker"
// warning if the worker was ever
// attached but the disconnect was not the result of a clean Exit reply
// (cleanExit=false). Idempotent: only the first call (whether from the
// orchestrator or from watchConnection detecting a failed send) has any
// effect; concurrent/later callers block until that one finishes, then
// return.
func (d *Driver) Disconnect(ctx context.Context, failure *string, cleanExit bool) {
	d.disconnectOnce.Do(func() {
		d.sm.ForceTransition(types.StatusStopping)
		d.supervisor.Fail(types.CauseUnrecoverableFailure, "driver disconnected")
		d.batcher.Stop()
		d.completions.FailAll(types.RetryReasonRemoteWorkerFailure, types.ErrConnectionLost)

		d.mu.Lock()
		everConnected := d.everConnected
		d.mu.Unlock()

		if everConnected {
			if _, err := d.client.Exit(ctx, types.BuildEndData{Failure: failure}); err != nil {
				d.log.Warn("exit rpc failed during disconnect", "workerId", d.workerID, "error", err)
			}
			if !cleanExit {
				d.log.Warn("problematic worker: connection lost without a clean exit", "workerId", d.workerID)
			}
		}

		d.sm.ForceTransition(types.StatusStopped)
		d.wg.Wait()
	})
}

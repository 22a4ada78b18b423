// ============================================================================
// Package: internal/workerside
// File: intake.go
// Function: RequestIntake (spec §4.3) — idempotent admission of pip-step
// requests from ExecutePips RPC threads, fan-out to the scheduler via
// internal/execpool, per-step completion tracking via internal/piptracker.
// Grounded on the teacher's Controller.dispatchLoop admission path
// (internal/controller/controller.go), narrowed from a pull/batch-pop model
// to a push model matching an RPC handler that must not block.
// ============================================================================

package workerside

import (
	"context"
	"fmt"
	"sync"

	"github.com/ChuLiYu/beaver-distbuild/internal/execpool"
	"github.com/ChuLiYu/beaver-distbuild/internal/piptracker"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// CompletionSink receives a step's terminal result once the scheduler's
// observer reports EndStep, or once the request is failed synchronously
// (an assertion violation, an input-report failure). NotificationManager
// implements this to fold completions into its outbound batches.
type CompletionSink interface {
	Complete(pip types.PipID, step types.PipStep, data types.PipCompletionData)
}

// RequestIntake admits SinglePipBuildRequests and dispatches accepted ones
// to the scheduler.
type RequestIntake struct {
	admitter  *piptracker.SequenceAdmitter
	scheduler Scheduler
	reporter  *InputReporter
	pool      *execpool.Pool
	sink      CompletionSink

	mu      sync.Mutex
	pending map[types.PipStepKey]struct{}
}

// NewRequestIntake wires a RequestIntake around a scheduler, input
// reporter, executor pool, and completion sink.
func NewRequestIntake(scheduler Scheduler, reporter *InputReporter, pool *execpool.Pool, sink CompletionSink) *RequestIntake {
	return &RequestIntake{
		admitter:  piptracker.NewSequenceAdmitter(),
		scheduler: scheduler,
		reporter:  reporter,
		pool:      pool,
		sink:      sink,
		pending:   make(map[types.PipStepKey]struct{}),
	}
}

// Admit processes one ExecutePips batch (spec §4.3). It must not block the
// calling RPC goroutine: input reporting and step dispatch both run on the
// executor pool.
func (ri *RequestIntake) Admit(batch types.PipBuildRequest) {
	accepted := make([]types.SinglePipBuildRequest, 0, len(batch.Pips))
	for _, req := range batch.Pips {
		if ri.admitter.Admit(req.SequenceNumber) {
			ri.track(req.PipID, req.Step)
			accepted = append(accepted, req)
		}
	}
	if len(accepted) == 0 {
		return
	}

	hashes := batch.Hashes
	_ = ri.pool.Submit(func(ctx context.Context) {
		ri.dispatch(ctx, accepted, hashes)
	})
}

func (ri *RequestIntake) track(pip types.PipID, step types.PipStep) {
	ri.mu.Lock()
	ri.pending[types.PipStepKey{PipID: pip, Step: step}] = struct{}{}
	ri.mu.Unlock()
}

func (ri *RequestIntake) untrack(pip types.PipID, step types.PipStep) {
	ri.mu.Lock()
	delete(ri.pending, types.PipStepKey{PipID: pip, Step: step})
	ri.mu.Unlock()
}

// Pending returns the (pip, step) entries still awaiting a terminal
// result; FailAllPending uses it to fail each of them (spec invariant 2).
func (ri *RequestIntake) Pending() []types.PipStepKey {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	keys := make([]types.PipStepKey, 0, len(ri.pending))
	for k := range ri.pending {
		keys = append(keys, k)
	}
	return keys
}

// FailAllPending resolves every still-pending entry with a synthetic
// failure, used when the lifecycle machine enters Stopped (spec §4.1).
func (ri *RequestIntake) FailAllPending(message string) {
	for _, k := range ri.Pending() {
		ri.untrack(k.PipID, k.Step)
		ri.sink.Complete(k.PipID, k.Step, types.PipCompletionData{
			PipID:          k.PipID,
			Step:           k.Step,
			Failed:         true,
			FailureMessage: message,
		})
	}
}

func (ri *RequestIntake) dispatch(ctx context.Context, reqs []types.SinglePipBuildRequest, hashes []types.FileArtifactKeyedHash) {
	var failedFiles []types.FileArtifactKeyedHash
	if ri.reporter != nil && len(hashes) > 0 {
		// All accepted requests in the batch share one input report; the
		// first pip id is representative for directory-membership
		// attribution (spec §4.3 does not distinguish per-pip reporting
		// within a single ExecutePips batch).
		failedFiles = ri.reporter.Report(hashes, reqs[0].PipID)
	}

	for _, req := range reqs {
		if len(failedFiles) > 0 {
			ri.completeWithFailure(req, types.ErrVerifySourceFilesFailed)
			continue
		}
		ri.startStep(req)
	}
}

func (ri *RequestIntake) startStep(req types.SinglePipBuildRequest) {
	// Hard assertion per spec §4.3: steps other than MaterializeOutputs
	// require pipType in {Process, IPC}.
	if req.Step != types.StepMaterializeOutputs && req.PipType != types.PipTypeProcess && req.PipType != types.PipTypeIPC {
		panic(fmt.Sprintf("workerside: pip %d step %s requires Process or IPC pip type, got %v", req.PipID, req.Step, req.PipType))
	}
	ri.scheduler.StartPipStep(req.PipID, stepObserver{ri: ri}, req.Step, req.Priority)
}

func (ri *RequestIntake) completeWithFailure(req types.SinglePipBuildRequest, err error) {
	ri.untrack(req.PipID, req.Step)
	ri.sink.Complete(req.PipID, req.Step, types.PipCompletionData{
		PipID:          req.PipID,
		Step:           req.Step,
		Failed:         true,
		FailureMessage: err.Error(),
	})
}

// stepObserver bridges the scheduler's StepObserver callbacks back into
// RequestIntake's bookkeeping and the completion sink.
type stepObserver struct {
	ri *RequestIntake
}

func (o stepObserver) StartStep(pip types.PipID, step types.PipStep) {
	// No cache-miss hint injection in this implementation; the hook exists
	// so a future scheduler integration has somewhere to call back into.
}

func (o stepObserver) EndStep(pip types.PipID, step types.PipStep, data types.PipCompletionData) {
	o.ri.untrack(pip, step)
	o.ri.sink.Complete(pip, step, data)
}

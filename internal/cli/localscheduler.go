// ============================================================================
// Package: internal/cli
// File: localscheduler.go
// Function: A trivial in-process stand-in for the collaborators the
// distribution runtime treats as out-of-scope (spec §1/§6.4): the pip
// scheduler, the content-addressed file manager, and the path interner. A
// real deployment wires the worker side to BuildXL's own scheduler and
// cache; this binary has nothing of the sort to wire to, so it runs pip
// steps as an immediate no-op completion. This lets `beaver-distbuild run
// --mode worker` come up and serve real Attach/ExecutePips/Exit traffic
// end-to-end for local testing, the same role the teacher's cmd/demo plays
// for its own Controller.
// ============================================================================

package cli

import (
	"sync"
	"sync/atomic"

	"github.com/ChuLiYu/beaver-distbuild/internal/workerside"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// localScheduler completes every admitted step immediately and successfully.
type localScheduler struct{}

func (localScheduler) StartPipStep(pip types.PipID, observer workerside.StepObserver, step types.PipStep, priority int32) {
	observer.StartStep(pip, step)
	observer.EndStep(pip, step, types.PipCompletionData{PipID: pip, Step: step})
}

// localContentManager accepts every reported file/directory without
// consulting a real cache.
type localContentManager struct{}

func (localContentManager) ReportWorkerPipInputContent(file types.FileArtifactKeyedHash) bool {
	return true
}

func (localContentManager) ReportDynamicDirectoryContents(dir types.AssociatedDirectory, files []types.FileArtifactKeyedHash, origin types.PipID) {
}

// localInterner hands out sequential path ids, matching the fake used in
// the workerside test suite but kept process-wide here.
type localInterner struct {
	mu   sync.Mutex
	next uint32
}

func (i *localInterner) Intern(path string) uint32 {
	return uint32(atomic.AddUint32(&i.next, 1))
}

// localHashSource reports no required hashes; distributed source hashing
// (spec §4.6/§6.3) is itself backed by an out-of-scope collaborator this
// binary has nothing real to wire to.
type localHashSource struct{}

func (localHashSource) RequiredHashes(pip types.PipID) []types.FileArtifactKeyedHash {
	return nil
}

// localAttachGate admits every Hello without reservation bookkeeping — a
// real orchestrator ties this to the scheduler's view of worker slots
// (spec §4.2 phase 1). onAdmit, if set, is invoked for every admitted
// worker so the caller can create and register its Driver; a dynamic
// worker that sent no RequestedID is assigned one here.
type localAttachGate struct {
	mu      sync.Mutex
	nextID  uint32
	onAdmit func(location types.WorkerIdentity, workerID types.WorkerID)
}

func (g *localAttachGate) Admit(location types.WorkerIdentity, requestedID *types.WorkerID) types.HelloOutcome {
	workerID := g.assignID(requestedID)
	if g.onAdmit != nil {
		g.onAdmit(location, workerID)
	}
	return types.HelloOk
}

func (g *localAttachGate) assignID(requestedID *types.WorkerID) types.WorkerID {
	if requestedID != nil {
		return *requestedID
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	return types.WorkerID(g.nextID)
}

// ============================================================================
// Beaver-Distbuild Worker Side
// ============================================================================
//
// Package: internal/workerside
// File: scheduler.go
// Function: Interfaces consumed from the local pip scheduler and
// content-addressed cache/file-content manager (spec §6.4). These are
// out-of-scope collaborators per spec §1 ("assumed to exist"); this file
// only pins down the contract the worker side depends on, in the same
// spirit as the teacher's internal/worker/source.go JobSource interface
// that lets Controller depend on an abstract job supplier rather than a
// concrete implementation.
//
// ============================================================================

package workerside

import "github.com/ChuLiYu/beaver-distbuild/pkg/types"

// StepObserver receives the two callbacks a scheduler step reports through.
type StepObserver interface {
	// StartStep is invoked once the scheduler has accepted the step and
	// gives the worker a chance to inject cache-miss hints before the step
	// actually begins materializing work.
	StartStep(pip types.PipID, step types.PipStep)
	// EndStep delivers the final result once the step has run to
	// completion, failed, or was cancelled.
	EndStep(pip types.PipID, step types.PipStep, data types.PipCompletionData)
}

// Scheduler is the local pip scheduler/executor the worker dispatches
// admitted steps to. Out of scope per spec §1; only the entry point the
// core depends on is pinned down here.
type Scheduler interface {
	// StartPipStep asynchronously drives the given pip step, reporting
	// progress and the final result through observer.
	StartPipStep(pip types.PipID, observer StepObserver, step types.PipStep, priority int32)
}

// FileContentManager is the content-addressed cache collaborator consumed
// by InputReporter (spec §6.4).
type FileContentManager interface {
	// ReportWorkerPipInputContent records that `file` is available with the
	// given hash/size for the requesting pip. Returns false on failure
	// (content unavailable, hash mismatch, …).
	ReportWorkerPipInputContent(file types.FileArtifactKeyedHash) bool
	// ReportDynamicDirectoryContents records the full membership of a
	// dynamic output directory in one call, once all of its member files
	// have been grouped in a single pass.
	ReportDynamicDirectoryContents(dir types.AssociatedDirectory, files []types.FileArtifactKeyedHash, origin types.PipID)
}

// PathInterner allocates local intern-table entries for paths sent over
// the wire as strings rather than shared intern-table indices (spec §4.3,
// "path sent as string must be interned before use").
type PathInterner interface {
	Intern(path string) uint32
}

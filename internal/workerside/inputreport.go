// ============================================================================
// Package: internal/workerside
// File: inputreport.go
// Function: InputReporter (spec §4.3) — translates the hash/path/directory
// descriptors carried in a PipBuildRequest into scheduler file-content
// facts before any admitted step for the batch is allowed to start.
// ============================================================================

package workerside

import (
	"sync"

	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// InputReporter reports a batch's file hashes to the file-content manager,
// grouping per-directory membership in a deterministic second pass.
type InputReporter struct {
	contentManager FileContentManager
	interner       PathInterner
}

// NewInputReporter creates an InputReporter bound to a content manager and
// path interner.
func NewInputReporter(cm FileContentManager, interner PathInterner) *InputReporter {
	return &InputReporter{contentManager: cm, interner: interner}
}

// Report processes one batch's hash list ahead of starting any step that
// depends on it. It parallelizes the per-file reporting phase, then builds
// per-directory membership in a single deterministic pass over the
// (already-interned) results, matching spec §4.3's "this work parallelizes
// over hashes; directory-map construction is single-pass after the
// parallel phase to preserve determinism."
//
// Returns the list of files that failed to report; a non-empty result
// means the caller must fail every admitted step in this batch with
// VerifySourceFilesFailed (spec §4.3, §7).
func (r *InputReporter) Report(files []types.FileArtifactKeyedHash, pip types.PipID) []types.FileArtifactKeyedHash {
	interned := make([]types.FileArtifactKeyedHash, len(files))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []types.FileArtifactKeyedHash

	for i, f := range files {
		wg.Add(1)
		go func(i int, f types.FileArtifactKeyedHash) {
			defer wg.Done()
			if !f.IsInterned() && r.interner != nil {
				f.PathIntID = int32(r.interner.Intern(f.PathString))
			}
			ok := r.contentManager.ReportWorkerPipInputContent(f)
			mu.Lock()
			interned[i] = f
			if !ok {
				failed = append(failed, f)
			}
			mu.Unlock()
		}(i, f)
	}
	wg.Wait()

	if len(failed) > 0 {
		return failed
	}

	// Second pass: group files that belong to exactly one dynamic
	// directory and report that directory's membership in one call.
	byDir := make(map[dirKey][]types.FileArtifactKeyedHash)
	dirs := make(map[dirKey]types.AssociatedDirectory)
	for _, f := range interned {
		if len(f.AssociatedDirectories) != 1 {
			continue
		}
		d := f.AssociatedDirectories[0]
		k := dirKey{path: d.DirPath, seal: d.SealID}
		byDir[k] = append(byDir[k], f)
		dirs[k] = d
	}
	for k, members := range byDir {
		r.contentManager.ReportDynamicDirectoryContents(dirs[k], members, pip)
	}

	return nil
}

type dirKey struct {
	path string
	seal uint64
}

package workerside

import (
	"sync"

	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// fakeScheduler is a deterministic, synchronous Scheduler test double:
// StartPipStep runs the configured outcome for (pip, step) immediately on
// the calling goroutine (the execpool worker goroutine in real use),
// grounded in the teacher's own synchronous fakes in worker_test.go.
type fakeScheduler struct {
	mu        sync.Mutex
	started   []types.PipStepKey
	outcomes  map[types.PipStepKey]types.PipCompletionData
	fallback  types.PipCompletionData
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{outcomes: make(map[types.PipStepKey]types.PipCompletionData)}
}

func (f *fakeScheduler) setOutcome(pip types.PipID, step types.PipStep, data types.PipCompletionData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[types.PipStepKey{PipID: pip, Step: step}] = data
}

func (f *fakeScheduler) StartPipStep(pip types.PipID, observer StepObserver, step types.PipStep, priority int32) {
	f.mu.Lock()
	f.started = append(f.started, types.PipStepKey{PipID: pip, Step: step})
	data, ok := f.outcomes[types.PipStepKey{PipID: pip, Step: step}]
	f.mu.Unlock()

	observer.StartStep(pip, step)
	if !ok {
		data = types.PipCompletionData{PipID: pip, Step: step}
	}
	observer.EndStep(pip, step, data)
}

func (f *fakeScheduler) startedKeys() []types.PipStepKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.PipStepKey, len(f.started))
	copy(out, f.started)
	return out
}

// fakeFileContentManager always reports success unless a path is listed in
// failPaths.
type fakeFileContentManager struct {
	mu         sync.Mutex
	failPaths  map[string]bool
	reported   []types.FileArtifactKeyedHash
	dirReports []dirReport
}

type dirReport struct {
	dir     types.AssociatedDirectory
	members []types.FileArtifactKeyedHash
	origin  types.PipID
}

func newFakeFileContentManager(failPaths ...string) *fakeFileContentManager {
	fp := make(map[string]bool, len(failPaths))
	for _, p := range failPaths {
		fp[p] = true
	}
	return &fakeFileContentManager{failPaths: fp}
}

func (m *fakeFileContentManager) ReportWorkerPipInputContent(file types.FileArtifactKeyedHash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reported = append(m.reported, file)
	return !m.failPaths[file.PathString]
}

func (m *fakeFileContentManager) ReportDynamicDirectoryContents(dir types.AssociatedDirectory, files []types.FileArtifactKeyedHash, origin types.PipID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirReports = append(m.dirReports, dirReport{dir: dir, members: files, origin: origin})
}

// fakeInterner assigns sequential ids starting at 1.
type fakeInterner struct {
	mu   sync.Mutex
	next uint32
}

func newFakeInterner() *fakeInterner { return &fakeInterner{next: 1} }

func (i *fakeInterner) Intern(path string) uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.next
	i.next++
	return id
}

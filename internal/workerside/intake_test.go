package workerside

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/beaver-distbuild/internal/execpool"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

type fakeSink struct {
	mu        sync.Mutex
	completed []types.PipCompletionData
}

func (s *fakeSink) Complete(pip types.PipID, step types.PipStep, data types.PipCompletionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, data)
}

func (s *fakeSink) results() []types.PipCompletionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PipCompletionData, len(s.completed))
	copy(out, s.completed)
	return out
}

func newTestPool(t *testing.T) *execpool.Pool {
	t.Helper()
	p := execpool.New(16)
	require.NoError(t, p.Start(2))
	t.Cleanup(p.Stop)
	return p
}

func waitForCompletions(t *testing.T, sink *fakeSink, n int) []types.PipCompletionData {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r := sink.results(); len(r) >= n {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d completions, got %d", n, len(sink.results()))
	return nil
}

func TestRequestIntakeAdmitsAndDispatches(t *testing.T) {
	scheduler := newFakeScheduler()
	scheduler.setOutcome(types.PipID(1), types.StepExecuteProcess, types.PipCompletionData{PipID: 1, Step: types.StepExecuteProcess, ResultBlob: []byte("ok")})
	sink := &fakeSink{}
	pool := newTestPool(t)
	ri := NewRequestIntake(scheduler, nil, pool, sink)

	ri.Admit(types.PipBuildRequest{Pips: []types.SinglePipBuildRequest{
		{PipID: 1, Step: types.StepExecuteProcess, PipType: types.PipTypeProcess, SequenceNumber: 1},
	}})

	results := waitForCompletions(t, sink, 1)
	assert.Equal(t, "ok", string(results[0].ResultBlob))
}

func TestRequestIntakeDropsDuplicateSequenceNumber(t *testing.T) {
	scheduler := newFakeScheduler()
	sink := &fakeSink{}
	pool := newTestPool(t)
	ri := NewRequestIntake(scheduler, nil, pool, sink)

	req := types.PipBuildRequest{Pips: []types.SinglePipBuildRequest{
		{PipID: 1, Step: types.StepExecuteProcess, PipType: types.PipTypeProcess, SequenceNumber: 5},
	}}
	ri.Admit(req)
	ri.Admit(req)

	waitForCompletions(t, sink, 1)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, sink.results(), 1)
	assert.Len(t, scheduler.startedKeys(), 1)
}

func TestRequestIntakeInputReportFailureFailsWholeBatch(t *testing.T) {
	scheduler := newFakeScheduler()
	cm := newFakeFileContentManager("/src/bad.txt")
	reporter := NewInputReporter(cm, newFakeInterner())
	sink := &fakeSink{}
	pool := newTestPool(t)
	ri := NewRequestIntake(scheduler, reporter, pool, sink)

	ri.Admit(types.PipBuildRequest{
		Pips: []types.SinglePipBuildRequest{
			{PipID: 1, Step: types.StepExecuteProcess, PipType: types.PipTypeProcess, SequenceNumber: 1},
			{PipID: 2, Step: types.StepExecuteProcess, PipType: types.PipTypeProcess, SequenceNumber: 2},
		},
		Hashes: []types.FileArtifactKeyedHash{{PathString: "/src/bad.txt"}},
	})

	results := waitForCompletions(t, sink, 2)
	for _, r := range results {
		assert.True(t, r.Failed)
	}
	assert.Empty(t, scheduler.startedKeys())
}

func TestRequestIntakeAssertsPipTypeForNonMaterializeSteps(t *testing.T) {
	scheduler := newFakeScheduler()
	sink := &fakeSink{}
	pool := newTestPool(t)
	ri := NewRequestIntake(scheduler, nil, pool, sink)

	assert.Panics(t, func() {
		ri.startStep(types.SinglePipBuildRequest{PipID: 1, Step: types.StepExecuteProcess, PipType: types.PipTypeOther})
	})
}

func TestRequestIntakeFailAllPendingResolvesEveryEntry(t *testing.T) {
	scheduler := newFakeScheduler()
	sink := &fakeSink{}
	pool := newTestPool(t)
	ri := NewRequestIntake(scheduler, nil, pool, sink)

	ri.track(types.PipID(1), types.StepExecuteProcess)
	ri.track(types.PipID(2), types.StepCacheLookup)

	ri.FailAllPending("connection lost / no result received")

	results := sink.results()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Failed)
		assert.Equal(t, "connection lost / no result received", r.FailureMessage)
	}
	assert.Empty(t, ri.Pending())
}

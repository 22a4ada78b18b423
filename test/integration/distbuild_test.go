// ============================================================================
// Beaver-Distbuild Integration Test Suite
// ============================================================================
//
// Package: test/integration
// File: distbuild_test.go
// Function: end-to-end scenarios from spec §8, driven over real gRPC
// between a worker process and an orchestrator process listening on
// loopback TCP. Grounded on the teacher's test/integration/recovery_test.go
// shape (spin up real components, drive real traffic, assert on outcome)
// generalized from a job-queue/raft cluster to one worker attached to one
// orchestrator.
//
// ============================================================================

package integration

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	v1 "github.com/ChuLiYu/beaver-distbuild/api/proto/v1"
	"github.com/ChuLiYu/beaver-distbuild/internal/connsupervisor"
	"github.com/ChuLiYu/beaver-distbuild/internal/execpool"
	"github.com/ChuLiYu/beaver-distbuild/internal/lifecycle"
	"github.com/ChuLiYu/beaver-distbuild/internal/remoteworker"
	"github.com/ChuLiYu/beaver-distbuild/internal/workerside"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// countingScheduler completes every admitted step immediately, recording
// the pip id of every step it starts so a test can assert a duplicate
// ExecutePips request drives the scheduler exactly once (spec §8 invariant
// 1 and scenario 2).
type countingScheduler struct {
	starts []types.PipID
}

func (s *countingScheduler) StartPipStep(pip types.PipID, observer workerside.StepObserver, step types.PipStep, priority int32) {
	s.starts = append(s.starts, pip)
	observer.StartStep(pip, step)
	observer.EndStep(pip, step, types.PipCompletionData{
		PipID:            pip,
		Step:             step,
		ResultBlob:       []byte("ok"),
		ExecuteStepTicks: 10_000_000,
	})
}

type acceptingContentManager struct{}

func (acceptingContentManager) ReportWorkerPipInputContent(types.FileArtifactKeyedHash) bool { return true }
func (acceptingContentManager) ReportDynamicDirectoryContents(types.AssociatedDirectory, []types.FileArtifactKeyedHash, types.PipID) {
}

type sequentialInterner struct{ next uint32 }

func (i *sequentialInterner) Intern(string) uint32 {
	i.next++
	return i.next
}

type noHashSource struct{}

func (noHashSource) RequiredHashes(types.PipID) []types.FileArtifactKeyedHash { return nil }

// releaseGate always declines Hello, exercising scenario 3 (early release).
type releaseGate struct{}

func (releaseGate) Admit(types.WorkerIdentity, *types.WorkerID) types.HelloOutcome {
	return types.HelloReleased
}

// admitGate always admits Hello, recording the worker identity the
// orchestrator learned so the test can dial back to it.
type admitGate struct {
	admitted chan types.WorkerIdentity
}

func (g *admitGate) Admit(location types.WorkerIdentity, requestedID *types.WorkerID) types.HelloOutcome {
	g.admitted <- location
	return types.HelloOk
}

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return lis, lis.Addr().(*net.TCPAddr).Port
}

// harness wires one worker process and one orchestrator process against
// each other over real gRPC, mirroring internal/cli.runWorker/runOrchestrator.
type harness struct {
	invocation types.InvocationID
	workerID   types.WorkerID

	scheduler *countingScheduler
	worker    *workerside.Worker
	workerSM  *lifecycle.SM
	pool      *execpool.Pool

	orch       *remoteworker.Orchestrator
	driverReady chan *remoteworker.Driver

	workerSrv *grpc.Server
	orchSrv   *grpc.Server
}

func newHarness(t *testing.T, workerID types.WorkerID) *harness {
	t.Helper()
	invocation := types.InvocationID{Environment: "it"}

	workerLis, workerPort := listen(t)
	orchLis, _ := listen(t)

	pool := execpool.New(16)
	require.NoError(t, pool.Start(4))
	t.Cleanup(pool.Stop)

	scheduler := &countingScheduler{}
	reporter := workerside.NewInputReporter(acceptingContentManager{}, &sequentialInterner{})
	sm := lifecycle.New()
	general := workerside.NewExecutionLogStream(types.LogKindGeneral)
	manifest := workerside.NewExecutionLogStream(types.LogKindManifest)

	orchConn, err := grpc.NewClient(orchLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { orchConn.Close() })
	orchClient := workerside.NewOrchestratorClient(v1.NewOrchestratorServiceClient(orchConn), invocation)

	var worker *workerside.Worker
	exitFn := exitRequesterFunc(func(reason string, unexpected bool) {
		if worker != nil {
			worker.RequestExit(reason, unexpected)
		}
	})
	notify := workerside.NewNotificationManager(workerID, orchClient, exitFn, 100, general, manifest, nil)
	intake := workerside.NewRequestIntake(scheduler, reporter, pool, notify)
	worker = workerside.NewWorker(workerID, invocation, sm, intake, notify, orchClient, 5*time.Second, nil)

	workerSrv := grpc.NewServer()
	v1.RegisterWorkerServiceServer(workerSrv, worker)
	go workerSrv.Serve(workerLis)
	t.Cleanup(workerSrv.GracefulStop)

	admitted := make(chan types.WorkerIdentity, 1)
	gate := &admitGate{admitted: admitted}
	orch := remoteworker.NewOrchestrator(invocation, gate, nil)

	orchSrv := grpc.NewServer()
	v1.RegisterOrchestratorServiceServer(orchSrv, orch)
	go orchSrv.Serve(orchLis)
	t.Cleanup(orchSrv.GracefulStop)

	h := &harness{
		invocation:  invocation,
		workerID:    workerID,
		scheduler:   scheduler,
		worker:      worker,
		workerSM:    sm,
		pool:        pool,
		orch:        orch,
		driverReady: make(chan *remoteworker.Driver, 1),
		workerSrv:   workerSrv,
		orchSrv:     orchSrv,
	}

	go func() {
		location := <-admitted
		workerConn, err := grpc.NewClient(location.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return
		}
		t.Cleanup(func() { workerConn.Close() })
		workerClient := remoteworker.NewWorkerClient(v1.NewWorkerServiceClient(workerConn), invocation)
		supervisor := connsupervisor.New(context.Background())
		driver := remoteworker.NewDriver(workerID, invocation, workerClient, noHashSource{}, supervisor,
			remoteworker.DriverConfig{AttachRetryInterval: 100 * time.Millisecond, MaxRetryLimitOnRemoteWorkers: 1}, nil)
		orch.Register(workerID, driver)
		driver.Start(context.Background(), types.BuildStartData{WorkerID: workerID, SessionID: "s1"})
		h.driverReady <- driver
	}()

	go func() {
		helloCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		requestedID := workerID
		outcome, err := worker.SayHello(helloCtx, types.WorkerIdentity{Host: "127.0.0.1", Port: workerPort}, &requestedID)
		if err != nil || outcome != types.HelloOk {
			return
		}
		for sm.Current() == types.StatusNotStarted || sm.Current() == types.StatusStarting {
			time.Sleep(10 * time.Millisecond)
		}
		attachCtx, cancel2 := context.WithTimeout(context.Background(), time.Second)
		defer cancel2()
		worker.CompleteAttach(attachCtx, types.WorkerCapacities{WorkerID: workerID, MaxProcesses: 4, AvailableRAMMb: 8192}, nil)
	}()

	return h
}

func (h *harness) waitRunning(t *testing.T) *remoteworker.Driver {
	t.Helper()
	var driver *remoteworker.Driver
	select {
	case driver = <-h.driverReady:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for driver registration")
	}
	deadline := time.Now().Add(3 * time.Second)
	for driver.Status() != types.StatusRunning {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for driver to reach Running, stuck at %s", driver.Status())
		}
		time.Sleep(10 * time.Millisecond)
	}
	return driver
}

type exitRequesterFunc func(reason string, unexpected bool)

func (f exitRequesterFunc) RequestExit(reason string, unexpected bool) { f(reason, unexpected) }

// TestNormalLifecycle realizes spec §8 scenario 1: attach, execute one pip
// step, observe the result resolve on the orchestrator side.
func TestNormalLifecycle(t *testing.T) {
	h := newHarness(t, 3)
	driver := h.waitRunning(t)

	data, retry, err := driver.ExecuteProcess(context.Background(), types.PipID(0x100), 0)
	require.NoError(t, err)
	assert.Equal(t, types.RetryReasonNone, retry)
	assert.False(t, data.Failed)
	assert.Equal(t, types.PipID(0x100), data.PipID)
	assert.Equal(t, types.StepExecuteProcess, data.Step)
	assert.Contains(t, h.scheduler.starts, types.PipID(0x100))
}

// TestRetryDuplicateSequenceNumber realizes spec §8 scenario 2: resending
// the same sequence number drives the scheduler exactly once.
func TestRetryDuplicateSequenceNumber(t *testing.T) {
	h := newHarness(t, 4)
	h.waitRunning(t)

	batch := types.PipBuildRequest{
		Pips: []types.SinglePipBuildRequest{{
			PipID:          0x200,
			Step:           types.StepExecuteProcess,
			PipType:        types.PipTypeProcess,
			SequenceNumber: 1,
		}},
	}
	req := &v1.ExecutePipsRequest{Header: v1.FromInvocationID(h.invocation), Batch: batch}

	_, err := h.worker.ExecutePips(context.Background(), req)
	require.NoError(t, err)
	_, err = h.worker.ExecutePips(context.Background(), req)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for len(h.scheduler.starts) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	count := 0
	for _, p := range h.scheduler.starts {
		if p == 0x200 {
			count++
		}
	}
	assert.Equal(t, 1, count, "duplicate sequence number must start the scheduler step exactly once")
}

// TestEarlyReleaseBeforeAttach realizes spec §8 scenario 3: a dynamic
// worker's Hello is declined and it must tolerate that without error.
func TestEarlyReleaseBeforeAttach(t *testing.T) {
	invocation := types.InvocationID{Environment: "it"}
	_, workerPort := listen(t)

	sm := lifecycle.New()
	pool := execpool.New(4)
	require.NoError(t, pool.Start(2))
	t.Cleanup(pool.Stop)

	general := workerside.NewExecutionLogStream(types.LogKindGeneral)
	manifest := workerside.NewExecutionLogStream(types.LogKindManifest)

	orchLis, _ := listen(t)
	orch := remoteworker.NewOrchestrator(invocation, releaseGate{}, nil)
	orchSrv := grpc.NewServer()
	v1.RegisterOrchestratorServiceServer(orchSrv, orch)
	go orchSrv.Serve(orchLis)
	t.Cleanup(orchSrv.GracefulStop)

	orchConn, err := grpc.NewClient(orchLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { orchConn.Close() })
	orchClient := workerside.NewOrchestratorClient(v1.NewOrchestratorServiceClient(orchConn), invocation)

	reporter := workerside.NewInputReporter(acceptingContentManager{}, &sequentialInterner{})
	var worker *workerside.Worker
	exitFn := exitRequesterFunc(func(reason string, unexpected bool) {
		if worker != nil {
			worker.RequestExit(reason, unexpected)
		}
	})
	notify := workerside.NewNotificationManager(9, orchClient, exitFn, 100, general, manifest, nil)
	intake := workerside.NewRequestIntake(&countingScheduler{}, reporter, pool, notify)
	worker = workerside.NewWorker(9, invocation, sm, intake, notify, orchClient, 0, nil)

	requestedID := types.WorkerID(9)
	outcome, err := worker.SayHello(context.Background(), types.WorkerIdentity{Host: "127.0.0.1", Port: workerPort}, &requestedID)
	require.NoError(t, err)
	assert.Equal(t, types.HelloReleased, outcome)
}

// TestExecutionLogReplayTolerance realizes spec §8 scenario 6: a duplicate
// sequence number is dropped, the next in-order blob is accepted.
func TestExecutionLogReplayTolerance(t *testing.T) {
	stream := workerside.NewExecutionLogStream(types.LogKindGeneral)
	stream.Write([]byte("first"))
	blob1, ok := stream.Flush()
	require.True(t, ok)
	require.Equal(t, int64(0), blob1.SequenceNumber)

	invocation := types.InvocationID{Environment: "it"}
	lis, _ := listen(t)
	orch := remoteworker.NewOrchestrator(invocation, &admitGate{admitted: make(chan types.WorkerIdentity, 1)}, nil)
	srv := grpc.NewServer()
	v1.RegisterOrchestratorServiceServer(srv, orch)
	go srv.Serve(lis)
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	client := v1.NewOrchestratorServiceClient(conn)

	driver := remoteworker.NewDriver(5, invocation,
		remoteworker.NewWorkerClient(v1.NewWorkerServiceClient(nil), invocation),
		noHashSource{}, connsupervisor.New(context.Background()), remoteworker.DriverConfig{}, nil)
	orch.Register(5, driver)

	header := v1.FromInvocationID(invocation)
	_, err = client.ReportExecutionLog(context.Background(), &v1.ReportExecutionLogRequest{
		Header: header,
		Info:   types.ExecutionLogInfo{WorkerID: 5, Blob: types.ExecutionLogBlob{Kind: types.LogKindGeneral, SequenceNumber: 5, Data: []byte("a")}},
	})
	require.NoError(t, err)
	_, err = client.ReportExecutionLog(context.Background(), &v1.ReportExecutionLogRequest{
		Header: header,
		Info:   types.ExecutionLogInfo{WorkerID: 5, Blob: types.ExecutionLogBlob{Kind: types.LogKindGeneral, SequenceNumber: 5, Data: []byte("a-retry")}},
	})
	require.NoError(t, err, "a duplicate sequence number must be acknowledged, not rejected")
	_, err = client.ReportExecutionLog(context.Background(), &v1.ReportExecutionLogRequest{
		Header: header,
		Info:   types.ExecutionLogInfo{WorkerID: 5, Blob: types.ExecutionLogBlob{Kind: types.LogKindGeneral, SequenceNumber: 6, Data: []byte("b")}},
	})
	require.NoError(t, err)
}

// TestConnectionLostMidBuild realizes spec §8 scenario 4: disconnecting a
// driver fails every pending pip with a retryable reason and the driver
// settles in Stopped.
func TestConnectionLostMidBuild(t *testing.T) {
	h := newHarness(t, 7)
	driver := h.waitRunning(t)

	type outcome struct {
		reason types.RetryReason
		err    error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		_, reason, err := driver.ExecuteProcess(context.Background(), types.PipID(0x200), 0)
		resultCh <- outcome{reason, err}
	}()

	// give the request a moment to be tracked before severing the connection
	time.Sleep(50 * time.Millisecond)
	driver.Disconnect(context.Background(), nil, false)

	select {
	case got := <-resultCh:
		assert.Error(t, got.err, "a pip pending when the connection drops must fail, not hang forever")
		assert.Equal(t, types.RetryReasonRemoteWorkerFailure, got.reason, "connection-lost pips are retryable on another worker, not a terminal failure")
	case <-time.After(2 * time.Second):
		t.Fatal("ExecuteProcess did not unblock after Disconnect")
	}
	assert.Equal(t, types.StatusStopped, driver.Status())
}

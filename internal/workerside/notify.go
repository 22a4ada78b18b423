// ============================================================================
// Package: internal/workerside
// File: notify.go
// Function: NotificationManager (spec §4.4) — the worker's single
// background sender thread merging pip results, forwarded events, and a
// manifest log flush into ordered ReportPipResults batches. Adapted from
// the teacher's Controller.resultLoop/handleResult merge-and-react shape
// (internal/controller/controller.go): one dedicated goroutine draining a
// channel and reacting, the same graceful-shutdown-via-channel-close
// discipline, generalized from "one result -> one state update" to
// "batch of results + events + manifest bytes -> one RPC".
// ============================================================================

package workerside

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// ReportSender issues the outbound RPCs NotificationManager drives.
// Implemented by the gRPC-backed worker-side OrchestratorServiceClient
// wrapper.
type ReportSender interface {
	SendPipResults(ctx context.Context, info types.PipResultsInfo) error
	SendExecutionLog(ctx context.Context, info types.ExecutionLogInfo) error
}

// ExitRequester lets NotificationManager ask the lifecycle layer to begin
// an unclean exit after a failed send (spec §4.4: "request Exit('Notify
// failed', unexpected)").
type ExitRequester interface {
	RequestExit(reason string, unexpected bool)
}

// idlePollInterval is the blocking-take timeout for the first item of a
// cycle (spec §4.4: "2-minute idle poll").
const idlePollInterval = 2 * time.Minute

// pipHashPattern is the regex fallback for extracting a pip's semistable
// hash from free-text event content when the event carries no structured
// field (spec §4.4).
var pipHashPattern = regexp.MustCompile(`(?i)pip\s*[:=]?\s*(0x[0-9a-f]+)`)

// NotificationManager batches pip completions, forwarded diagnostic
// events, and manifest execution-log flushes into ReportPipResults RPCs.
type NotificationManager struct {
	workerID            types.WorkerID
	sender              ReportSender
	exitRequester       ExitRequester
	maxMessagesPerBatch int

	resultCh chan types.PipCompletionData
	eventCh  chan types.EventMessage

	manifest *ExecutionLogStream
	general  *ExecutionLogStream

	mu       sync.Mutex
	perPipQ  map[types.PipID][]types.EventMessage
	inFlight map[types.PipID]struct{}

	started atomicBool
	done    chan struct{}
	wg      sync.WaitGroup
	log     *slog.Logger
}

// atomicBool is a tiny test-and-set flag; sync/atomic.Bool would do, but
// this file only needs a single guarded bool for "already stopped" and a
// plain mutex-guarded bool reads more plainly alongside the rest of the
// struct's mutex-guarded fields.
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) set(v bool) { b.mu.Lock(); b.v = v; b.mu.Unlock() }
func (b *atomicBool) get() bool  { b.mu.Lock(); defer b.mu.Unlock(); return b.v }

// NewNotificationManager creates a NotificationManager for one attached
// worker session. manifest may be nil if manifest-log forwarding is
// disabled.
func NewNotificationManager(workerID types.WorkerID, sender ReportSender, exitRequester ExitRequester, maxMessagesPerBatch int, general, manifest *ExecutionLogStream, log *slog.Logger) *NotificationManager {
	if maxMessagesPerBatch <= 0 {
		maxMessagesPerBatch = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &NotificationManager{
		workerID:            workerID,
		sender:              sender,
		exitRequester:       exitRequester,
		maxMessagesPerBatch: maxMessagesPerBatch,
		resultCh:            make(chan types.PipCompletionData, maxMessagesPerBatch*4),
		eventCh:             make(chan types.EventMessage, maxMessagesPerBatch*4),
		general:             general,
		manifest:            manifest,
		perPipQ:             make(map[types.PipID][]types.EventMessage),
		inFlight:            make(map[types.PipID]struct{}),
		done:                make(chan struct{}),
		log:                 log,
	}
}

// WriteGeneralLog appends to the general execution-log channel and, if the
// write crosses the buffer threshold, immediately flushes and sends it as
// its own ReportExecutionLog RPC rather than waiting for the next
// notification cycle (spec §4.5: "a flush is triggered when the buffer
// crosses a threshold ... or the notification cycle pulls a flush").
func (nm *NotificationManager) WriteGeneralLog(data []byte) {
	if nm.general == nil {
		return
	}
	if crossed := nm.general.Write(data); crossed {
		nm.flushAndSendGeneral()
	}
}

func (nm *NotificationManager) flushAndSendGeneral() {
	blob, ok := nm.general.Flush()
	if !ok {
		return
	}
	if err := nm.sender.SendExecutionLog(context.Background(), types.ExecutionLogInfo{WorkerID: nm.workerID, Blob: blob}); err != nil {
		nm.log.Error("report execution log failed", "error", err, "workerId", nm.workerID)
		nm.general.Deactivate()
		nm.exitRequester.RequestExit("Notify failed", true)
	}
}

// Start launches the background sender goroutine. Safe to call once.
func (nm *NotificationManager) Start() {
	nm.started.set(true)
	nm.wg.Add(1)
	go nm.run()
}

// Complete implements workerside.CompletionSink: RequestIntake calls this
// when a pip step reaches a terminal result. The pip is marked in-flight
// here so ReportEventMessage can still associate late-arriving events up
// until the result is actually batched.
func (nm *NotificationManager) Complete(pip types.PipID, step types.PipStep, data types.PipCompletionData) {
	nm.mu.Lock()
	nm.inFlight[pip] = struct{}{}
	nm.mu.Unlock()

	select {
	case nm.resultCh <- data:
	case <-nm.done:
	}
}

// ReportEventMessage implements the per-pip association rule from spec
// §4.4: an event whose extracted pip hash matches an in-flight pip is
// queued privately against that pip; otherwise it goes straight to the
// outbound channel.
func (nm *NotificationManager) ReportEventMessage(ev types.EventMessage) {
	hash, ok := extractPipHash(ev)
	if !ok {
		nm.sendEventDirect(ev)
		return
	}

	nm.mu.Lock()
	pip := types.PipID(hash)
	_, inFlight := nm.inFlight[pip]
	if inFlight {
		nm.perPipQ[pip] = append(nm.perPipQ[pip], ev)
		nm.mu.Unlock()
		return
	}
	nm.mu.Unlock()
	nm.sendEventDirect(ev)
}

func (nm *NotificationManager) sendEventDirect(ev types.EventMessage) {
	select {
	case nm.eventCh <- ev:
	case <-nm.done:
	}
}

func extractPipHash(ev types.EventMessage) (uint64, bool) {
	if ev.HasPipSemiStableHash {
		return ev.PipSemiStableHash, true
	}
	m := pipHashPattern.FindStringSubmatch(ev.Text)
	if m == nil {
		return 0, false
	}
	hash, err := strconv.ParseUint(strings.TrimPrefix(m[1], "0x"), 16, 64)
	if err != nil {
		return 0, false
	}
	return hash, true
}

// run is the single background sender thread (spec §4.4).
func (nm *NotificationManager) run() {
	defer nm.wg.Done()
	for {
		results, events, ok := nm.takeFirst()
		if !ok {
			nm.finalFlush()
			return
		}

		results = nm.drainMore(results)
		events = append(events, nm.drainEvents()...)
		events = nm.flushQueuesFor(results, events)

		manifestBytes := nm.pullManifestFlush()

		info := types.PipResultsInfo{
			WorkerID:            nm.workerID,
			CompletedPips:       results,
			ForwardedEvents:     events,
			BuildManifestEvents: manifestBytes,
		}
		nm.send(info)
	}
}

// takeFirst blocks for the first item of a new cycle, whichever of
// resultCh/eventCh yields first: a batch cycle must not gate on a pip
// completion arriving, since a batch containing only unassociated events
// and no pip results must still be sent (spec §8). It wakes every
// idlePollInterval with nothing to do (a hook for future liveness
// telemetry) and keeps waiting; ok is false only once resultCh is closed
// and no event is available to start a final draining cycle with.
func (nm *NotificationManager) takeFirst() ([]types.PipCompletionData, []types.EventMessage, bool) {
	for {
		select {
		case r, ok := <-nm.resultCh:
			if !ok {
				select {
				case ev := <-nm.eventCh:
					return nil, []types.EventMessage{ev}, true
				default:
				}
				return nil, nil, false
			}
			return []types.PipCompletionData{r}, nil, true
		case ev := <-nm.eventCh:
			return nil, []types.EventMessage{ev}, true
		case <-time.After(idlePollInterval):
			continue
		}
	}
}

func (nm *NotificationManager) drainMore(results []types.PipCompletionData) []types.PipCompletionData {
	for len(results) < nm.maxMessagesPerBatch {
		select {
		case r, ok := <-nm.resultCh:
			if !ok {
				return results
			}
			results = append(results, r)
		default:
			return results
		}
	}
	return results
}

func (nm *NotificationManager) drainEvents() []types.EventMessage {
	var events []types.EventMessage
	for {
		select {
		case ev := <-nm.eventCh:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// flushQueuesFor appends each completed pip's private event queue ahead
// of the result batch, guaranteeing event-before-result ordering within
// the batch (spec §4.4, invariant 4), then removes the pip from in-flight
// tracking.
func (nm *NotificationManager) flushQueuesFor(results []types.PipCompletionData, events []types.EventMessage) []types.EventMessage {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	for _, r := range results {
		if q, ok := nm.perPipQ[r.PipID]; ok {
			events = append(q, events...)
			delete(nm.perPipQ, r.PipID)
		}
		delete(nm.inFlight, r.PipID)
	}
	return events
}

func (nm *NotificationManager) pullManifestFlush() []byte {
	if nm.manifest == nil {
		return nil
	}
	blob, ok := nm.manifest.Flush()
	if !ok || len(blob.Data) == 0 {
		return nil
	}
	return blob.Data
}

func (nm *NotificationManager) send(info types.PipResultsInfo) {
	ctx := context.Background()
	if err := nm.sender.SendPipResults(ctx, info); err != nil {
		nm.log.Error("report pip results failed", "error", err, "workerId", nm.workerID)
		if nm.manifest != nil {
			nm.manifest.Deactivate()
		}
		nm.exitRequester.RequestExit("Notify failed", true)
	}
}

// finalFlush runs once the result channel is closed: any residual
// manifest bytes are sent in their own message, and any events still
// queued against pips that never completed are logged as orphans (spec
// §4.4: "Final flush").
func (nm *NotificationManager) finalFlush() {
	if manifestBytes := nm.pullManifestFlush(); manifestBytes != nil {
		nm.send(types.PipResultsInfo{WorkerID: nm.workerID, BuildManifestEvents: manifestBytes})
	}

	nm.mu.Lock()
	orphans := nm.perPipQ
	nm.perPipQ = make(map[types.PipID][]types.EventMessage)
	nm.mu.Unlock()
	for pip, q := range orphans {
		nm.log.Warn("orphan events on pip that never completed", "pip", pip, "count", len(q))
	}
}

// Stop closes the done and result channels, causing run() to drain and
// exit after its final flush, then waits for the goroutine to finish.
// Calls before Start and calls after the first Stop return at once.
func (nm *NotificationManager) Stop() {
	nm.started.mu.Lock()
	running := nm.started.v
	nm.started.v = false
	nm.started.mu.Unlock()
	if !running {
		return
	}
	close(nm.done)
	close(nm.resultCh)
	nm.wg.Wait()
}

// ============================================================================
// Package: internal/remoteworker
// File: batcher.go
// Function: Batcher — the per-worker outbound request batcher (spec §4.6).
// Adapted from the teacher's Controller.dispatchLoop batch-pop-then-submit
// shape (internal/controller/controller.go): here the batch is popped from
// a channel instead of a queue, and "submit to worker pool" becomes "issue
// one ExecutePips RPC", with a short post-first-item drain window instead
// of dispatchLoop's busy-poll sleep.
// ============================================================================

package remoteworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ChuLiYu/beaver-distbuild/internal/piptracker"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// queuedRequest couples one SinglePipBuildRequest with the future the
// driver is awaiting for its result.
type queuedRequest struct {
	req    types.SinglePipBuildRequest
	future *piptracker.Future
}

// BatcherConfig tunes the outbound batcher (spec §4.6 and §6.3).
type BatcherConfig struct {
	MaxMessagesPerBatch int
	DrainWindow         time.Duration // default 0: take whatever is ready, don't wait
}

// Batcher drains queued requests into ExecutePips RPCs, deduplicating file
// hashes against what this worker has already been sent.
type Batcher struct {
	workerID   types.WorkerID
	client     *WorkerClient
	hashSource HashSource
	cfg        BatcherConfig

	queue chan queuedRequest

	mu              sync.Mutex
	availableHashes map[string]struct{}

	onRPCFailure func(err error)

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

// NewBatcher creates a Batcher for one worker. onRPCFailure is invoked
// synchronously on the batcher goroutine after a failed ExecutePips call,
// typically to trigger connection-loss handling.
func NewBatcher(workerID types.WorkerID, client *WorkerClient, hashSource HashSource, cfg BatcherConfig, onRPCFailure func(err error), log *slog.Logger) *Batcher {
	if cfg.MaxMessagesPerBatch <= 0 {
		cfg.MaxMessagesPerBatch = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		workerID:        workerID,
		client:          client,
		hashSource:      hashSource,
		cfg:             cfg,
		queue:           make(chan queuedRequest, cfg.MaxMessagesPerBatch*4),
		availableHashes: make(map[string]struct{}),
		onRPCFailure:    onRPCFailure,
		stopCh:          make(chan struct{}),
		log:             log,
	}
}

// Start launches the background batcher goroutine.
func (b *Batcher) Start() {
	b.wg.Add(1)
	go b.run()
}

// Enqueue submits one request/future pair. Blocks only on channel
// backpressure, never on the RPC itself. A request enqueued after Stop
// resolves its future with DistributionFailure at once.
func (b *Batcher) Enqueue(req types.SinglePipBuildRequest, future *piptracker.Future) {
	select {
	case <-b.stopCh:
		future.Resolve(piptracker.Result{Retry: types.RetryReasonDistributionFailure, Err: fmt.Errorf("remoteworker: batcher stopped")})
		return
	default:
	}
	select {
	case b.queue <- queuedRequest{req: req, future: future}:
	case <-b.stopCh:
		future.Resolve(piptracker.Result{Retry: types.RetryReasonDistributionFailure, Err: fmt.Errorf("remoteworker: batcher stopped")})
	}
}

// ResetHashDedup clears the "already sent" hash set. Called after an
// ExecutePips RPC failure since the orchestrator cannot know which hashes
// actually reached the worker (spec §4.6).
func (b *Batcher) ResetHashDedup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.availableHashes = make(map[string]struct{})
}

func (b *Batcher) run() {
	defer b.wg.Done()
	for {
		first, ok := b.takeFirst()
		if !ok {
			return
		}
		batch := []queuedRequest{first}
		batch = b.drainMore(batch)
		b.send(batch)
	}
}

func (b *Batcher) takeFirst() (queuedRequest, bool) {
	select {
	case q, ok := <-b.queue:
		return q, ok
	case <-b.stopCh:
		return queuedRequest{}, false
	}
}

func (b *Batcher) drainMore(batch []queuedRequest) []queuedRequest {
	for len(batch) < b.cfg.MaxMessagesPerBatch {
		if b.cfg.DrainWindow <= 0 {
			select {
			case q := <-b.queue:
				batch = append(batch, q)
			default:
				return batch
			}
			continue
		}
		select {
		case q := <-b.queue:
			batch = append(batch, q)
		case <-time.After(b.cfg.DrainWindow):
			return batch
		}
	}
	return batch
}

func (b *Batcher) send(batch []queuedRequest) {
	hashes := b.resolveHashes(batch)

	reqs := make([]types.SinglePipBuildRequest, len(batch))
	for i, q := range batch {
		reqs[i] = q.req
	}

	ctx := context.Background()
	err := b.client.ExecutePips(ctx, types.PipBuildRequest{Pips: reqs, Hashes: hashes})
	if err != nil {
		b.log.Error("execute pips failed", "workerId", b.workerID, "batchSize", len(batch), "error", err)
		b.ResetHashDedup()
		if b.onRPCFailure != nil {
			b.onRPCFailure(err)
		}
	}
}

// resolveHashes computes, in parallel per pip, the file hashes this batch
// needs, then deduplicates against what has already been sent to this
// worker in a single-pass merge (spec §4.6: "computes a deduplicated set of
// required file hashes in parallel").
func (b *Batcher) resolveHashes(batch []queuedRequest) []types.FileArtifactKeyedHash {
	if b.hashSource == nil {
		return nil
	}
	perPip := make([][]types.FileArtifactKeyedHash, len(batch))
	var wg sync.WaitGroup
	for i, q := range batch {
		wg.Add(1)
		go func(i int, pip types.PipID) {
			defer wg.Done()
			perPip[i] = b.hashSource.RequiredHashes(pip)
		}(i, q.req.PipID)
	}
	wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []types.FileArtifactKeyedHash
	for _, hashes := range perPip {
		for _, h := range hashes {
			key := hashDedupKey(h)
			if _, sent := b.availableHashes[key]; sent {
				continue
			}
			b.availableHashes[key] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

func hashDedupKey(h types.FileArtifactKeyedHash) string {
	if h.IsInterned() {
		return fmt.Sprintf("id:%d", h.PathIntID)
	}
	return fmt.Sprintf("path:%s", h.PathString)
}

// Stop signals the batcher goroutine to exit after the in-flight send (if
// any) completes.
func (b *Batcher) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package queue implements the durable pending operation queue.
//
// The queue owns a single Badger key holding a JSON array snapshot of all
// not-yet-acknowledged operations, persisted after every structural change so
// a process restart mid-queue loses nothing. Draining is strictly FIFO by
// enqueue order; a failing operation stays in place with its retry count
// incremented and never blocks later operations from being attempted.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/metrics"
	"github.com/tomtom215/wardrobe/internal/models"
)

// keyPendingOps is the Badger key holding the queue snapshot.
const keyPendingOps = "wardrobe:pending_ops"

// Executor attempts a single queued operation against the remote store.
// A nil return confirms server success and dequeues the operation; an error
// leaves it queued with RetryCount incremented and the message recorded.
type Executor func(ctx context.Context, op models.QueuedOperation) error

// Queue is the durable, ordered list of unacknowledged mutations.
type Queue struct {
	db *badger.DB

	mu  sync.Mutex
	ops []models.QueuedOperation

	// processing guards ProcessQueue: only one drain may run at a time and a
	// concurrent call is a no-op.
	processing atomic.Bool

	subMu     sync.Mutex
	subs      map[int]func(count int)
	nextSubID int
}

// New creates a queue persisting through the given Badger handle. Call
// Initialize before use.
func New(db *badger.DB) *Queue {
	return &Queue{
		db:   db,
		subs: make(map[int]func(int)),
	}
}

// Initialize loads any previously persisted queue snapshot.
func (q *Queue) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("queue_initialize", err)
	}

	var ops []models.QueuedOperation
	err := q.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPendingOps))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ops)
		})
	})
	if err != nil {
		return models.NewStoreError("queue_initialize", err)
	}

	q.mu.Lock()
	q.ops = ops
	count := len(ops)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(count))
	if count > 0 {
		logging.Info().Int("pending", count).Msg("pending operation queue restored")
	}
	q.notify(count)
	return nil
}

// Enqueue appends an operation, assigns it a unique id and timestamp, and
// persists the new snapshot. Returns the stored operation.
func (q *Queue) Enqueue(ctx context.Context, op models.QueuedOperation) (models.QueuedOperation, error) {
	if err := ctx.Err(); err != nil {
		return op, models.NewStoreError("queue_enqueue", err)
	}

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	next := append(append([]models.QueuedOperation(nil), q.ops...), op)
	if err := q.persist(next); err != nil {
		q.mu.Unlock()
		return op, models.NewStoreError("queue_enqueue", err)
	}
	q.ops = next
	count := len(next)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(count))
	metrics.QueueEnqueued.WithLabelValues(string(op.Kind), string(op.Entity)).Inc()
	logging.Debug().
		Str("op_id", op.ID).
		Str("kind", string(op.Kind)).
		Str("entity", string(op.Entity)).
		Int64("target_id", op.TargetID()).
		Msg("operation queued")

	q.notify(count)
	return op, nil
}

// Dequeue removes the operation with the given id and persists.
func (q *Queue) Dequeue(ctx context.Context, opID string) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("queue_dequeue", err)
	}

	q.mu.Lock()
	next := make([]models.QueuedOperation, 0, len(q.ops))
	found := false
	for _, op := range q.ops {
		if op.ID == opID {
			found = true
			continue
		}
		next = append(next, op)
	}
	if !found {
		q.mu.Unlock()
		return nil
	}
	if err := q.persist(next); err != nil {
		q.mu.Unlock()
		return models.NewStoreError("queue_dequeue", err)
	}
	q.ops = next
	count := len(next)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(count))
	q.notify(count)
	return nil
}

// Remove deletes every queued operation matching pred and persists. Returns
// the removed operations in queue order. The engine uses this to cancel the
// queued create of an unsynced-local entity that was deleted before the
// server ever saw it.
func (q *Queue) Remove(ctx context.Context, pred func(models.QueuedOperation) bool) ([]models.QueuedOperation, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewStoreError("queue_remove", err)
	}

	q.mu.Lock()
	var removed []models.QueuedOperation
	next := make([]models.QueuedOperation, 0, len(q.ops))
	for _, op := range q.ops {
		if pred(op) {
			removed = append(removed, op)
			continue
		}
		next = append(next, op)
	}
	if len(removed) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	if err := q.persist(next); err != nil {
		q.mu.Unlock()
		return nil, models.NewStoreError("queue_remove", err)
	}
	q.ops = next
	count := len(next)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(count))
	q.notify(count)
	return removed, nil
}

// Rewrite applies fn to every queued operation in order; fn returns true when
// it changed the operation. The snapshot is persisted once if anything
// changed. The engine uses this to substitute a server-assigned id into
// payloads that still reference a local temporary id, and to fold an update
// of an unsynced-local entity into its queued create.
func (q *Queue) Rewrite(ctx context.Context, fn func(op *models.QueuedOperation) bool) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("queue_rewrite", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	next := append([]models.QueuedOperation(nil), q.ops...)
	changed := false
	for i := range next {
		if fn(&next[i]) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := q.persist(next); err != nil {
		return models.NewStoreError("queue_rewrite", err)
	}
	q.ops = next
	return nil
}

// ProcessQueue drains the queue in strict FIFO order. The snapshot taken at
// call time fixes the order; each operation is re-read immediately before
// execution so payload rewrites made earlier in the same drain (a successful
// create substituting its server-assigned id into later payloads) are
// visible, and operations removed mid-drain are skipped. On success an
// operation is dequeued; on failure its retry count is incremented, the error
// recorded, and iteration continues with the next operation. A concurrent
// call is a no-op that returns immediately.
func (q *Queue) ProcessQueue(ctx context.Context, exec Executor) error {
	if !q.processing.CompareAndSwap(false, true) {
		return nil
	}
	defer q.processing.Store(false)

	snapshot := q.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	logging.Info().Int("pending", len(snapshot)).Msg("draining pending operation queue")

	for _, stale := range snapshot {
		if err := ctx.Err(); err != nil {
			return models.NewStoreError("queue_process", err)
		}

		op, ok := q.current(stale.ID)
		if !ok {
			continue
		}

		execErr := exec(ctx, op)
		if execErr == nil {
			if err := q.Dequeue(ctx, op.ID); err != nil {
				return err
			}
			metrics.QueueDrained.Inc()
			continue
		}

		if err := q.recordFailure(ctx, op.ID, execErr); err != nil {
			return err
		}
		metrics.QueueRetries.Inc()
		logging.Warn().
			Err(execErr).
			Str("op_id", op.ID).
			Str("kind", string(op.Kind)).
			Msg("queued operation failed, will retry")
	}
	return nil
}

// current returns the live version of the operation with the given id.
func (q *Queue) current(opID string) (models.QueuedOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.ops {
		if op.ID == opID {
			return op, true
		}
	}
	return models.QueuedOperation{}, false
}

// recordFailure increments the retry count of the operation (if still queued)
// and records the failure message.
func (q *Queue) recordFailure(ctx context.Context, opID string, cause error) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("queue_record_failure", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	next := append([]models.QueuedOperation(nil), q.ops...)
	found := false
	for i := range next {
		if next[i].ID == opID {
			next[i].RetryCount++
			next[i].LastError = cause.Error()
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	if err := q.persist(next); err != nil {
		return models.NewStoreError("queue_record_failure", err)
	}
	q.ops = next
	return nil
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Snapshot returns a copy of the queue in enqueue order.
func (q *Queue) Snapshot() []models.QueuedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.QueuedOperation(nil), q.ops...)
}

// Subscribe registers fn to be called with the queue length after every
// structural change. Returns an unsubscribe function.
func (q *Queue) Subscribe(fn func(count int)) func() {
	q.subMu.Lock()
	id := q.nextSubID
	q.nextSubID++
	q.subs[id] = fn
	q.subMu.Unlock()

	return func() {
		q.subMu.Lock()
		delete(q.subs, id)
		q.subMu.Unlock()
	}
}

// notify calls all subscribers synchronously with the current length.
func (q *Queue) notify(count int) {
	q.subMu.Lock()
	fns := make([]func(int), 0, len(q.subs))
	for _, fn := range q.subs {
		fns = append(fns, fn)
	}
	q.subMu.Unlock()

	for _, fn := range fns {
		fn(count)
	}
}

// persist writes the snapshot under the queue's key. Must be called with
// q.mu held.
func (q *Queue) persist(ops []models.QueuedOperation) error {
	data, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPendingOps), data)
	})
}

// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package engine implements the offline-first synchronization engine.
//
// Every mutation is applied to the durable local store and the in-memory
// state first, so callers observe the change with zero latency, and only then
// attempted against the remote store. Network-class remote failures are
// absorbed into the pending operation queue (by the remote client itself) and
// surfaced merely as a will-sync-later state; server rejections surface as
// hard errors and are never retried automatically.
//
// The engine is the sole owner of the aggregate state; subscribers receive
// read-only snapshots after every mutation.
package engine

import (
	"context"
	"sync"

	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/models"
	"github.com/tomtom215/wardrobe/internal/queue"
)

// LocalStore is the durable local persistence consumed by the engine.
// Satisfied by *store.Store.
type LocalStore interface {
	GetAllItems(ctx context.Context) ([]models.ClothingItem, error)
	GetAllOutfits(ctx context.Context) ([]models.Outfit, error)
	SaveItem(ctx context.Context, item models.ClothingItem) error
	UpdateItem(ctx context.Context, item models.ClothingItem) error
	DeleteItem(ctx context.Context, id int64) error
	SaveOutfit(ctx context.Context, outfit models.Outfit) error
	UpdateOutfit(ctx context.Context, outfit models.Outfit) error
	DeleteOutfit(ctx context.Context, id int64) error
	ReplaceItems(ctx context.Context, items []models.ClothingItem) error
	ReplaceOutfits(ctx context.Context, outfits []models.Outfit) error
	NextLocalItemID(ctx context.Context) (int64, error)
	NextLocalOutfitID(ctx context.Context) (int64, error)
}

// Remote is the queueing REST surface: mutating verbs enqueue the equivalent
// operation on network-class failures. Satisfied by *remote.Client.
type Remote interface {
	GetItems(ctx context.Context) ([]models.ClothingItem, error)
	GetOutfits(ctx context.Context) ([]models.Outfit, error)
	CreateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error)
	UpdateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error)
	DeleteItem(ctx context.Context, id int64) error
	CreateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error)
	UpdateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error)
	DeleteOutfit(ctx context.Context, id int64) error
}

// Replayer is the non-queueing REST surface used while draining the queue,
// so a failed replay cannot re-enqueue an operation that is already queued.
// Satisfied by *remote.ReplayClient.
type Replayer interface {
	CreateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error)
	UpdateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error)
	DeleteItem(ctx context.Context, id int64) error
	CreateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error)
	UpdateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error)
	DeleteOutfit(ctx context.Context, id int64) error
}

// Connectivity is the reachability surface the engine observes.
// Satisfied by *remote.Reachability.
type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) func()
}

// Engine coordinates the local store, the pending operation queue, and the
// remote client into a single offline-first data layer.
type Engine struct {
	store  LocalStore
	queue  *queue.Queue
	remote Remote
	replay Replayer
	reach  Connectivity

	// mu serializes every state and store mutation: two operations touching
	// the same entity id can never interleave their local writes.
	mu    sync.Mutex
	state State

	subMu     sync.Mutex
	subs      map[int]func(State)
	nextSubID int

	unsubs []func()
}

// New creates an engine. Call Start before issuing mutations.
func New(store LocalStore, q *queue.Queue, rem Remote, replay Replayer, reach Connectivity) *Engine {
	return &Engine{
		store:  store,
		queue:  q,
		remote: rem,
		replay: replay,
		reach:  reach,
		subs:   make(map[int]func(State)),
	}
}

// Start rebuilds the in-memory state from the local store, restores the
// pending queue, and wires the connectivity subscription. When the remote is
// already reachable it runs an initial resync and drains the queue.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.queue.Initialize(ctx); err != nil {
		return err
	}

	items, err := e.store.GetAllItems(ctx)
	if err != nil {
		return err
	}
	outfits, err := e.store.GetAllOutfits(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.state.Items = items
	e.state.Outfits = outfits
	e.state.PendingOps = e.queue.Len()
	e.state.Online = e.reach.IsOnline()
	e.mu.Unlock()

	e.unsubs = append(e.unsubs, e.queue.Subscribe(func(count int) {
		e.mu.Lock()
		e.state.PendingOps = count
		e.mu.Unlock()
		e.publish()
	}))

	e.unsubs = append(e.unsubs, e.reach.Subscribe(func(online bool) {
		e.mu.Lock()
		e.state.Online = online
		e.mu.Unlock()
		e.publish()

		if online {
			e.onReconnect(ctx)
		}
	}))

	logging.Info().
		Int("items", len(items)).
		Int("outfits", len(outfits)).
		Int("pending", e.queue.Len()).
		Bool("online", e.reach.IsOnline()).
		Msg("sync engine started")

	if e.reach.IsOnline() {
		e.onReconnect(ctx)
	}

	e.publish()
	return nil
}

// Stop releases the engine's subscriptions.
func (e *Engine) Stop() {
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
}

// onReconnect runs the reconnect sequence: queue drain, then full resync.
// Draining first means the server state fetched by the resync already
// reflects every mutation this client made while offline; resyncing first
// would clobber a pending update or delete with the server's stale copy.
func (e *Engine) onReconnect(ctx context.Context) {
	if err := e.DrainQueue(ctx); err != nil {
		logging.Error().Err(err).Msg("queue drain aborted")
	}
	if err := e.Resync(ctx); err != nil {
		if models.IsNetworkError(err) {
			logging.Info().Msg("resync skipped, remote dropped away again")
			return
		}
		logging.Error().Err(err).Msg("resync failed")
	}
}

// DrainQueue attempts every queued operation, in order, against the remote
// store. A concurrent drain is a no-op.
func (e *Engine) DrainQueue(ctx context.Context) error {
	return e.queue.ProcessQueue(ctx, e.executeOperation)
}

// setLastError records a surfaced error on the aggregate state.
func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	if err != nil {
		e.state.LastError = err.Error()
	} else {
		e.state.LastError = ""
	}
	e.mu.Unlock()
	e.publish()
}

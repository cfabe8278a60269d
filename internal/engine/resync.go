// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package engine

import (
	"context"
	"time"

	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/metrics"
	"github.com/tomtom215/wardrobe/internal/models"
)

// Resync fetches both remote collections and merges them into local state:
// every unsynced-local entity (negative id) is kept, and every other
// positive-id entity is replaced by the server's current copy, since the
// server is authoritative for anything it has confirmed. Entities addressed
// by a still-queued update keep the local copy, and entities addressed by a
// still-queued delete stay absent, so the server's stale copy never clobbers
// a pending mutation. The merge is deterministic, so running it twice with
// no intervening mutation produces identical state.
func (e *Engine) Resync(ctx context.Context) error {
	started := time.Now()

	e.mu.Lock()
	e.state.Syncing = true
	e.mu.Unlock()
	e.publish()

	defer func() {
		e.mu.Lock()
		e.state.Syncing = false
		e.mu.Unlock()
		e.publish()
		metrics.SyncDuration.Observe(time.Since(started).Seconds())
	}()

	remoteItems, err := e.remote.GetItems(ctx)
	if err != nil {
		if !models.IsNetworkError(err) {
			e.setLastError(err)
		}
		return err
	}
	remoteOutfits, err := e.remote.GetOutfits(ctx)
	if err != nil {
		if !models.IsNetworkError(err) {
			e.setLastError(err)
		}
		return err
	}

	// Ids addressed by operations still in the queue: the local view already
	// reflects those mutations, the server copy is stale until they replay.
	itemUpdates := make(map[int64]bool)
	itemDeletes := make(map[int64]bool)
	outfitUpdates := make(map[int64]bool)
	outfitDeletes := make(map[int64]bool)
	for _, op := range e.queue.Snapshot() {
		switch {
		case op.Entity == models.EntityItem && op.Kind == models.OpUpdate:
			itemUpdates[op.TargetID()] = true
		case op.Entity == models.EntityItem && op.Kind == models.OpDelete:
			itemDeletes[op.TargetID()] = true
		case op.Entity == models.EntityOutfit && op.Kind == models.OpUpdate:
			outfitUpdates[op.TargetID()] = true
		case op.Entity == models.EntityOutfit && op.Kind == models.OpDelete:
			outfitDeletes[op.TargetID()] = true
		}
	}

	e.mu.Lock()
	mergedItems := make([]models.ClothingItem, 0, len(remoteItems)+len(e.state.Items))
	for _, item := range e.state.Items {
		if !item.Synced() || itemUpdates[item.ID] {
			mergedItems = append(mergedItems, item)
		}
	}
	for _, item := range remoteItems {
		if itemUpdates[item.ID] || itemDeletes[item.ID] {
			continue
		}
		mergedItems = append(mergedItems, item)
	}

	mergedOutfits := make([]models.Outfit, 0, len(remoteOutfits)+len(e.state.Outfits))
	for _, outfit := range e.state.Outfits {
		if !outfit.Synced() || outfitUpdates[outfit.ID] {
			mergedOutfits = append(mergedOutfits, outfit.Clone())
		}
	}
	for _, outfit := range remoteOutfits {
		if outfitUpdates[outfit.ID] || outfitDeletes[outfit.ID] {
			continue
		}
		mergedOutfits = append(mergedOutfits, outfit.Clone())
	}

	e.state.Items = mergedItems
	e.state.Outfits = mergedOutfits

	itemsCopy := append([]models.ClothingItem(nil), mergedItems...)
	outfitsCopy := make([]models.Outfit, 0, len(mergedOutfits))
	for _, o := range mergedOutfits {
		outfitsCopy = append(outfitsCopy, o.Clone())
	}
	e.mu.Unlock()

	if err := e.store.ReplaceItems(ctx, itemsCopy); err != nil {
		e.setLastError(err)
		return err
	}
	if err := e.store.ReplaceOutfits(ctx, outfitsCopy); err != nil {
		e.setLastError(err)
		return err
	}

	e.publish()
	logging.Info().
		Int("items", len(itemsCopy)).
		Int("outfits", len(outfitsCopy)).
		Dur("took", time.Since(started)).
		Msg("resync completed")
	return nil
}

// ApplyChangeEvent applies an inbound push message to in-memory state only.
// The event already represents a remote-confirmed fact, so no further
// round-trip is made. Created events prepend (replacing in place when the id
// is already present, which happens when the event echoes this client's own
// mutation), updated events replace by id, deleted events remove by id.
func (e *Engine) ApplyChangeEvent(event models.ChangeEvent) {
	metrics.PushEventsApplied.WithLabelValues(event.Type).Inc()

	e.mu.Lock()
	switch event.Type {
	case models.EventItemCreated:
		if event.Item == nil {
			e.mu.Unlock()
			return
		}
		if idx := e.stateItemIndex(event.Item.ID); idx >= 0 {
			e.state.Items[idx] = *event.Item
		} else {
			e.state.Items = append([]models.ClothingItem{*event.Item}, e.state.Items...)
		}

	case models.EventItemUpdated:
		if event.Item == nil {
			e.mu.Unlock()
			return
		}
		if idx := e.stateItemIndex(event.Item.ID); idx >= 0 {
			e.state.Items[idx] = *event.Item
		} else {
			e.state.Items = append([]models.ClothingItem{*event.Item}, e.state.Items...)
		}

	case models.EventItemDeleted:
		if idx := e.stateItemIndex(event.ItemID); idx >= 0 {
			e.state.Items = append(e.state.Items[:idx], e.state.Items[idx+1:]...)
		}

	case models.EventOutfitCreated, models.EventOutfitUpdated:
		if event.Outfit == nil {
			e.mu.Unlock()
			return
		}
		if idx := e.stateOutfitIndex(event.Outfit.ID); idx >= 0 {
			e.state.Outfits[idx] = event.Outfit.Clone()
		} else {
			e.state.Outfits = append([]models.Outfit{event.Outfit.Clone()}, e.state.Outfits...)
		}

	case models.EventOutfitDeleted:
		if idx := e.stateOutfitIndex(event.OutfitID); idx >= 0 {
			e.state.Outfits = append(e.state.Outfits[:idx], e.state.Outfits[idx+1:]...)
		}

	default:
		e.mu.Unlock()
		logging.Debug().Str("type", event.Type).Msg("ignoring unknown change event")
		return
	}
	e.mu.Unlock()
	e.publish()
}

// executeOperation replays one queued operation against the remote store.
// It uses the non-queueing replay surface so a failure cannot re-enqueue the
// operation. A successful create reconciles the temporary id exactly like a
// direct create would.
func (e *Engine) executeOperation(ctx context.Context, op models.QueuedOperation) error {
	switch {
	case op.Entity == models.EntityItem && op.Kind == models.OpCreate:
		if op.Item == nil {
			return nil
		}
		created, err := e.replay.CreateItem(ctx, *op.Item)
		if err != nil {
			return err
		}
		return e.adoptServerItem(ctx, op.Item.ID, created)

	case op.Entity == models.EntityItem && op.Kind == models.OpUpdate:
		if op.Item == nil {
			return nil
		}
		_, err := e.replay.UpdateItem(ctx, *op.Item)
		return err

	case op.Entity == models.EntityItem && op.Kind == models.OpDelete:
		err := e.replay.DeleteItem(ctx, op.EntityID)
		if models.IsNotFound(err) {
			// Already gone server-side; the delete is confirmed.
			return nil
		}
		return err

	case op.Entity == models.EntityOutfit && op.Kind == models.OpCreate:
		if op.Outfit == nil {
			return nil
		}
		created, err := e.replay.CreateOutfit(ctx, *op.Outfit)
		if err != nil {
			return err
		}
		return e.adoptServerOutfit(ctx, op.Outfit.ID, created)

	case op.Entity == models.EntityOutfit && op.Kind == models.OpUpdate:
		if op.Outfit == nil {
			return nil
		}
		_, err := e.replay.UpdateOutfit(ctx, *op.Outfit)
		return err

	case op.Entity == models.EntityOutfit && op.Kind == models.OpDelete:
		err := e.replay.DeleteOutfit(ctx, op.EntityID)
		if models.IsNotFound(err) {
			return nil
		}
		return err

	default:
		logging.Warn().
			Str("op_id", op.ID).
			Str("kind", string(op.Kind)).
			Str("entity", string(op.Entity)).
			Msg("dropping malformed queued operation")
		return nil
	}
}

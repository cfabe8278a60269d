// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package engine

import (
	"context"

	"github.com/tomtom215/wardrobe/internal/metrics"
	"github.com/tomtom215/wardrobe/internal/models"
)

// CreateItem creates a clothing item: local store and in-memory state first
// (zero perceived latency), then a best-effort remote create. On remote
// success the unsynced-local record is replaced wholesale by the
// server-confirmed copy. On a network-class failure the item stays
// unsynced-local and the create is already queued by the remote client; the
// caller gets the local copy and no error.
func (e *Engine) CreateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	id, err := e.store.NextLocalItemID(ctx)
	if err != nil {
		e.setLastError(err)
		return models.ClothingItem{}, err
	}
	item.ID = id

	if err := e.store.SaveItem(ctx, item); err != nil {
		e.setLastError(err)
		return models.ClothingItem{}, err
	}

	e.mu.Lock()
	e.state.Items = append([]models.ClothingItem{item}, e.state.Items...)
	e.mu.Unlock()
	e.publish()

	created, err := e.remote.CreateItem(ctx, item)
	if err != nil {
		if models.IsNetworkError(err) {
			return item, nil
		}
		metrics.SyncErrors.WithLabelValues("create_item").Inc()
		e.setLastError(err)
		return item, err
	}

	if err := e.adoptServerItem(ctx, id, created); err != nil {
		return created, err
	}
	return created, nil
}

// UpdateItem applies the new field values locally, then best-effort remotely.
// The id never changes. Updating an unsynced-local item folds the new values
// into its queued create instead of queueing a second operation.
func (e *Engine) UpdateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	if err := e.store.UpdateItem(ctx, item); err != nil {
		e.setLastError(err)
		return models.ClothingItem{}, err
	}

	e.mu.Lock()
	if idx := e.stateItemIndex(item.ID); idx >= 0 {
		e.state.Items[idx] = item
	}
	e.mu.Unlock()
	e.publish()

	if !item.Synced() {
		folded := item
		err := e.queue.Rewrite(ctx, func(op *models.QueuedOperation) bool {
			if op.Kind == models.OpCreate && op.Entity == models.EntityItem &&
				op.Item != nil && op.Item.ID == item.ID {
				op.Item = &folded
				return true
			}
			return false
		})
		if err != nil {
			e.setLastError(err)
			return item, err
		}
		// No queued create means the original create is still in flight; its
		// response will land as a full-record replacement (last writer wins).
		return item, nil
	}

	updated, err := e.remote.UpdateItem(ctx, item)
	if err != nil {
		if models.IsNetworkError(err) {
			return item, nil
		}
		metrics.SyncErrors.WithLabelValues("update_item").Inc()
		e.setLastError(err)
		return item, err
	}
	return updated, nil
}

// DeleteItem removes a clothing item, cascading first to every outfit that
// references it: each such outfit is deleted through the same
// immediate-local, best-effort-remote, queue-on-failure path before the item
// itself. Deleting an unsynced-local item cancels its queued create instead
// of issuing anything remotely.
func (e *Engine) DeleteItem(ctx context.Context, id int64) error {
	e.mu.Lock()
	var cascade []int64
	for _, outfit := range e.state.Outfits {
		if outfit.References(id) {
			cascade = append(cascade, outfit.ID)
		}
	}
	e.mu.Unlock()

	for _, outfitID := range cascade {
		if err := e.DeleteOutfit(ctx, outfitID); err != nil {
			return err
		}
	}

	if err := e.store.DeleteItem(ctx, id); err != nil {
		e.setLastError(err)
		return err
	}

	e.mu.Lock()
	if idx := e.stateItemIndex(id); idx >= 0 {
		e.state.Items = append(e.state.Items[:idx], e.state.Items[idx+1:]...)
	}
	e.mu.Unlock()
	e.publish()

	if id < 0 {
		// The server never saw this item; cancel its queued create so the
		// queue shrinks rather than grows.
		_, err := e.queue.Remove(ctx, func(op models.QueuedOperation) bool {
			return op.Entity == models.EntityItem && op.TargetID() == id
		})
		if err != nil {
			e.setLastError(err)
			return err
		}
		return nil
	}

	if err := e.remote.DeleteItem(ctx, id); err != nil {
		if models.IsNetworkError(err) {
			return nil
		}
		metrics.SyncErrors.WithLabelValues("delete_item").Inc()
		e.setLastError(err)
		return err
	}
	return nil
}

// adoptServerItem substitutes the server-confirmed record for the
// unsynced-local one: a full record replacement at the same position, in the
// store and in state, followed by a rewrite of any queued payloads that still
// reference the temporary id (outfits composed while the create was
// unconfirmed).
func (e *Engine) adoptServerItem(ctx context.Context, tempID int64, created models.ClothingItem) error {
	e.mu.Lock()
	if idx := e.stateItemIndex(tempID); idx >= 0 {
		e.state.Items[idx] = created
	}
	items := append([]models.ClothingItem(nil), e.state.Items...)
	e.mu.Unlock()

	if err := e.store.ReplaceItems(ctx, items); err != nil {
		e.setLastError(err)
		return err
	}
	e.publish()

	return e.rewriteQueuedItemID(ctx, tempID, created.ID)
}

// rewriteQueuedItemID substitutes newID for oldID in every queued payload:
// operations addressing the item itself and outfit payloads whose ItemIDs
// still carry the temporary id.
func (e *Engine) rewriteQueuedItemID(ctx context.Context, oldID, newID int64) error {
	err := e.queue.Rewrite(ctx, func(op *models.QueuedOperation) bool {
		changed := false
		if op.Entity == models.EntityItem {
			if op.Item != nil && op.Item.ID == oldID {
				item := *op.Item
				item.ID = newID
				op.Item = &item
				changed = true
			}
			if op.EntityID == oldID {
				op.EntityID = newID
				changed = true
			}
		}
		if op.Outfit != nil && op.Outfit.References(oldID) {
			outfit := op.Outfit.Clone()
			for i := range outfit.ItemIDs {
				if outfit.ItemIDs[i] == oldID {
					outfit.ItemIDs[i] = newID
				}
			}
			op.Outfit = &outfit
			changed = true
		}
		return changed
	})
	if err != nil {
		e.setLastError(err)
		return err
	}

	// Outfits in local state may also reference the temporary id.
	e.mu.Lock()
	touched := false
	for i := range e.state.Outfits {
		for j := range e.state.Outfits[i].ItemIDs {
			if e.state.Outfits[i].ItemIDs[j] == oldID {
				e.state.Outfits[i].ItemIDs[j] = newID
				touched = true
			}
		}
	}
	outfits := make([]models.Outfit, 0, len(e.state.Outfits))
	for _, o := range e.state.Outfits {
		outfits = append(outfits, o.Clone())
	}
	e.mu.Unlock()

	if touched {
		if err := e.store.ReplaceOutfits(ctx, outfits); err != nil {
			e.setLastError(err)
			return err
		}
		e.publish()
	}
	return nil
}

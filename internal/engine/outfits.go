// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package engine

import (
	"context"
	"time"

	"github.com/tomtom215/wardrobe/internal/metrics"
	"github.com/tomtom215/wardrobe/internal/models"
)

// CreateOutfit creates an outfit through the same immediate-local,
// best-effort-remote path as items. CreatedAt is fixed here and never changes
// afterwards. ItemIDs may reference items whose creation the server has not
// confirmed yet; the temporary ids are rewritten when those creations are
// acknowledged.
func (e *Engine) CreateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	id, err := e.store.NextLocalOutfitID(ctx)
	if err != nil {
		e.setLastError(err)
		return models.Outfit{}, err
	}
	outfit.ID = id
	if outfit.CreatedAt.IsZero() {
		outfit.CreatedAt = time.Now().UTC()
	}

	if err := e.store.SaveOutfit(ctx, outfit); err != nil {
		e.setLastError(err)
		return models.Outfit{}, err
	}

	e.mu.Lock()
	e.state.Outfits = append([]models.Outfit{outfit.Clone()}, e.state.Outfits...)
	e.mu.Unlock()
	e.publish()

	created, err := e.remote.CreateOutfit(ctx, outfit)
	if err != nil {
		if models.IsNetworkError(err) {
			return outfit, nil
		}
		metrics.SyncErrors.WithLabelValues("create_outfit").Inc()
		e.setLastError(err)
		return outfit, err
	}

	if err := e.adoptServerOutfit(ctx, id, created); err != nil {
		return created, err
	}
	return created, nil
}

// UpdateOutfit applies the new field values locally, then best-effort
// remotely. CreatedAt is immutable: whatever the caller passes, the stored
// creation date wins. Updating an unsynced-local outfit folds the new values
// into its queued create.
func (e *Engine) UpdateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	e.mu.Lock()
	if idx := e.stateOutfitIndex(outfit.ID); idx >= 0 {
		outfit.CreatedAt = e.state.Outfits[idx].CreatedAt
	}
	e.mu.Unlock()

	if err := e.store.UpdateOutfit(ctx, outfit); err != nil {
		e.setLastError(err)
		return models.Outfit{}, err
	}

	e.mu.Lock()
	if idx := e.stateOutfitIndex(outfit.ID); idx >= 0 {
		e.state.Outfits[idx] = outfit.Clone()
	}
	e.mu.Unlock()
	e.publish()

	if !outfit.Synced() {
		folded := outfit.Clone()
		err := e.queue.Rewrite(ctx, func(op *models.QueuedOperation) bool {
			if op.Kind == models.OpCreate && op.Entity == models.EntityOutfit &&
				op.Outfit != nil && op.Outfit.ID == outfit.ID {
				op.Outfit = &folded
				return true
			}
			return false
		})
		if err != nil {
			e.setLastError(err)
			return outfit, err
		}
		return outfit, nil
	}

	updated, err := e.remote.UpdateOutfit(ctx, outfit)
	if err != nil {
		if models.IsNetworkError(err) {
			return outfit, nil
		}
		metrics.SyncErrors.WithLabelValues("update_outfit").Inc()
		e.setLastError(err)
		return outfit, err
	}
	return updated, nil
}

// DeleteOutfit removes an outfit locally and best-effort remotely. Deleting
// an unsynced-local outfit cancels its queued create.
func (e *Engine) DeleteOutfit(ctx context.Context, id int64) error {
	if err := e.store.DeleteOutfit(ctx, id); err != nil {
		e.setLastError(err)
		return err
	}

	e.mu.Lock()
	if idx := e.stateOutfitIndex(id); idx >= 0 {
		e.state.Outfits = append(e.state.Outfits[:idx], e.state.Outfits[idx+1:]...)
	}
	e.mu.Unlock()
	e.publish()

	if id < 0 {
		_, err := e.queue.Remove(ctx, func(op models.QueuedOperation) bool {
			return op.Entity == models.EntityOutfit && op.TargetID() == id
		})
		if err != nil {
			e.setLastError(err)
			return err
		}
		return nil
	}

	if err := e.remote.DeleteOutfit(ctx, id); err != nil {
		if models.IsNetworkError(err) {
			return nil
		}
		metrics.SyncErrors.WithLabelValues("delete_outfit").Inc()
		e.setLastError(err)
		return err
	}
	return nil
}

// adoptServerOutfit substitutes the server-confirmed record for the
// unsynced-local one, then rewrites queued operations still addressing the
// temporary outfit id.
func (e *Engine) adoptServerOutfit(ctx context.Context, tempID int64, created models.Outfit) error {
	e.mu.Lock()
	if idx := e.stateOutfitIndex(tempID); idx >= 0 {
		e.state.Outfits[idx] = created.Clone()
	}
	outfits := make([]models.Outfit, 0, len(e.state.Outfits))
	for _, o := range e.state.Outfits {
		outfits = append(outfits, o.Clone())
	}
	e.mu.Unlock()

	if err := e.store.ReplaceOutfits(ctx, outfits); err != nil {
		e.setLastError(err)
		return err
	}
	e.publish()

	err := e.queue.Rewrite(ctx, func(op *models.QueuedOperation) bool {
		if op.Entity != models.EntityOutfit {
			return false
		}
		changed := false
		if op.Outfit != nil && op.Outfit.ID == tempID {
			outfit := op.Outfit.Clone()
			outfit.ID = created.ID
			op.Outfit = &outfit
			changed = true
		}
		if op.EntityID == tempID {
			op.EntityID = created.ID
			changed = true
		}
		return changed
	})
	if err != nil {
		e.setLastError(err)
		return err
	}
	return nil
}

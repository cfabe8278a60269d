// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package engine

import "github.com/tomtom215/wardrobe/internal/models"

// State is the aggregate synchronization state observed by the UI layer.
// The engine is its only writer; subscribers receive defensive copies and
// must not be able to mutate engine-owned data through them.
type State struct {
	Items      []models.ClothingItem
	Outfits    []models.Outfit
	Online     bool
	Syncing    bool
	PendingOps int
	LastError  string
}

// clone returns a deep copy safe to hand to subscribers.
func (s State) clone() State {
	out := s
	out.Items = append([]models.ClothingItem(nil), s.Items...)
	out.Outfits = make([]models.Outfit, 0, len(s.Outfits))
	for _, o := range s.Outfits {
		out.Outfits = append(out.Outfits, o.Clone())
	}
	return out
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Subscribe registers fn to be called synchronously with a state snapshot
// after every state mutation. Returns an unsubscribe function.
func (e *Engine) Subscribe(fn func(State)) func() {
	e.subMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// publish delivers the current state to all subscribers.
func (e *Engine) publish() {
	snapshot := e.Snapshot()

	e.subMu.Lock()
	fns := make([]func(State), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// stateItemIndex returns the index of the item with the given id, or -1.
// Caller must hold e.mu.
func (e *Engine) stateItemIndex(id int64) int {
	for i := range e.state.Items {
		if e.state.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// stateOutfitIndex returns the index of the outfit with the given id, or -1.
// Caller must hold e.mu.
func (e *Engine) stateOutfitIndex(id int64) int {
	for i := range e.state.Outfits {
		if e.state.Outfits[i].ID == id {
			return i
		}
	}
	return -1
}

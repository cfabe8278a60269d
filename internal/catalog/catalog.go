// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package catalog is the server's authoritative in-memory store. Ids are
// server-assigned, positive, and never reused. Deleting a clothing item
// cascades to every outfit referencing it.
package catalog

import (
	"sort"
	"sync"

	"github.com/tomtom215/wardrobe/internal/models"
)

// Store holds both collections behind a single mutex.
type Store struct {
	mu          sync.RWMutex
	items       map[int64]models.ClothingItem
	itemOrder   []int64
	outfits     map[int64]models.Outfit
	outfitOrder []int64
	nextID      int64
}

// New creates an empty store. The first assigned id is 1.
func New() *Store {
	return &Store{
		items:   make(map[int64]models.ClothingItem),
		outfits: make(map[int64]models.Outfit),
		nextID:  1,
	}
}

// ListItems returns all items in insertion order.
func (s *Store) ListItems() []models.ClothingItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ClothingItem, 0, len(s.itemOrder))
	for _, id := range s.itemOrder {
		out = append(out, s.items[id])
	}
	return out
}

// ListOutfits returns all outfits in insertion order.
func (s *Store) ListOutfits() []models.Outfit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Outfit, 0, len(s.outfitOrder))
	for _, id := range s.outfitOrder {
		out = append(out, s.outfits[id].Clone())
	}
	return out
}

// CreateItem stores the item under a freshly assigned id and returns the
// stored copy. Any id supplied by the client is ignored.
func (s *Store) CreateItem(item models.ClothingItem) models.ClothingItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.nextID
	s.nextID++
	s.items[item.ID] = item
	s.itemOrder = append(s.itemOrder, item.ID)
	return item
}

// UpdateItem replaces the item with the given id in place.
func (s *Store) UpdateItem(item models.ClothingItem) (models.ClothingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return models.ClothingItem{}, models.ErrNotFound
	}
	s.items[item.ID] = item
	return item, nil
}

// DeleteItem removes the item and cascades to every outfit referencing it.
// Returns the ids of the cascaded outfits in ascending order.
func (s *Store) DeleteItem(id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return nil, models.ErrNotFound
	}

	var cascaded []int64
	for outfitID, outfit := range s.outfits {
		if outfit.References(id) {
			cascaded = append(cascaded, outfitID)
		}
	}
	sort.Slice(cascaded, func(i, j int) bool { return cascaded[i] < cascaded[j] })
	for _, outfitID := range cascaded {
		s.removeOutfitLocked(outfitID)
	}

	delete(s.items, id)
	s.itemOrder = removeID(s.itemOrder, id)
	return cascaded, nil
}

// CreateOutfit stores the outfit under a freshly assigned id.
func (s *Store) CreateOutfit(outfit models.Outfit) models.Outfit {
	s.mu.Lock()
	defer s.mu.Unlock()

	outfit.ID = s.nextID
	s.nextID++
	s.outfits[outfit.ID] = outfit.Clone()
	s.outfitOrder = append(s.outfitOrder, outfit.ID)
	return outfit
}

// UpdateOutfit replaces the outfit with the given id in place. The stored
// creation date is preserved regardless of the payload.
func (s *Store) UpdateOutfit(outfit models.Outfit) (models.Outfit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.outfits[outfit.ID]
	if !ok {
		return models.Outfit{}, models.ErrNotFound
	}
	outfit.CreatedAt = existing.CreatedAt
	s.outfits[outfit.ID] = outfit.Clone()
	return outfit, nil
}

// DeleteOutfit removes the outfit with the given id.
func (s *Store) DeleteOutfit(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outfits[id]; !ok {
		return models.ErrNotFound
	}
	s.removeOutfitLocked(id)
	return nil
}

// removeOutfitLocked removes an outfit; caller holds s.mu.
func (s *Store) removeOutfitLocked(id int64) {
	delete(s.outfits, id)
	s.outfitOrder = removeID(s.outfitOrder, id)
}

func removeID(ids []int64, id int64) []int64 {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

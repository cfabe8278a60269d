// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package store implements the durable local store on BadgerDB.
//
// Layout: each collection is a single JSON array under one key, plus one key
// per monotonic local id counter. The pending operation queue persists its own
// snapshot under a fifth key through the same Badger handle (see
// internal/queue); this package never touches that key.
//
//	wardrobe:items          JSON array of ClothingItem
//	wardrobe:outfits        JSON array of Outfit
//	wardrobe:next_item_id   most recently issued local item id
//	wardrobe:next_outfit_id most recently issued local outfit id
//
// Local ids are negative and strictly decreasing (-1, -2, ...); an issued id
// is never reused, even after the server confirms the creation it was minted
// for.
package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/wardrobe/internal/models"
)

// Badger keys for the durable layout.
const (
	keyItems        = "wardrobe:items"
	keyOutfits      = "wardrobe:outfits"
	keyNextItemID   = "wardrobe:next_item_id"
	keyNextOutfitID = "wardrobe:next_outfit_id"
)

// Store is the durable local copy of both entity collections.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the Badger database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, models.NewStoreError("open", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened Badger handle. The caller retains
// ownership of the handle's lifecycle.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying Badger handle so the pending operation queue can
// share the same database file.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAllItems returns the full item collection.
func (s *Store) GetAllItems(ctx context.Context) ([]models.ClothingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewStoreError("get_all_items", err)
	}
	var items []models.ClothingItem
	if err := s.readJSON(keyItems, &items); err != nil {
		return nil, models.NewStoreError("get_all_items", err)
	}
	return items, nil
}

// GetAllOutfits returns the full outfit collection.
func (s *Store) GetAllOutfits(ctx context.Context) ([]models.Outfit, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewStoreError("get_all_outfits", err)
	}
	var outfits []models.Outfit
	if err := s.readJSON(keyOutfits, &outfits); err != nil {
		return nil, models.NewStoreError("get_all_outfits", err)
	}
	return outfits, nil
}

// SaveItem appends a new item to the collection.
func (s *Store) SaveItem(ctx context.Context, item models.ClothingItem) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("save_item", err)
	}
	err := s.mutateItems(func(items []models.ClothingItem) ([]models.ClothingItem, error) {
		return append(items, item), nil
	})
	if err != nil {
		return models.NewStoreError("save_item", err)
	}
	return nil
}

// UpdateItem replaces the item with a matching id in place, preserving its
// position in the collection. Returns a NotFound error when the id is absent.
func (s *Store) UpdateItem(ctx context.Context, item models.ClothingItem) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("update_item", err)
	}
	err := s.mutateItems(func(items []models.ClothingItem) ([]models.ClothingItem, error) {
		for i := range items {
			if items[i].ID == item.ID {
				items[i] = item
				return items, nil
			}
		}
		return nil, models.ErrNotFound
	})
	if err != nil {
		return models.NewStoreError("update_item", err)
	}
	return nil
}

// DeleteItem removes the item with the given id. Matching is by id only.
// Returns a NotFound error when the id is absent.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("delete_item", err)
	}
	err := s.mutateItems(func(items []models.ClothingItem) ([]models.ClothingItem, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, models.ErrNotFound
	})
	if err != nil {
		return models.NewStoreError("delete_item", err)
	}
	return nil
}

// SaveOutfit appends a new outfit to the collection.
func (s *Store) SaveOutfit(ctx context.Context, outfit models.Outfit) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("save_outfit", err)
	}
	err := s.mutateOutfits(func(outfits []models.Outfit) ([]models.Outfit, error) {
		return append(outfits, outfit), nil
	})
	if err != nil {
		return models.NewStoreError("save_outfit", err)
	}
	return nil
}

// UpdateOutfit replaces the outfit with a matching id in place, preserving
// its position in the collection. Returns a NotFound error when absent.
func (s *Store) UpdateOutfit(ctx context.Context, outfit models.Outfit) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("update_outfit", err)
	}
	err := s.mutateOutfits(func(outfits []models.Outfit) ([]models.Outfit, error) {
		for i := range outfits {
			if outfits[i].ID == outfit.ID {
				outfits[i] = outfit
				return outfits, nil
			}
		}
		return nil, models.ErrNotFound
	})
	if err != nil {
		return models.NewStoreError("update_outfit", err)
	}
	return nil
}

// DeleteOutfit removes the outfit with the given id. Returns a NotFound error
// when absent.
func (s *Store) DeleteOutfit(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("delete_outfit", err)
	}
	err := s.mutateOutfits(func(outfits []models.Outfit) ([]models.Outfit, error) {
		for i := range outfits {
			if outfits[i].ID == id {
				return append(outfits[:i], outfits[i+1:]...), nil
			}
		}
		return nil, models.ErrNotFound
	})
	if err != nil {
		return models.NewStoreError("delete_outfit", err)
	}
	return nil
}

// ReplaceItems overwrites the whole item collection. Used by the engine's
// resync merge.
func (s *Store) ReplaceItems(ctx context.Context, items []models.ClothingItem) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("replace_items", err)
	}
	if err := s.writeJSON(keyItems, items); err != nil {
		return models.NewStoreError("replace_items", err)
	}
	return nil
}

// ReplaceOutfits overwrites the whole outfit collection.
func (s *Store) ReplaceOutfits(ctx context.Context, outfits []models.Outfit) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("replace_outfits", err)
	}
	if err := s.writeJSON(keyOutfits, outfits); err != nil {
		return models.NewStoreError("replace_outfits", err)
	}
	return nil
}

// NextLocalItemID issues the next local (negative) item id.
func (s *Store) NextLocalItemID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, models.NewStoreError("next_local_item_id", err)
	}
	id, err := s.nextLocalID(keyNextItemID)
	if err != nil {
		return 0, models.NewStoreError("next_local_item_id", err)
	}
	return id, nil
}

// NextLocalOutfitID issues the next local (negative) outfit id.
func (s *Store) NextLocalOutfitID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, models.NewStoreError("next_local_outfit_id", err)
	}
	id, err := s.nextLocalID(keyNextOutfitID)
	if err != nil {
		return 0, models.NewStoreError("next_local_outfit_id", err)
	}
	return id, nil
}

// nextLocalID decrements the counter under key inside a single transaction
// and returns the issued id.
func (s *Store) nextLocalID(key string) (int64, error) {
	var issued int64
	err := s.db.Update(func(txn *badger.Txn) error {
		last := int64(0)
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First id issued is -1
		case err != nil:
			return err
		default:
			if verr := item.Value(func(val []byte) error {
				parsed, perr := strconv.ParseInt(string(val), 10, 64)
				if perr != nil {
					return perr
				}
				last = parsed
				return nil
			}); verr != nil {
				return verr
			}
		}

		issued = last - 1
		return txn.Set([]byte(key), []byte(strconv.FormatInt(issued, 10)))
	})
	if err != nil {
		return 0, err
	}
	return issued, nil
}

// readJSON loads the JSON value under key into out. A missing key leaves out
// at its zero value.
func (s *Store) readJSON(key string, out interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// writeJSON stores v as JSON under key.
func (s *Store) writeJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// mutateItems applies fn to the item collection and persists the result
// inside one transaction.
func (s *Store) mutateItems(fn func([]models.ClothingItem) ([]models.ClothingItem, error)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var items []models.ClothingItem
		item, err := txn.Get([]byte(keyItems))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err == nil {
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &items)
			}); verr != nil {
				return verr
			}
		}

		items, err = fn(items)
		if err != nil {
			return err
		}

		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		return txn.Set([]byte(keyItems), data)
	})
}

// mutateOutfits applies fn to the outfit collection and persists the result
// inside one transaction.
func (s *Store) mutateOutfits(fn func([]models.Outfit) ([]models.Outfit, error)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var outfits []models.Outfit
		item, err := txn.Get([]byte(keyOutfits))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err == nil {
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &outfits)
			}); verr != nil {
				return verr
			}
		}

		outfits, err = fn(outfits)
		if err != nil {
			return err
		}

		data, err := json.Marshal(outfits)
		if err != nil {
			return err
		}
		return txn.Set([]byte(keyOutfits), data)
	})
}

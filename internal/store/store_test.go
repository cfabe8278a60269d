// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package store

import (
	"context"
	"testing"

	"github.com/tomtom215/wardrobe/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestItemRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	items, err := s.GetAllItems(ctx)
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("fresh store has %d items, want 0", len(items))
	}

	first := models.ClothingItem{ID: -1, Name: "Blue Oxford", Category: models.CategoryTops, Size: models.SizeM}
	second := models.ClothingItem{ID: -2, Name: "Chinos", Category: models.CategoryBottoms}
	for _, item := range []models.ClothingItem{first, second} {
		if err := s.SaveItem(ctx, item); err != nil {
			t.Fatalf("SaveItem(%d) error = %v", item.ID, err)
		}
	}

	items, err = s.GetAllItems(ctx)
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if len(items) != 2 || items[0].ID != -1 || items[1].ID != -2 {
		t.Fatalf("GetAllItems() = %+v, want insertion order [-1 -2]", items)
	}

	first.Color = "navy"
	if err := s.UpdateItem(ctx, first); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	items, _ = s.GetAllItems(ctx)
	if items[0].Color != "navy" {
		t.Fatalf("update did not persist, got color %q", items[0].Color)
	}
	if items[0].ID != -1 {
		t.Fatal("update must preserve position and id")
	}

	if err := s.DeleteItem(ctx, -1); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	items, _ = s.GetAllItems(ctx)
	if len(items) != 1 || items[0].ID != -2 {
		t.Fatalf("after delete GetAllItems() = %+v, want only id -2", items)
	}
}

func TestUpdateAndDeleteMissingItem(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.UpdateItem(ctx, models.ClothingItem{ID: 42, Name: "Ghost", Category: models.CategoryShoes})
	if !models.IsNotFound(err) {
		t.Errorf("UpdateItem(missing) error = %v, want not-found", err)
	}
	if err := s.DeleteItem(ctx, 42); !models.IsNotFound(err) {
		t.Errorf("DeleteItem(missing) error = %v, want not-found", err)
	}
}

func TestOutfitRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	outfit := models.Outfit{ID: -1, ItemIDs: []int64{-1, 3}, Occasion: "work"}
	if err := s.SaveOutfit(ctx, outfit); err != nil {
		t.Fatalf("SaveOutfit() error = %v", err)
	}

	outfit.Style = "business casual"
	if err := s.UpdateOutfit(ctx, outfit); err != nil {
		t.Fatalf("UpdateOutfit() error = %v", err)
	}

	outfits, err := s.GetAllOutfits(ctx)
	if err != nil {
		t.Fatalf("GetAllOutfits() error = %v", err)
	}
	if len(outfits) != 1 || outfits[0].Style != "business casual" {
		t.Fatalf("GetAllOutfits() = %+v", outfits)
	}

	if err := s.DeleteOutfit(ctx, -1); err != nil {
		t.Fatalf("DeleteOutfit() error = %v", err)
	}
	if err := s.DeleteOutfit(ctx, -1); !models.IsNotFound(err) {
		t.Errorf("second DeleteOutfit error = %v, want not-found", err)
	}
}

func TestReplaceCollections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveItem(ctx, models.ClothingItem{ID: -1, Name: "Old", Category: models.CategoryTops}); err != nil {
		t.Fatal(err)
	}

	replacement := []models.ClothingItem{
		{ID: 1, Name: "Server A", Category: models.CategoryTops},
		{ID: 2, Name: "Server B", Category: models.CategoryShoes},
	}
	if err := s.ReplaceItems(ctx, replacement); err != nil {
		t.Fatalf("ReplaceItems() error = %v", err)
	}

	items, _ := s.GetAllItems(ctx)
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Fatalf("ReplaceItems did not overwrite, got %+v", items)
	}

	if err := s.ReplaceOutfits(ctx, []models.Outfit{{ID: 9, ItemIDs: []int64{1}}}); err != nil {
		t.Fatalf("ReplaceOutfits() error = %v", err)
	}
	outfits, _ := s.GetAllOutfits(ctx)
	if len(outfits) != 1 || outfits[0].ID != 9 {
		t.Fatalf("ReplaceOutfits did not overwrite, got %+v", outfits)
	}
}

func TestLocalIDsAreNegativeAndNeverReused(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var issued []int64
	for i := 0; i < 3; i++ {
		id, err := s.NextLocalItemID(ctx)
		if err != nil {
			t.Fatalf("NextLocalItemID() error = %v", err)
		}
		issued = append(issued, id)
	}
	want := []int64{-1, -2, -3}
	for i := range want {
		if issued[i] != want[i] {
			t.Fatalf("issued ids = %v, want %v", issued, want)
		}
	}

	// The outfit counter is independent of the item counter.
	id, err := s.NextLocalOutfitID(ctx)
	if err != nil {
		t.Fatalf("NextLocalOutfitID() error = %v", err)
	}
	if id != -1 {
		t.Fatalf("first outfit id = %d, want -1", id)
	}
}

func TestItemsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveItem(ctx, models.ClothingItem{ID: -1, Name: "Persistent", Category: models.CategoryTops}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.NextLocalItemID(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	items, err := reopened.GetAllItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Name != "Persistent" {
		t.Fatalf("items after reopen = %+v", items)
	}

	// Counter continues from the persisted value.
	id, err := reopened.NextLocalItemID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id != -2 {
		t.Fatalf("id after reopen = %d, want -2", id)
	}
}

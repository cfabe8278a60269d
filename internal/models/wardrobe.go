// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package models defines the wardrobe domain entities shared by the client
// engine and the server.
//
// Identifier convention: a negative id marks an entity created on-device whose
// existence has not yet been acknowledged by the server; a positive id is
// server-assigned and authoritative. A negative id is produced exactly once by
// the local id counters and is replaced, never reused, when the server
// confirms the creation.
package models

import "time"

// Category classifies a clothing item.
type Category string

// Clothing item categories.
const (
	CategoryTops        Category = "tops"
	CategoryBottoms     Category = "bottoms"
	CategoryOuterwear   Category = "outerwear"
	CategoryShoes       Category = "shoes"
	CategoryAccessories Category = "accessories"
)

// Categories lists all valid clothing categories.
var Categories = []Category{
	CategoryTops,
	CategoryBottoms,
	CategoryOuterwear,
	CategoryShoes,
	CategoryAccessories,
}

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Size is a clothing size.
type Size string

// Clothing sizes.
const (
	SizeXS  Size = "xs"
	SizeS   Size = "s"
	SizeM   Size = "m"
	SizeL   Size = "l"
	SizeXL  Size = "xl"
	SizeXXL Size = "xxl"
)

// Sizes lists all valid clothing sizes.
var Sizes = []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL}

// Valid reports whether the size is one of the known values.
func (s Size) Valid() bool {
	for _, v := range Sizes {
		if s == v {
			return true
		}
	}
	return false
}

// ClothingItem is a single garment in the wardrobe.
type ClothingItem struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name" validate:"required,max=200"`
	Category  Category `json:"category" validate:"required,oneof=tops bottoms outerwear shoes accessories"`
	Color     string   `json:"color" validate:"max=100"`
	Brand     string   `json:"brand" validate:"max=200"`
	Size      Size     `json:"size" validate:"omitempty,oneof=xs s m l xl xxl"`
	Material  string   `json:"material" validate:"max=200"`
	PhotoPath string   `json:"photo_path" validate:"max=1024"`
	Notes     string   `json:"notes" validate:"max=4096"`
}

// Synced reports whether the item carries a server-confirmed id.
func (c ClothingItem) Synced() bool {
	return c.ID > 0
}

// Outfit is a combination of clothing items worn together.
//
// ItemIDs has set semantics; order carries no meaning. An id in ItemIDs may be
// negative (referencing a not-yet-confirmed item); the engine does not enforce
// referential integrity on write, only on delete via the cascade.
type Outfit struct {
	ID        int64     `json:"id"`
	ItemIDs   []int64   `json:"item_ids" validate:"required,min=1"`
	Occasion  string    `json:"occasion" validate:"max=200"`
	Style     string    `json:"style" validate:"max=200"`
	PhotoPath string    `json:"photo_path" validate:"max=1024"`
	Notes     string    `json:"notes" validate:"max=4096"`
	CreatedAt time.Time `json:"created_at"`
}

// Synced reports whether the outfit carries a server-confirmed id.
func (o Outfit) Synced() bool {
	return o.ID > 0
}

// References reports whether the outfit contains the given item id.
func (o Outfit) References(itemID int64) bool {
	for _, id := range o.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the outfit. ItemIDs is the only reference
// field; subscribers receive clones so they cannot mutate engine-owned state.
func (o Outfit) Clone() Outfit {
	out := o
	out.ItemIDs = append([]int64(nil), o.ItemIDs...)
	return out
}

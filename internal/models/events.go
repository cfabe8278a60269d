// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package models

// Change event types pushed over the WebSocket channel.
const (
	EventItemCreated   = "ITEM_CREATED"
	EventItemUpdated   = "ITEM_UPDATED"
	EventItemDeleted   = "ITEM_DELETED"
	EventOutfitCreated = "OUTFIT_CREATED"
	EventOutfitUpdated = "OUTFIT_UPDATED"
	EventOutfitDeleted = "OUTFIT_DELETED"
)

// ChangeEvent is the JSON envelope delivered on the push channel. Exactly one
// payload field is set depending on Type: Item for item created/updated,
// Outfit for outfit created/updated, ItemID / OutfitID for the delete events.
//
// A change event always represents a remote-confirmed fact; consumers apply it
// to in-memory state without a further round-trip.
type ChangeEvent struct {
	Type     string        `json:"type"`
	Item     *ClothingItem `json:"item,omitempty"`
	Outfit   *Outfit       `json:"outfit,omitempty"`
	ItemID   int64         `json:"itemId,omitempty"`
	OutfitID int64         `json:"outfitId,omitempty"`
}

// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package models

import "time"

// OperationKind identifies the mutation a queued operation replays.
type OperationKind string

// Operation kinds.
const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// EntityKind identifies which collection a queued operation targets.
type EntityKind string

// Entity kinds.
const (
	EntityItem   EntityKind = "item"
	EntityOutfit EntityKind = "outfit"
)

// QueuedOperation is a durable record of a mutation that has not yet been
// acknowledged by the server.
//
// Payload rules: Item or Outfit carries the full entity for create and update;
// EntityID alone addresses a delete. An operation is removed from the queue
// only on confirmed server success; on failure RetryCount increments and the
// operation stays in place with the failure recorded in LastError.
type QueuedOperation struct {
	ID         string        `json:"id"`
	Kind       OperationKind `json:"kind"`
	Entity     EntityKind    `json:"entity"`
	Item       *ClothingItem `json:"item,omitempty"`
	Outfit     *Outfit       `json:"outfit,omitempty"`
	EntityID   int64         `json:"entity_id,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	RetryCount int           `json:"retry_count"`
	LastError  string        `json:"last_error,omitempty"`
}

// TargetID returns the id of the entity the operation addresses, regardless
// of kind.
func (op QueuedOperation) TargetID() int64 {
	switch {
	case op.Item != nil:
		return op.Item.ID
	case op.Outfit != nil:
		return op.Outfit.ID
	default:
		return op.EntityID
	}
}

// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package models

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates an update or delete referenced an id with no record.
var ErrNotFound = errors.New("not found")

// StoreError is a failure in the durable local store. Local store errors are
// always surfaced to the caller; they indicate a broken device rather than a
// recoverable condition.
type StoreError struct {
	Op  string // operation that failed: "save_item", "get_all_outfits", ...
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("local store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps a local store failure.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// RemoteError is a failure from the remote client. Network distinguishes
// "offline/unreachable" (queued for replay, surfaced only as a will-sync-later
// state) from "server rejected the request" (surfaced as a hard failure,
// never retried automatically).
type RemoteError struct {
	Op         string // "create_item", "delete_outfit", ...
	StatusCode int    // HTTP status for server rejections, 0 otherwise
	Network    bool
	Err        error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Network {
		return fmt.Sprintf("remote %s: network unavailable: %v", e.Op, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: server rejected (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RemoteError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is a network-class remote failure, i.e.
// one that was absorbed into the pending operation queue.
func IsNetworkError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Network
}

// IsNotFound reports whether err stems from a missing record, on either layer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package metrics exposes Prometheus instrumentation for the sync engine,
// the pending operation queue, the remote client, and the server API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pending operation queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardrobe_pending_operations",
			Help: "Current number of queued, unacknowledged operations",
		},
	)

	QueueEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardrobe_operations_enqueued_total",
			Help: "Total operations pushed onto the pending queue",
		},
		[]string{"kind", "entity"},
	)

	QueueDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardrobe_operations_drained_total",
			Help: "Total queued operations confirmed by the server and removed",
		},
	)

	QueueRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardrobe_operation_retries_total",
			Help: "Total failed replay attempts that left an operation queued",
		},
	)

	// Synchronization engine
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wardrobe_resync_duration_seconds",
			Help:    "Duration of reconnect resync runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardrobe_sync_errors_total",
			Help: "Total non-network errors surfaced by the sync engine",
		},
		[]string{"operation"},
	)

	PushEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardrobe_push_events_applied_total",
			Help: "Total WebSocket change events applied to in-memory state",
		},
		[]string{"type"},
	)

	// Remote client
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardrobe_remote_requests_total",
			Help: "Total REST requests issued to the remote store",
		},
		[]string{"operation", "outcome"}, // outcome: ok, network_error, server_error
	)

	WebSocketReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardrobe_websocket_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		},
	)

	// Server API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardrobe_api_requests_total",
			Help: "Total API requests handled by the server",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wardrobe_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardrobe_websocket_connections",
			Help: "Current number of connected WebSocket clients",
		},
	)
)

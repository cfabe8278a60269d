// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package remote

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/wardrobe/internal/config"
	"github.com/tomtom215/wardrobe/internal/logging"
)

// Reachability tracks the client's current belief about whether the remote
// store is network-accessible by probing the server's health endpoint on an
// interval. Subscribers are notified synchronously on every transition; the
// offline-to-online transition is what triggers WebSocket reconnection,
// resync, and queue draining upstream.
type Reachability struct {
	healthURL string
	interval  time.Duration
	http      *http.Client

	online atomic.Bool

	subMu     sync.Mutex
	subs      map[int]func(online bool)
	nextSubID int
}

// NewReachability creates a monitor probing cfg.BaseURL's health endpoint.
func NewReachability(cfg config.ClientConfig) *Reachability {
	probeTimeout := cfg.ReachabilityInterval
	if probeTimeout > 3*time.Second || probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &Reachability{
		healthURL: cfg.BaseURL + "/healthz",
		interval:  cfg.ReachabilityInterval,
		http:      &http.Client{Timeout: probeTimeout},
		subs:      make(map[int]func(bool)),
	}
}

// Start probes immediately and then on every interval tick until ctx is
// canceled. It blocks; run it in a goroutine or under a supervisor.
func (r *Reachability) Start(ctx context.Context) error {
	r.probe(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.probe(ctx)
		}
	}
}

// IsOnline returns the current belief about remote reachability.
func (r *Reachability) IsOnline() bool {
	return r.online.Load()
}

// Subscribe registers fn for reachability transitions. It is called with the
// new state only when the state changes. Returns an unsubscribe function.
func (r *Reachability) Subscribe(fn func(online bool)) func() {
	r.subMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// probe checks the health endpoint once and publishes any transition.
func (r *Reachability) probe(ctx context.Context) {
	online := r.check(ctx)
	if r.online.Swap(online) == online {
		return
	}

	if online {
		logging.Info().Msg("remote store reachable")
	} else {
		logging.Warn().Msg("remote store unreachable, mutations will queue")
	}

	r.subMu.Lock()
	fns := make([]func(bool), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// check performs a single health probe.
func (r *Reachability) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

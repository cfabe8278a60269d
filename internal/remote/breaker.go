// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package remote

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/models"
)

// breaker wraps the REST client with a circuit breaker so a server that is
// down or consistently failing stops being hammered by every mutation. An
// open circuit is reported to callers as a network-class error, which routes
// the mutation into the pending operation queue like any other outage.
//
// Server rejections (non-network RemoteErrors) do not count as breaker
// failures: a 422 from a healthy server says nothing about availability.
type breaker struct {
	cb *gobreaker.CircuitBreaker[interface{}]
}

func newBreaker(name string) *breaker {
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		// Open after 60% failures with at least 10 requests observed.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		// Only network-class failures count against the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !models.IsNetworkError(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
		},
	})
	return &breaker{cb: cb}
}

func (b *breaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// isBreakerOpen reports whether err came from the breaker refusing the call
// rather than from the call itself.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/wardrobe/internal/config"
	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/metrics"
	"github.com/tomtom215/wardrobe/internal/models"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsPingInterval     = 30 * time.Second
	wsWriteTimeout     = 10 * time.Second
)

// WSClient maintains the push channel to the server.
//
// The connection is established only while reachability is positive. On an
// unexpected close it reconnects with a linearly increasing backoff
// (attempt * step) bounded by a maximum attempt count; reconnection is
// abandoned early if reachability drops, and a successful reconnect resets
// the attempt counter. Events are dispatched to the handler in the order the
// transport delivers them, with no reordering buffer.
type WSClient struct {
	url          string
	maxAttempts  int
	step         time.Duration
	reachable    func() bool

	conn   *websocket.Conn
	connMu sync.RWMutex

	// pumps reports whether a listen/pingLoop pair is alive (guarded by
	// connMu). Connect must not start a second pair while the first is still
	// inside its reconnect loop.
	pumps bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	handlerMu sync.RWMutex
	onEvent   func(models.ChangeEvent)
}

// NewWSClient creates a WebSocket client. reachable gates connection and
// reconnection attempts; pass the reachability monitor's IsOnline.
func NewWSClient(cfg config.ClientConfig, reachable func() bool) *WSClient {
	return &WSClient{
		url:         cfg.WebSocketURL,
		maxAttempts: cfg.MaxReconnectAttempts,
		step:        cfg.ReconnectStep,
		reachable:   reachable,
		stopChan:    make(chan struct{}),
	}
}

// OnEvent registers the handler invoked for every inbound change event.
func (c *WSClient) OnEvent(fn func(models.ChangeEvent)) {
	c.handlerMu.Lock()
	c.onEvent = fn
	c.handlerMu.Unlock()
}

// Connect establishes the WebSocket connection and starts the listener and
// keepalive goroutines. A no-op when already connected; an error when the
// remote is currently believed unreachable.
func (c *WSClient) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return nil
	}
	if !c.reachable() {
		return fmt.Errorf("websocket connect: remote unreachable")
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	logging.Info().Str("url", c.url).Msg("websocket connected")

	// A still-running listen pump (waiting in its reconnect loop) picks up
	// the fresh connection on its next pass; starting another pair would leak
	// one pinger per exhaustion cycle.
	if !c.pumps {
		c.pumps = true
		done := make(chan struct{})
		c.wg.Add(2)
		go c.listen(ctx, done)
		go c.pingLoop(ctx, done)
	}

	return nil
}

// listen reads messages until the connection drops, then runs the bounded
// reconnect sequence. Closing done on exit stops the paired pingLoop.
func (c *WSClient) listen(ctx context.Context, done chan struct{}) {
	defer c.wg.Done()
	defer func() {
		c.connMu.Lock()
		c.pumps = false
		c.connMu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil {
			if c.reconnect(ctx) {
				continue
			}
			// Clearing pumps must be atomic with the conn check: a Connect
			// racing the failed reconnect may have produced a fresh
			// connection that this pump pair must keep serving.
			c.connMu.Lock()
			if c.conn != nil {
				c.connMu.Unlock()
				continue
			}
			c.pumps = false
			c.connMu.Unlock()
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			logging.Debug().Err(err).Msg("websocket set read deadline failed")
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("websocket closed by server")
			} else if ctx.Err() == nil {
				logging.Warn().Err(err).Msg("websocket read error")
			}
			c.closeConnection()
			continue
		}

		c.handleMessage(message)
	}
}

// reconnect attempts to re-establish the connection with linear backoff.
// Returns false when the listener should stop: attempts exhausted, stop
// requested, context done, or reachability dropped (the reachability
// subscription will call Connect again when the server comes back).
func (c *WSClient) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if !c.reachable() {
			logging.Info().Msg("websocket reconnect abandoned, remote unreachable")
			return false
		}

		delay := time.Duration(attempt) * c.step
		logging.Info().
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Dur("delay", delay).
			Msg("websocket reconnecting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false
		case <-c.stopChan:
			return false
		}

		metrics.WebSocketReconnects.Inc()

		c.connMu.Lock()
		if c.conn != nil {
			// Another path reconnected while we were waiting.
			c.connMu.Unlock()
			return true
		}
		if !c.reachable() {
			c.connMu.Unlock()
			return false
		}

		dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
		conn, resp, err := dialer.DialContext(ctx, c.url, nil)
		if resp != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.connMu.Unlock()
			logging.Warn().Err(err).Int("attempt", attempt).Msg("websocket reconnect failed")
			continue
		}

		c.conn = conn
		c.connMu.Unlock()
		logging.Info().Int("attempt", attempt).Msg("websocket reconnected")
		// Counter resets by construction: the next disconnection starts a
		// fresh reconnect sequence from attempt 1.
		return true
	}

	logging.Error().Int("max_attempts", c.maxAttempts).Msg("websocket reconnect attempts exhausted")
	return false
}

// handleMessage decodes one change event and dispatches it.
func (c *WSClient) handleMessage(data []byte) {
	var event models.ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logging.Error().Err(err).Msg("failed to parse change event")
		return
	}
	if event.Type == "" {
		return
	}

	c.handlerMu.RLock()
	handler := c.onEvent
	c.handlerMu.RUnlock()

	if handler != nil {
		handler(event)
	}
}

// pingLoop sends pings so dead connections are detected within the read
// deadline window. It lives exactly as long as its paired listen pump.
func (c *WSClient) pingLoop(ctx context.Context, done <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-done:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
				logging.Debug().Err(err).Msg("websocket ping failed")
				c.closeConnection()
			}
		}
	}
}

// closeConnection tears down the current connection, if any.
func (c *WSClient) closeConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = c.conn.Close()
	c.conn = nil
}

// IsConnected reports whether a connection is currently established.
func (c *WSClient) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

// Close shuts the client down and waits for its goroutines.
func (c *WSClient) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.closeConnection()
	c.wg.Wait()
	return nil
}

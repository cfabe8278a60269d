// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package remote

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/wardrobe/internal/config"
	"github.com/tomtom215/wardrobe/internal/models"
)

// newPushServer runs a WebSocket endpoint that sends the given events to
// every connection as soon as it is established.
func newPushServer(t *testing.T, events []models.ChangeEvent) *httptest.Server {
	t.Helper()
	upgrader := gorillaws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, event := range events {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSClientDispatchesEventsInOrder(t *testing.T) {
	events := []models.ChangeEvent{
		{Type: models.EventItemCreated, Item: &models.ClothingItem{ID: 1, Name: "Shirt", Category: models.CategoryTops}},
		{Type: models.EventItemDeleted, ItemID: 1},
	}
	srv := newPushServer(t, events)

	c := NewWSClient(config.ClientConfig{
		WebSocketURL:         wsURL(srv),
		MaxReconnectAttempts: 3,
		ReconnectStep:        10 * time.Millisecond,
	}, func() bool { return true })
	defer func() { _ = c.Close() }()

	var mu sync.Mutex
	var received []models.ChangeEvent
	c.OnEvent(func(event models.ChangeEvent) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, "events not dispatched")

	mu.Lock()
	defer mu.Unlock()
	if received[0].Type != models.EventItemCreated || received[1].Type != models.EventItemDeleted {
		t.Fatalf("received = %+v, want transport order preserved", received)
	}
	if received[0].Item == nil || received[0].Item.ID != 1 {
		t.Errorf("event payload = %+v", received[0])
	}
}

func TestConnectIsNoOpWhenConnected(t *testing.T) {
	srv := newPushServer(t, nil)

	c := NewWSClient(config.ClientConfig{
		WebSocketURL:         wsURL(srv),
		MaxReconnectAttempts: 1,
		ReconnectStep:        10 * time.Millisecond,
	}, func() bool { return true })
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v, want no-op nil", err)
	}
}

// pumpsAlive exposes the pump lifecycle flag to tests.
func (c *WSClient) pumpsAlive() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.pumps
}

// pushServer is a WebSocket endpoint bound to a fixed address, so a test can
// stop it and bring it back on the same URL.
type pushServer struct {
	srv *http.Server

	mu    sync.Mutex
	conns []*gorillaws.Conn
}

func startPushServerAt(t *testing.T, addr string, events []models.ChangeEvent) *pushServer {
	t.Helper()
	ps := &pushServer{}
	upgrader := gorillaws.Upgrader{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conns = append(ps.conns, conn)
		ps.mu.Unlock()
		for _, event := range events {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen %s: %v", addr, err)
	}
	ps.srv = &http.Server{Handler: handler}
	go func() { _ = ps.srv.Serve(ln) }()
	return ps
}

// stop closes the listener and every established connection, including the
// hijacked WebSocket ones that http.Server.Close leaves alone.
func (ps *pushServer) stop() {
	_ = ps.srv.Close()
	ps.mu.Lock()
	for _, conn := range ps.conns {
		_ = conn.Close()
	}
	ps.conns = nil
	ps.mu.Unlock()
}

func TestConnectRestartsPumpsAfterReconnectExhaustion(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	first := startPushServerAt(t, addr, nil)

	c := NewWSClient(config.ClientConfig{
		WebSocketURL:         "ws://" + addr + "/ws",
		MaxReconnectAttempts: 1,
		ReconnectStep:        5 * time.Millisecond,
	}, func() bool { return true })
	defer func() { _ = c.Close() }()

	var mu sync.Mutex
	var received []models.ChangeEvent
	c.OnEvent(func(event models.ChangeEvent) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.pumpsAlive() {
		t.Fatal("pumps not running after Connect")
	}

	// Kill the server: the single reconnect attempt fails against the dead
	// address and both pumps wind down together.
	first.stop()
	waitFor(t, func() bool { return !c.pumpsAlive() }, "pumps still running after reconnect exhaustion")
	if c.IsConnected() {
		t.Error("IsConnected() = true after exhaustion")
	}

	// Server returns on the same address: a fresh Connect starts exactly one
	// new pump pair and events flow again.
	second := startPushServerAt(t, addr, []models.ChangeEvent{{Type: models.EventItemDeleted, ItemID: 9}})
	defer second.stop()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() after exhaustion error = %v", err)
	}
	if !c.pumpsAlive() {
		t.Fatal("pumps not restarted by Connect")
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && received[0].ItemID == 9
	}, "event not dispatched after pump restart")
}

func TestConnectRefusedWhenUnreachable(t *testing.T) {
	c := NewWSClient(config.ClientConfig{
		WebSocketURL:         "ws://localhost:1/ws",
		MaxReconnectAttempts: 1,
		ReconnectStep:        10 * time.Millisecond,
	}, func() bool { return false })

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect() = nil while unreachable, want error")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after refused connect")
	}
}

// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package main runs the offline-first sync client as a daemon.
//
// The client keeps a durable local copy of the wardrobe in BadgerDB, applies
// every mutation locally first, and synchronizes with the server whenever it
// is reachable: queued operations are replayed in order, remote collections
// are re-fetched on reconnect, and live change events arrive over WebSocket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/wardrobe/internal/config"
	"github.com/tomtom215/wardrobe/internal/engine"
	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/queue"
	"github.com/tomtom215/wardrobe/internal/remote"
	"github.com/tomtom215/wardrobe/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("base_url", cfg.Client.BaseURL).
		Str("data_dir", cfg.Client.DataDir).
		Msg("Starting wardrobe sync client")

	local, err := store.Open(cfg.Client.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer func() {
		if err := local.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing local store")
		}
	}()

	pending := queue.New(local.DB())
	client := remote.NewClient(cfg.Client, pending)
	reach := remote.NewReachability(cfg.Client)

	eng := engine.New(local, pending, client, client.Replay(), reach)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reachability probing must run before the engine starts so the initial
	// online state is meaningful.
	go func() {
		if err := reach.Start(ctx); err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("Reachability probe loop failed")
		}
	}()

	if err := eng.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start sync engine")
	}
	defer eng.Stop()

	ws := remote.NewWSClient(cfg.Client, reach.IsOnline)
	ws.OnEvent(eng.ApplyChangeEvent)
	defer func() {
		if err := ws.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing websocket client")
		}
	}()

	// Establish the push channel whenever the server becomes reachable.
	unsubscribe := reach.Subscribe(func(online bool) {
		if online {
			if err := ws.Connect(ctx); err != nil {
				logging.Warn().Err(err).Msg("WebSocket connect failed")
			}
		}
	})
	defer unsubscribe()

	if reach.IsOnline() {
		if err := ws.Connect(ctx); err != nil {
			logging.Warn().Err(err).Msg("WebSocket connect failed")
		}
	}

	unsubState := eng.Subscribe(func(s engine.State) {
		logging.Debug().
			Int("items", len(s.Items)).
			Int("outfits", len(s.Outfits)).
			Int("pending", s.PendingOps).
			Bool("online", s.Online).
			Bool("syncing", s.Syncing).
			Msg("state changed")
	})
	defer unsubState()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	cancel()
	logging.Info().Msg("Client stopped")
}

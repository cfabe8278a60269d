// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHTTPServer struct {
	serveErr   error
	blockServe chan struct{}
	shutdowns  atomic.Int32
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.blockServe != nil {
		<-f.blockServe
	}
	return f.serveErr
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdowns.Add(1)
	if f.blockServe != nil {
		close(f.blockServe)
	}
	return nil
}

func TestHTTPServerServicePropagatesFailure(t *testing.T) {
	wantErr := errors.New("listen tcp: address already in use")
	svc := NewHTTPServerService(&fakeHTTPServer{serveErr: wantErr}, time.Second)

	err := svc.Serve(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Serve() = %v, want %v", err, wantErr)
	}
}

func TestHTTPServerServiceTreatsServerClosedAsClean(t *testing.T) {
	svc := NewHTTPServerService(&fakeHTTPServer{serveErr: http.ErrServerClosed}, time.Second)

	if err := svc.Serve(context.Background()); err != nil {
		t.Fatalf("Serve() = %v, want nil on ErrServerClosed", err)
	}
}

func TestHTTPServerServiceShutsDownOnContextCancel(t *testing.T) {
	fake := &fakeHTTPServer{serveErr: http.ErrServerClosed, blockServe: make(chan struct{})}
	svc := NewHTTPServerService(fake, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled after graceful shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if fake.shutdowns.Load() != 1 {
		t.Errorf("Shutdown called %d times, want 1", fake.shutdowns.Load())
	}
}

func TestServiceNames(t *testing.T) {
	if got := NewHTTPServerService(&fakeHTTPServer{}, 0).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

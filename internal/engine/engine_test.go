// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/tomtom215/wardrobe/internal/catalog"
	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/models"
	"github.com/tomtom215/wardrobe/internal/queue"
	"github.com/tomtom215/wardrobe/internal/store"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
	os.Exit(m.Run())
}

// fakeBackend emulates the server plus connectivity: a catalog store behind
// an online flag, with every mutating call recorded in order.
type fakeBackend struct {
	mu     sync.Mutex
	srv    *catalog.Store
	online bool
	calls  []string

	// failCreateNamed makes item creates with this name fail as a server
	// rejection, to exercise partial drains.
	failCreateNamed string
}

func newFakeBackend(online bool) *fakeBackend {
	return &fakeBackend{srv: catalog.New(), online: online}
}

func (b *fakeBackend) setOnline(online bool) {
	b.mu.Lock()
	b.online = online
	b.mu.Unlock()
}

func (b *fakeBackend) isOnline() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func netErr(op string) error {
	return &models.RemoteError{Op: op, Network: true, Err: errors.New("connection refused")}
}

func notFoundErr(op string) error {
	return &models.RemoteError{Op: op, StatusCode: 404, Err: fmt.Errorf("%w: missing", models.ErrNotFound)}
}

func (b *fakeBackend) getItems() ([]models.ClothingItem, error) {
	if !b.isOnline() {
		return nil, netErr("get_items")
	}
	return b.srv.ListItems(), nil
}

func (b *fakeBackend) getOutfits() ([]models.Outfit, error) {
	if !b.isOnline() {
		return nil, netErr("get_outfits")
	}
	return b.srv.ListOutfits(), nil
}

func (b *fakeBackend) createItem(item models.ClothingItem) (models.ClothingItem, error) {
	if !b.isOnline() {
		return models.ClothingItem{}, netErr("create_item")
	}
	if b.failCreateNamed != "" && item.Name == b.failCreateNamed {
		return models.ClothingItem{}, &models.RemoteError{Op: "create_item", StatusCode: 422, Err: errors.New("rejected")}
	}
	created := b.srv.CreateItem(item)
	b.record(fmt.Sprintf("create_item:%d", created.ID))
	return created, nil
}

func (b *fakeBackend) updateItem(item models.ClothingItem) (models.ClothingItem, error) {
	if !b.isOnline() {
		return models.ClothingItem{}, netErr("update_item")
	}
	updated, err := b.srv.UpdateItem(item)
	if err != nil {
		return models.ClothingItem{}, notFoundErr("update_item")
	}
	b.record(fmt.Sprintf("update_item:%d", item.ID))
	return updated, nil
}

func (b *fakeBackend) deleteItem(id int64) error {
	if !b.isOnline() {
		return netErr("delete_item")
	}
	if _, err := b.srv.DeleteItem(id); err != nil {
		return notFoundErr("delete_item")
	}
	b.record(fmt.Sprintf("delete_item:%d", id))
	return nil
}

func (b *fakeBackend) createOutfit(outfit models.Outfit) (models.Outfit, error) {
	if !b.isOnline() {
		return models.Outfit{}, netErr("create_outfit")
	}
	created := b.srv.CreateOutfit(outfit)
	b.record(fmt.Sprintf("create_outfit:%d", created.ID))
	return created, nil
}

func (b *fakeBackend) updateOutfit(outfit models.Outfit) (models.Outfit, error) {
	if !b.isOnline() {
		return models.Outfit{}, netErr("update_outfit")
	}
	updated, err := b.srv.UpdateOutfit(outfit)
	if err != nil {
		return models.Outfit{}, notFoundErr("update_outfit")
	}
	b.record(fmt.Sprintf("update_outfit:%d", outfit.ID))
	return updated, nil
}

func (b *fakeBackend) deleteOutfit(id int64) error {
	if !b.isOnline() {
		return netErr("delete_outfit")
	}
	if err := b.srv.DeleteOutfit(id); err != nil {
		return notFoundErr("delete_outfit")
	}
	b.record(fmt.Sprintf("delete_outfit:%d", id))
	return nil
}

// fakeRemote is the queueing surface: like the real client, a network-class
// failure enqueues the equivalent operation before returning.
type fakeRemote struct {
	b *fakeBackend
	q *queue.Queue
}

func (f *fakeRemote) enqueue(ctx context.Context, op models.QueuedOperation) {
	if _, err := f.q.Enqueue(ctx, op); err != nil {
		panic(err)
	}
}

func (f *fakeRemote) GetItems(context.Context) ([]models.ClothingItem, error) {
	return f.b.getItems()
}

func (f *fakeRemote) GetOutfits(context.Context) ([]models.Outfit, error) {
	return f.b.getOutfits()
}

func (f *fakeRemote) CreateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	created, err := f.b.createItem(item)
	if models.IsNetworkError(err) {
		f.enqueue(ctx, models.QueuedOperation{Kind: models.OpCreate, Entity: models.EntityItem, Item: &item})
	}
	return created, err
}

func (f *fakeRemote) UpdateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	updated, err := f.b.updateItem(item)
	if models.IsNetworkError(err) {
		f.enqueue(ctx, models.QueuedOperation{Kind: models.OpUpdate, Entity: models.EntityItem, Item: &item})
	}
	return updated, err
}

func (f *fakeRemote) DeleteItem(ctx context.Context, id int64) error {
	err := f.b.deleteItem(id)
	if models.IsNetworkError(err) {
		f.enqueue(ctx, models.QueuedOperation{Kind: models.OpDelete, Entity: models.EntityItem, EntityID: id})
	}
	return err
}

func (f *fakeRemote) CreateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	created, err := f.b.createOutfit(outfit)
	if models.IsNetworkError(err) {
		f.enqueue(ctx, models.QueuedOperation{Kind: models.OpCreate, Entity: models.EntityOutfit, Outfit: &outfit})
	}
	return created, err
}

func (f *fakeRemote) UpdateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	updated, err := f.b.updateOutfit(outfit)
	if models.IsNetworkError(err) {
		f.enqueue(ctx, models.QueuedOperation{Kind: models.OpUpdate, Entity: models.EntityOutfit, Outfit: &outfit})
	}
	return updated, err
}

func (f *fakeRemote) DeleteOutfit(ctx context.Context, id int64) error {
	err := f.b.deleteOutfit(id)
	if models.IsNetworkError(err) {
		f.enqueue(ctx, models.QueuedOperation{Kind: models.OpDelete, Entity: models.EntityOutfit, EntityID: id})
	}
	return err
}

// fakeReplay is the non-queueing surface used by the drain.
type fakeReplay struct{ b *fakeBackend }

func (f *fakeReplay) CreateItem(_ context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	return f.b.createItem(item)
}

func (f *fakeReplay) UpdateItem(_ context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	return f.b.updateItem(item)
}

func (f *fakeReplay) DeleteItem(_ context.Context, id int64) error { return f.b.deleteItem(id) }

func (f *fakeReplay) CreateOutfit(_ context.Context, outfit models.Outfit) (models.Outfit, error) {
	return f.b.createOutfit(outfit)
}

func (f *fakeReplay) UpdateOutfit(_ context.Context, outfit models.Outfit) (models.Outfit, error) {
	return f.b.updateOutfit(outfit)
}

func (f *fakeReplay) DeleteOutfit(_ context.Context, id int64) error { return f.b.deleteOutfit(id) }

// fakeConn is the connectivity surface; SetOnline flips the flag and fires
// the subscriptions like the real reachability monitor.
type fakeConn struct {
	b    *fakeBackend
	mu   sync.Mutex
	subs []func(bool)
}

func (c *fakeConn) IsOnline() bool { return c.b.isOnline() }

func (c *fakeConn) Subscribe(fn func(online bool)) func() {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
	return func() {}
}

func (c *fakeConn) SetOnline(online bool) {
	c.b.setOnline(online)
	c.mu.Lock()
	subs := append(make([]func(bool), 0, len(c.subs)), c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

type fixture struct {
	engine  *Engine
	backend *fakeBackend
	conn    *fakeConn
	queue   *queue.Queue
	store   *store.Store
}

func setup(t *testing.T, online bool) *fixture {
	t.Helper()

	local, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	q := queue.New(local.DB())
	backend := newFakeBackend(online)
	conn := &fakeConn{b: backend}

	eng := New(local, q, &fakeRemote{b: backend, q: q}, &fakeReplay{b: backend}, conn)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("engine.Start() error = %v", err)
	}
	t.Cleanup(eng.Stop)

	return &fixture{engine: eng, backend: backend, conn: conn, queue: q, store: local}
}

func TestOfflineCreateIsImmediateAndQueued(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	item, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Raincoat", Category: models.CategoryOuterwear})
	if err != nil {
		t.Fatalf("CreateItem() offline error = %v, want nil", err)
	}
	if item.ID != -1 {
		t.Errorf("offline create id = %d, want -1", item.ID)
	}

	state := f.engine.Snapshot()
	if len(state.Items) != 1 || state.Items[0].ID != -1 {
		t.Fatalf("state.Items = %+v, want the unsynced item", state.Items)
	}
	if state.PendingOps != 1 {
		t.Errorf("PendingOps = %d, want 1", state.PendingOps)
	}
	if f.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1", f.queue.Len())
	}

	// Durable across restart: the local store already holds the item.
	items, err := f.store.GetAllItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Name != "Raincoat" {
		t.Fatalf("persisted items = %+v", items)
	}
}

func TestUpdateOfUnsyncedFoldsIntoQueuedCreate(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	item, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Shirt", Category: models.CategoryTops})
	if err != nil {
		t.Fatal(err)
	}

	item.Color = "white"
	if _, err := f.engine.UpdateItem(ctx, item); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}

	snapshot := f.queue.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("queue length = %d, want 1 (folded, not appended)", len(snapshot))
	}
	op := snapshot[0]
	if op.Kind != models.OpCreate {
		t.Errorf("queued kind = %s, want the original create", op.Kind)
	}
	if op.Item.Color != "white" {
		t.Errorf("queued payload color = %q, want the updated value", op.Item.Color)
	}
	if op.Item.ID != -1 {
		t.Errorf("queued payload id = %d, update must never change the id", op.Item.ID)
	}
}

func TestDeleteOfUnsyncedCancelsQueuedCreate(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	item, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Mistake", Category: models.CategoryTops})
	if err != nil {
		t.Fatal(err)
	}
	if f.queue.Len() != 1 {
		t.Fatal("create not queued")
	}

	if err := f.engine.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if f.queue.Len() != 0 {
		t.Errorf("queue length = %d, want 0 (queued create canceled)", f.queue.Len())
	}
	if len(f.engine.Snapshot().Items) != 0 {
		t.Error("item still in state after delete")
	}
	if len(f.backend.calls) != 0 {
		t.Errorf("server saw calls %v, want none", f.backend.calls)
	}
}

func TestOnlineCreateAdoptsServerID(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	created, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Boots", Category: models.CategoryShoes})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if created.ID != 1 {
		t.Errorf("created id = %d, want server-assigned 1", created.ID)
	}

	state := f.engine.Snapshot()
	if len(state.Items) != 1 || state.Items[0].ID != 1 {
		t.Fatalf("state.Items = %+v, want the server copy", state.Items)
	}
	if f.queue.Len() != 0 {
		t.Error("online create must not queue")
	}

	// The durable store was rewritten with the confirmed record.
	items, _ := f.store.GetAllItems(ctx)
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("persisted items = %+v, want id 1", items)
	}
}

func TestDeleteCascadesOutfitsBeforeItem(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	shirt, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Shirt", Category: models.CategoryTops})
	if err != nil {
		t.Fatal(err)
	}
	first, err := f.engine.CreateOutfit(ctx, models.Outfit{ItemIDs: []int64{shirt.ID}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.engine.CreateOutfit(ctx, models.Outfit{ItemIDs: []int64{shirt.ID}, Occasion: "work"})
	if err != nil {
		t.Fatal(err)
	}

	f.backend.mu.Lock()
	f.backend.calls = nil
	f.backend.mu.Unlock()

	if err := f.engine.DeleteItem(ctx, shirt.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}

	state := f.engine.Snapshot()
	if len(state.Items) != 0 || len(state.Outfits) != 0 {
		t.Fatalf("state after cascade = %d items, %d outfits, want empty", len(state.Items), len(state.Outfits))
	}

	// Outfit deletes go out before the item delete, in local state order
	// (most recent first). Server-side cascade already removed each outfit
	// by the time its delete arrives, so a 404 there is also accepted; here
	// the engine issues them explicitly.
	want := []string{
		fmt.Sprintf("delete_outfit:%d", second.ID),
		fmt.Sprintf("delete_outfit:%d", first.ID),
		fmt.Sprintf("delete_item:%d", shirt.ID),
	}
	if len(f.backend.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", f.backend.calls, want)
	}
	for i := range want {
		if f.backend.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", f.backend.calls, want)
		}
	}
}

func TestReconnectDrainsQueueAndReconcilesIDs(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	item, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Shirt", Category: models.CategoryTops})
	if err != nil {
		t.Fatal(err)
	}
	outfit, err := f.engine.CreateOutfit(ctx, models.Outfit{ItemIDs: []int64{item.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if item.ID != -1 || outfit.ID != -1 {
		t.Fatalf("offline ids = %d, %d; want -1, -1", item.ID, outfit.ID)
	}
	if f.queue.Len() != 2 {
		t.Fatalf("queue length = %d, want 2", f.queue.Len())
	}

	f.conn.SetOnline(true)

	if f.queue.Len() != 0 {
		t.Fatalf("queue length after reconnect = %d, want 0", f.queue.Len())
	}

	state := f.engine.Snapshot()
	if !state.Online {
		t.Error("state.Online = false after reconnect")
	}
	if len(state.Items) != 1 || state.Items[0].ID <= 0 {
		t.Fatalf("state.Items = %+v, want one server-confirmed item", state.Items)
	}
	if len(state.Outfits) != 1 || state.Outfits[0].ID <= 0 {
		t.Fatalf("state.Outfits = %+v, want one server-confirmed outfit", state.Outfits)
	}
	// The outfit's reference was rewritten to the server-assigned item id.
	if got := state.Outfits[0].ItemIDs; len(got) != 1 || got[0] != state.Items[0].ID {
		t.Fatalf("outfit ItemIDs = %v, want [%d]", got, state.Items[0].ID)
	}
}

func TestOfflineDeleteOfSyncedItemSurvivesReconnect(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	item, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Coat", Category: models.CategoryOuterwear})
	if err != nil {
		t.Fatal(err)
	}
	if item.ID != 1 {
		t.Fatalf("created id = %d, want server-assigned 1", item.ID)
	}

	f.conn.SetOnline(false)
	if err := f.engine.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem() offline error = %v", err)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("queue length = %d, want the queued delete", f.queue.Len())
	}

	f.conn.SetOnline(true)

	if f.queue.Len() != 0 {
		t.Errorf("queue length after reconnect = %d, want 0", f.queue.Len())
	}
	if items := f.engine.Snapshot().Items; len(items) != 0 {
		t.Fatalf("state.Items = %+v, deleted item must stay absent after reconnect", items)
	}
	if items := f.backend.srv.ListItems(); len(items) != 0 {
		t.Fatalf("server items = %+v, want the delete replayed", items)
	}
	items, err := f.store.GetAllItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("persisted items = %+v, want empty", items)
	}
}

func TestOfflineUpdateOfSyncedItemSurvivesReconnect(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	item, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Coat", Category: models.CategoryOuterwear})
	if err != nil {
		t.Fatal(err)
	}

	f.conn.SetOnline(false)
	item.Color = "navy"
	if _, err := f.engine.UpdateItem(ctx, item); err != nil {
		t.Fatalf("UpdateItem() offline error = %v", err)
	}

	f.conn.SetOnline(true)

	if f.queue.Len() != 0 {
		t.Errorf("queue length after reconnect = %d, want 0", f.queue.Len())
	}
	state := f.engine.Snapshot()
	if len(state.Items) != 1 || state.Items[0].ID != item.ID || state.Items[0].Color != "navy" {
		t.Fatalf("state.Items = %+v, want the offline update preserved", state.Items)
	}
	server := f.backend.srv.ListItems()
	if len(server) != 1 || server[0].Color != "navy" {
		t.Fatalf("server items = %+v, want the update replayed", server)
	}
}

func TestResyncSkipsEntitiesWithQueuedMutations(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	doomed, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Doomed", Category: models.CategoryTops})
	if err != nil {
		t.Fatal(err)
	}
	edited, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Edited", Category: models.CategoryShoes})
	if err != nil {
		t.Fatal(err)
	}

	// Queue a delete and an update without any drain: flip only the backend
	// flag so no reconnect sequence fires.
	f.backend.setOnline(false)
	if err := f.engine.DeleteItem(ctx, doomed.ID); err != nil {
		t.Fatal(err)
	}
	edited.Color = "red"
	if _, err := f.engine.UpdateItem(ctx, edited); err != nil {
		t.Fatal(err)
	}
	if f.queue.Len() != 2 {
		t.Fatalf("queue length = %d, want 2", f.queue.Len())
	}

	// The server still holds both stale copies; a resync with the operations
	// still queued must not resurrect the delete or roll back the update.
	f.backend.setOnline(true)
	if err := f.engine.Resync(ctx); err != nil {
		t.Fatalf("Resync() error = %v", err)
	}

	state := f.engine.Snapshot()
	if len(state.Items) != 1 {
		t.Fatalf("state.Items = %+v, want only the edited item", state.Items)
	}
	if state.Items[0].ID != edited.ID || state.Items[0].Color != "red" {
		t.Fatalf("state.Items[0] = %+v, want the pending update kept", state.Items[0])
	}
}

func TestDrainKeepsRejectedOperation(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	if _, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "rejected", Category: models.CategoryTops}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "accepted", Category: models.CategoryTops}); err != nil {
		t.Fatal(err)
	}

	f.backend.failCreateNamed = "rejected"
	f.conn.SetOnline(true)

	snapshot := f.queue.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("queue length = %d, want only the rejected op", len(snapshot))
	}
	if snapshot[0].Item.Name != "rejected" {
		t.Errorf("remaining op = %q, want the rejected one", snapshot[0].Item.Name)
	}
	if snapshot[0].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", snapshot[0].RetryCount)
	}

	// The accepted create went through despite the earlier rejection.
	if len(f.backend.srv.ListItems()) != 1 {
		t.Error("accepted create did not reach the server")
	}
}

func TestResyncIsIdempotent(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	f.backend.srv.CreateItem(models.ClothingItem{Name: "Server shirt", Category: models.CategoryTops})
	f.backend.srv.CreateItem(models.ClothingItem{Name: "Server shoes", Category: models.CategoryShoes})

	if err := f.engine.Resync(ctx); err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	first := f.engine.Snapshot()

	if err := f.engine.Resync(ctx); err != nil {
		t.Fatalf("second Resync() error = %v", err)
	}
	second := f.engine.Snapshot()

	if len(first.Items) != 2 || len(second.Items) != len(first.Items) {
		t.Fatalf("resync not idempotent: %d then %d items", len(first.Items), len(second.Items))
	}
	for i := range first.Items {
		if first.Items[i] != second.Items[i] {
			t.Fatalf("item %d differs between resyncs", i)
		}
	}
}

func TestResyncKeepsUnsyncedLocals(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	if _, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Local only", Category: models.CategoryTops}); err != nil {
		t.Fatal(err)
	}

	f.backend.srv.CreateItem(models.ClothingItem{Name: "Server side", Category: models.CategoryShoes})
	f.backend.setOnline(true)

	if err := f.engine.Resync(ctx); err != nil {
		t.Fatalf("Resync() error = %v", err)
	}

	state := f.engine.Snapshot()
	if len(state.Items) != 2 {
		t.Fatalf("state.Items = %+v, want local unsynced + server copy", state.Items)
	}
	if state.Items[0].ID != -1 || state.Items[0].Name != "Local only" {
		t.Errorf("unsynced local lost in merge: %+v", state.Items)
	}
	if state.Items[1].ID != 1 {
		t.Errorf("server copy missing from merge: %+v", state.Items)
	}
}

func TestApplyChangeEventDeduplicatesOwnEcho(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	created, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Shirt", Category: models.CategoryTops})
	if err != nil {
		t.Fatal(err)
	}

	// The server pushes the create back to every client, including the one
	// that issued it.
	echo := created
	f.engine.ApplyChangeEvent(models.ChangeEvent{Type: models.EventItemCreated, Item: &echo})
	if got := len(f.engine.Snapshot().Items); got != 1 {
		t.Fatalf("items after own echo = %d, want 1", got)
	}

	other := models.ClothingItem{ID: 50, Name: "From another device", Category: models.CategoryShoes}
	f.engine.ApplyChangeEvent(models.ChangeEvent{Type: models.EventItemCreated, Item: &other})
	state := f.engine.Snapshot()
	if len(state.Items) != 2 || state.Items[0].ID != 50 {
		t.Fatalf("items after foreign create = %+v", state.Items)
	}

	f.engine.ApplyChangeEvent(models.ChangeEvent{Type: models.EventItemDeleted, ItemID: 50})
	if got := len(f.engine.Snapshot().Items); got != 1 {
		t.Fatalf("items after delete event = %d, want 1", got)
	}

	// Unknown event types are ignored.
	f.engine.ApplyChangeEvent(models.ChangeEvent{Type: "SOMETHING_ELSE"})
	if got := len(f.engine.Snapshot().Items); got != 1 {
		t.Fatalf("items after unknown event = %d, want 1", got)
	}
}

func TestOutfitCreatedAtIsImmutable(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	item, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Shirt", Category: models.CategoryTops})
	if err != nil {
		t.Fatal(err)
	}
	outfit, err := f.engine.CreateOutfit(ctx, models.Outfit{ItemIDs: []int64{item.ID}})
	if err != nil {
		t.Fatal(err)
	}
	created := outfit.CreatedAt
	if created.IsZero() {
		t.Fatal("CreatedAt not stamped on create")
	}

	outfit.Occasion = "party"
	outfit.CreatedAt = created.AddDate(1, 0, 0)
	updated, err := f.engine.UpdateOutfit(ctx, outfit)
	if err != nil {
		t.Fatalf("UpdateOutfit() error = %v", err)
	}
	if !updated.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want original %v", updated.CreatedAt, created)
	}
}

func TestSubscribePublishesOnMutation(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	var mu sync.Mutex
	var snapshots []State
	unsub := f.engine.Subscribe(func(s State) {
		mu.Lock()
		snapshots = append(snapshots, s)
		mu.Unlock()
	})
	defer unsub()

	if _, err := f.engine.CreateItem(ctx, models.ClothingItem{Name: "Shirt", Category: models.CategoryTops}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) == 0 {
		t.Fatal("no state published on mutation")
	}
	last := snapshots[len(snapshots)-1]
	if len(last.Items) != 1 || last.PendingOps != 1 {
		t.Fatalf("last snapshot = %d items, %d pending; want 1, 1", len(last.Items), last.PendingOps)
	}

	// Snapshots are deep copies; mutating one cannot corrupt engine state.
	last.Items[0].Name = "tampered"
	if f.engine.Snapshot().Items[0].Name != "Shirt" {
		t.Error("subscriber mutation leaked into engine state")
	}
}

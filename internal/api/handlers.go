// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/wardrobe/internal/catalog"
	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/models"
	"github.com/tomtom215/wardrobe/internal/websocket"
)

// Handler bundles the catalog store and the push hub behind the HTTP
// endpoints. Every mutation broadcasts its change event after the store
// accepted it, so connected clients never observe a change the store could
// still reject.
type Handler struct {
	store    *catalog.Store
	hub      *websocket.Hub
	validate *validator.Validate
	upgrader gorillaws.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(store *catalog.Store, hub *websocket.Hub) *Handler {
	return &Handler{
		store:    store,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement happens in the CORS middleware; the
			// upgrade itself accepts any origin that got this far.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Health reports liveness. Clients also use this endpoint as their
// reachability probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// ListItems returns every clothing item in insertion order.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.store.ListItems())
}

// CreateItem stores a new clothing item under a server-assigned id.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var item models.ClothingItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if details := h.validateStruct(item); details != nil {
		rw.ValidationFailed(details)
		return
	}

	created := h.store.CreateItem(item)
	h.hub.Broadcast(models.ChangeEvent{Type: models.EventItemCreated, Item: &created})
	rw.Created(created)
}

// UpdateItem replaces the item with the id from the path.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	var item models.ClothingItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	item.ID = id
	if details := h.validateStruct(item); details != nil {
		rw.ValidationFailed(details)
		return
	}

	updated, err := h.store.UpdateItem(item)
	if errors.Is(err, models.ErrNotFound) {
		rw.NotFound("item not found")
		return
	}
	h.hub.Broadcast(models.ChangeEvent{Type: models.EventItemUpdated, Item: &updated})
	rw.Success(updated)
}

// DeleteItem removes an item and cascades to every outfit referencing it.
// The cascade events go out before the item's own delete event so clients
// never hold an outfit whose item is already gone.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	cascaded, err := h.store.DeleteItem(id)
	if errors.Is(err, models.ErrNotFound) {
		rw.NotFound("item not found")
		return
	}

	for _, outfitID := range cascaded {
		h.hub.Broadcast(models.ChangeEvent{Type: models.EventOutfitDeleted, OutfitID: outfitID})
	}
	h.hub.Broadcast(models.ChangeEvent{Type: models.EventItemDeleted, ItemID: id})

	logging.Info().
		Int64("item_id", id).
		Int("cascaded_outfits", len(cascaded)).
		Msg("item deleted")
	rw.Success(nil)
}

// ListOutfits returns every outfit in insertion order.
func (h *Handler) ListOutfits(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.store.ListOutfits())
}

// CreateOutfit stores a new outfit under a server-assigned id. A missing
// creation date is stamped server-side.
func (h *Handler) CreateOutfit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var outfit models.Outfit
	if err := json.NewDecoder(r.Body).Decode(&outfit); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if details := h.validateStruct(outfit); details != nil {
		rw.ValidationFailed(details)
		return
	}
	if outfit.CreatedAt.IsZero() {
		outfit.CreatedAt = time.Now().UTC()
	}

	created := h.store.CreateOutfit(outfit)
	h.hub.Broadcast(models.ChangeEvent{Type: models.EventOutfitCreated, Outfit: &created})
	rw.Created(created)
}

// UpdateOutfit replaces the outfit with the id from the path. The stored
// creation date is preserved.
func (h *Handler) UpdateOutfit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	var outfit models.Outfit
	if err := json.NewDecoder(r.Body).Decode(&outfit); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	outfit.ID = id
	if details := h.validateStruct(outfit); details != nil {
		rw.ValidationFailed(details)
		return
	}

	updated, err := h.store.UpdateOutfit(outfit)
	if errors.Is(err, models.ErrNotFound) {
		rw.NotFound("outfit not found")
		return
	}
	h.hub.Broadcast(models.ChangeEvent{Type: models.EventOutfitUpdated, Outfit: &updated})
	rw.Success(updated)
}

// DeleteOutfit removes the outfit with the id from the path.
func (h *Handler) DeleteOutfit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	if err := h.store.DeleteOutfit(id); errors.Is(err, models.ErrNotFound) {
		rw.NotFound("outfit not found")
		return
	}
	h.hub.Broadcast(models.ChangeEvent{Type: models.EventOutfitDeleted, OutfitID: id})
	rw.Success(nil)
}

// WebSocket upgrades the connection and registers it with the push hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// validateStruct runs struct validation and flattens the failures into a
// field -> constraint map suitable for the error details payload.
func (h *Handler) validateStruct(v interface{}) map[string]string {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

// pathID parses the {id} route parameter, writing a 400 on failure.
func pathID(rw *ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("invalid id")
		return 0, false
	}
	return id, true
}

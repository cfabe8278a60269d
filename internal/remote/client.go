// Wardrobe - Offline-First Wardrobe and Outfit Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wardrobe

// Package remote talks to the authoritative wardrobe server: REST calls for
// CRUD, a managed WebSocket connection for push notifications, and a
// reachability monitor.
//
// Offline durability lives at this layer: every mutating verb, on a
// network-class failure (timeout, connection refused, open circuit breaker),
// enqueues the equivalent operation into the pending operation queue before
// returning an error for which models.IsNetworkError reports true. Callers
// that skip the engine still get offline durability. Server rejections
// (4xx/5xx from a reachable server) are surfaced without queueing.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/wardrobe/internal/config"
	"github.com/tomtom215/wardrobe/internal/logging"
	"github.com/tomtom215/wardrobe/internal/metrics"
	"github.com/tomtom215/wardrobe/internal/models"
	"github.com/tomtom215/wardrobe/internal/queue"
)

// Client is the REST client for the remote wardrobe store.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	queue   *queue.Queue
	breaker *breaker
	limiter *rate.Limiter
}

// NewClient creates a remote client. The queue receives the equivalent
// operation whenever a mutating call fails with a network-class error.
func NewClient(cfg config.ClientConfig, q *queue.Queue) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.RequestBurst
	if burst <= 0 {
		burst = 5
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		timeout: cfg.RequestTimeout,
		queue:   q,
		breaker: newBreaker("wardrobe-api"),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// itemPayload is the request body for item create/update. It carries only the
// entity's fields; the client never sends a client-chosen id on create.
type itemPayload struct {
	Name      string          `json:"name"`
	Category  models.Category `json:"category"`
	Color     string          `json:"color"`
	Brand     string          `json:"brand"`
	Size      models.Size     `json:"size"`
	Material  string          `json:"material"`
	PhotoPath string          `json:"photo_path"`
	Notes     string          `json:"notes"`
}

func itemBody(item models.ClothingItem) itemPayload {
	return itemPayload{
		Name:      item.Name,
		Category:  item.Category,
		Color:     item.Color,
		Brand:     item.Brand,
		Size:      item.Size,
		Material:  item.Material,
		PhotoPath: item.PhotoPath,
		Notes:     item.Notes,
	}
}

// outfitPayload is the request body for outfit create/update.
type outfitPayload struct {
	ItemIDs   []int64   `json:"item_ids"`
	Occasion  string    `json:"occasion"`
	Style     string    `json:"style"`
	PhotoPath string    `json:"photo_path"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func outfitBody(outfit models.Outfit) outfitPayload {
	return outfitPayload{
		ItemIDs:   outfit.ItemIDs,
		Occasion:  outfit.Occasion,
		Style:     outfit.Style,
		PhotoPath: outfit.PhotoPath,
		Notes:     outfit.Notes,
		CreatedAt: outfit.CreatedAt,
	}
}

// GetItems fetches the full item collection. Intended to be called once per
// cold start and once per reconnect resync, not polled. Reads are never
// queued for replay.
func (c *Client) GetItems(ctx context.Context) ([]models.ClothingItem, error) {
	var items []models.ClothingItem
	if err := c.do(ctx, "get_items", http.MethodGet, "/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetOutfits fetches the full outfit collection.
func (c *Client) GetOutfits(ctx context.Context) ([]models.Outfit, error) {
	var outfits []models.Outfit
	if err := c.do(ctx, "get_outfits", http.MethodGet, "/outfits", nil, &outfits); err != nil {
		return nil, err
	}
	return outfits, nil
}

// CreateItem creates the item remotely. The response carries the
// server-assigned id, which is authoritative. On a network-class failure the
// create is enqueued (payload keeps the caller's temporary id so the drain
// can reconcile it later).
func (c *Client) CreateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	created, err := c.createItem(ctx, item)
	if err != nil && models.IsNetworkError(err) {
		c.enqueue(ctx, models.QueuedOperation{
			Kind:   models.OpCreate,
			Entity: models.EntityItem,
			Item:   &item,
		})
	}
	return created, err
}

// UpdateItem updates the item remotely, addressing it by its existing id and
// sending the full entity.
func (c *Client) UpdateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	updated, err := c.updateItem(ctx, item)
	if err != nil && models.IsNetworkError(err) {
		c.enqueue(ctx, models.QueuedOperation{
			Kind:   models.OpUpdate,
			Entity: models.EntityItem,
			Item:   &item,
		})
	}
	return updated, err
}

// DeleteItem deletes the item remotely by id; no entity body is sent.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	err := c.deleteItem(ctx, id)
	if err != nil && models.IsNetworkError(err) {
		c.enqueue(ctx, models.QueuedOperation{
			Kind:     models.OpDelete,
			Entity:   models.EntityItem,
			EntityID: id,
		})
	}
	return err
}

// CreateOutfit creates the outfit remotely.
func (c *Client) CreateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	created, err := c.createOutfit(ctx, outfit)
	if err != nil && models.IsNetworkError(err) {
		c.enqueue(ctx, models.QueuedOperation{
			Kind:   models.OpCreate,
			Entity: models.EntityOutfit,
			Outfit: &outfit,
		})
	}
	return created, err
}

// UpdateOutfit updates the outfit remotely.
func (c *Client) UpdateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	updated, err := c.updateOutfit(ctx, outfit)
	if err != nil && models.IsNetworkError(err) {
		c.enqueue(ctx, models.QueuedOperation{
			Kind:   models.OpUpdate,
			Entity: models.EntityOutfit,
			Outfit: &outfit,
		})
	}
	return updated, err
}

// DeleteOutfit deletes the outfit remotely by id.
func (c *Client) DeleteOutfit(ctx context.Context, id int64) error {
	err := c.deleteOutfit(ctx, id)
	if err != nil && models.IsNetworkError(err) {
		c.enqueue(ctx, models.QueuedOperation{
			Kind:     models.OpDelete,
			Entity:   models.EntityOutfit,
			EntityID: id,
		})
	}
	return err
}

// Replay returns a view of the client whose mutating verbs never enqueue on
// failure. The queue drain executor uses it so a failed replay does not
// re-enqueue an operation that is already queued.
func (c *Client) Replay() *ReplayClient {
	return &ReplayClient{c: c}
}

// ReplayClient exposes the same verbs as Client without offline queueing.
type ReplayClient struct {
	c *Client
}

// CreateItem replays an item create. The returned item carries the
// server-assigned id.
func (r *ReplayClient) CreateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	return r.c.createItem(ctx, item)
}

// UpdateItem replays an item update.
func (r *ReplayClient) UpdateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	return r.c.updateItem(ctx, item)
}

// DeleteItem replays an item delete.
func (r *ReplayClient) DeleteItem(ctx context.Context, id int64) error {
	return r.c.deleteItem(ctx, id)
}

// CreateOutfit replays an outfit create.
func (r *ReplayClient) CreateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	return r.c.createOutfit(ctx, outfit)
}

// UpdateOutfit replays an outfit update.
func (r *ReplayClient) UpdateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	return r.c.updateOutfit(ctx, outfit)
}

// DeleteOutfit replays an outfit delete.
func (r *ReplayClient) DeleteOutfit(ctx context.Context, id int64) error {
	return r.c.deleteOutfit(ctx, id)
}

func (c *Client) createItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	var created models.ClothingItem
	if err := c.do(ctx, "create_item", http.MethodPost, "/items", itemBody(item), &created); err != nil {
		return models.ClothingItem{}, err
	}
	return created, nil
}

func (c *Client) updateItem(ctx context.Context, item models.ClothingItem) (models.ClothingItem, error) {
	var updated models.ClothingItem
	path := fmt.Sprintf("/items/%d", item.ID)
	if err := c.do(ctx, "update_item", http.MethodPut, path, itemBody(item), &updated); err != nil {
		return models.ClothingItem{}, err
	}
	if updated.ID != item.ID {
		return models.ClothingItem{}, &models.RemoteError{
			Op:  "update_item",
			Err: fmt.Errorf("server returned id %d for update of id %d", updated.ID, item.ID),
		}
	}
	return updated, nil
}

func (c *Client) deleteItem(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_item", http.MethodDelete, fmt.Sprintf("/items/%d", id), nil, nil)
}

func (c *Client) createOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	var created models.Outfit
	if err := c.do(ctx, "create_outfit", http.MethodPost, "/outfits", outfitBody(outfit), &created); err != nil {
		return models.Outfit{}, err
	}
	return created, nil
}

func (c *Client) updateOutfit(ctx context.Context, outfit models.Outfit) (models.Outfit, error) {
	var updated models.Outfit
	path := fmt.Sprintf("/outfits/%d", outfit.ID)
	if err := c.do(ctx, "update_outfit", http.MethodPut, path, outfitBody(outfit), &updated); err != nil {
		return models.Outfit{}, err
	}
	if updated.ID != outfit.ID {
		return models.Outfit{}, &models.RemoteError{
			Op:  "update_outfit",
			Err: fmt.Errorf("server returned id %d for update of id %d", updated.ID, outfit.ID),
		}
	}
	return updated, nil
}

func (c *Client) deleteOutfit(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_outfit", http.MethodDelete, fmt.Sprintf("/outfits/%d", id), nil, nil)
}

// envelope matches the server's standardized response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do executes one REST call: rate limit, circuit breaker, fixed timeout,
// envelope decoding. out may be nil for verbs without a response body.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "network_error").Inc()
		return &models.RemoteError{Op: op, Network: true, Err: err}
	}

	_, err := c.breaker.execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, body, out)
	})

	switch {
	case err == nil:
		metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
		return nil
	case isBreakerOpen(err):
		// Open breaker means the server has been unreachable or failing;
		// treat as a network-class error so the mutation is queued.
		metrics.RemoteRequests.WithLabelValues(op, "network_error").Inc()
		return &models.RemoteError{Op: op, Network: true, Err: err}
	default:
		var re *models.RemoteError
		if errors.As(err, &re) {
			if re.Network {
				metrics.RemoteRequests.WithLabelValues(op, "network_error").Inc()
			} else {
				metrics.RemoteRequests.WithLabelValues(op, "server_error").Inc()
			}
			return err
		}
		metrics.RemoteRequests.WithLabelValues(op, "network_error").Inc()
		return &models.RemoteError{Op: op, Network: true, Err: err}
	}
}

// roundTrip performs the HTTP exchange and decodes the response envelope.
func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &models.RemoteError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return &models.RemoteError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// No HTTP response at all: timeout, refused, DNS, aborted dial.
		return &models.RemoteError{Op: op, Network: true, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &models.RemoteError{Op: op, Network: true, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		msg := http.StatusText(resp.StatusCode)
		var env envelope
		if jerr := json.Unmarshal(data, &env); jerr == nil && env.Error != nil {
			msg = env.Error.Message
		}
		cause := errors.New(msg)
		if resp.StatusCode == http.StatusNotFound {
			cause = fmt.Errorf("%w: %s", models.ErrNotFound, msg)
		}
		return &models.RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        cause,
		}
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &models.RemoteError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &models.RemoteError{Op: op, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

// enqueue records the failed mutation for later replay. A queue persistence
// failure here is logged but not returned; the caller already holds the
// network error.
func (c *Client) enqueue(ctx context.Context, op models.QueuedOperation) {
	// The caller's context may already be canceled or past its deadline;
	// queueing must still succeed.
	if _, err := c.queue.Enqueue(context.WithoutCancel(ctx), op); err != nil {
		logging.Error().Err(err).
			Str("kind", string(op.Kind)).
			Str("entity", string(op.Entity)).
			Msg("failed to queue operation after network error")
	}
}

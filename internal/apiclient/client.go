// Package apiclient is a typed client for the order API. It satisfies the
// reconcile gateway and the inventory report source for remote callers.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/shared"
)

// Actor headers understood by the API.
const (
	headerActorID        = "X-Actor-ID"
	headerActorRole      = "X-Actor-Role"
	headerIdempotencyKey = "Idempotency-Key"
)

// APIError is a non-2xx response. Message holds the server's text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Unwrap maps the status onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusConflict:
		return shared.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return shared.ErrValidation
	case http.StatusForbidden, http.StatusUnauthorized:
		return shared.ErrForbidden
	default:
		return nil
	}
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Actor      shared.Actor
	HTTPClient *http.Client
}

// Client calls the order API on behalf of one actor.
type Client struct {
	base  *url.URL
	actor shared.Actor
	http  *http.Client
}

// New validates cfg and builds a client. A nil HTTPClient uses
// http.DefaultClient; no timeout beyond the client's own is applied.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("apiclient: base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, actor: cfg.Actor, http: httpClient}, nil
}

// Products lists the catalog.
func (c *Client) Products(ctx context.Context) ([]catalog.Product, error) {
	raw, err := c.do(ctx, http.MethodGet, "products", nil, nil)
	if err != nil {
		return nil, err
	}
	return normalizeList[catalog.Product](raw)
}

// Orders lists every order visible to the actor.
func (c *Client) Orders(ctx context.Context) ([]orders.Order, error) {
	raw, err := c.do(ctx, http.MethodGet, "orders", nil, nil)
	if err != nil {
		return nil, err
	}
	return normalizeList[orders.Order](raw)
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, id int64) (*orders.Order, error) {
	return c.order(ctx, http.MethodGet, orderPath(id, ""), nil, nil)
}

// CreateOrder posts a new order. A non-empty key is sent as Idempotency-Key;
// an empty key gets a fresh one.
func (c *Client) CreateOrder(ctx context.Context, req orders.CreateRequest, key string) (*orders.Order, error) {
	if key == "" {
		key = uuid.NewString()
	}
	return c.order(ctx, http.MethodPost, "orders", req, map[string]string{headerIdempotencyKey: key})
}

// Process requests a status change and/or driver assignment.
func (c *Client) Process(ctx context.Context, orderID int64, req orders.ProcessRequest) (*orders.Order, error) {
	return c.order(ctx, http.MethodPost, orderPath(orderID, "process"), req, nil)
}

// UpdateItems patches container return counts.
func (c *Client) UpdateItems(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error) {
	return c.order(ctx, http.MethodPatch, orderPath(orderID, "items"), orders.ItemsRequest{Items: updates}, nil)
}

// FinalizeDelivery applies return counts and delivers the order in one call.
func (c *Client) FinalizeDelivery(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error) {
	return c.order(ctx, http.MethodPost, orderPath(orderID, "finalize"), orders.FinalizeRequest{Items: updates}, nil)
}

func orderPath(id int64, action string) string {
	p := "orders/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) order(ctx context.Context, method, path string, body any, headers map[string]string) (*orders.Order, error) {
	raw, err := c.do(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	var o orders.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("apiclient: decode order: %w", err)
	}
	return &o, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) ([]byte, error) {
	target := c.base.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.actor.ID > 0 {
		req.Header.Set(headerActorID, strconv.FormatInt(c.actor.ID, 10))
		req.Header.Set(headerActorRole, c.actor.Role)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}
	return raw, nil
}

// serverMessage extracts the human readable error from a response body. It
// understands problem details and {"error": "..."} / {"detail": "..."} shapes.
func serverMessage(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, msg := range []string{body.Detail, body.Error, body.Title} {
			if msg != "" {
				return msg
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

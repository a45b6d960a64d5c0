package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterops/waterops/internal/inventory"
	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/reconcile"
	"github.com/waterops/waterops/internal/shared"
)

var (
	_ reconcile.Gateway = (*Client)(nil)
	_ inventory.Source  = (*Client)(nil)
)

func TestNormalizeList(t *testing.T) {
	cases := map[string]int{
		`{"results":[{"id":1},{"id":2}]}`: 2,
		`{"data":[{"id":1}]}`:             1,
		`[{"id":1},{"id":2},{"id":3}]`:    3,
		`null`:                            0,
		``:                                0,
		`{"results":null}`:                0,
		`{"count":0}`:                     0,
		`[]`:                              0,
	}
	for payload, want := range cases {
		got, err := normalizeList[orders.Order]([]byte(payload))
		require.NoError(t, err, payload)
		assert.NotNil(t, got, payload)
		assert.Len(t, got, want, payload)
	}

	_, err := normalizeList[orders.Order]([]byte(`"oops"`))
	assert.Error(t, err)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/api", Actor: shared.Actor{ID: 2, Role: shared.RoleStaff}, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestCreateOrderSendsHeaders(t *testing.T) {
	var gotKey, gotActor, gotRole, gotPath string
	var body orders.CreateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		gotActor = r.Header.Get("X-Actor-ID")
		gotRole = r.Header.Get("X-Actor-Role")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":10,"status":"processing","walk_in":true,"items":[{"id":5,"order_id":10,"product_id":1,"qty_full_out":3,"qty_empty_in":0}]}`))
	})

	pidOne := int64(1)
	o, err := c.CreateOrder(context.Background(), orders.CreateRequest{
		Items: []orders.CreateItemReq{{ProductID: &pidOne, QtyFullOut: 3}},
		Notes: "walk-in",
	}, "fixed-key")
	require.NoError(t, err)

	assert.Equal(t, "/api/orders", gotPath)
	assert.Equal(t, "fixed-key", gotKey)
	assert.Equal(t, "2", gotActor)
	assert.Equal(t, "staff", gotRole)
	assert.Equal(t, "walk-in", body.Notes)
	assert.Equal(t, int64(10), o.ID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(5), o.Items[0].ID)
}

func TestCreateOrderGeneratesKey(t *testing.T) {
	var gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		_, _ = w.Write([]byte(`{"id":1}`))
	})
	_, err := c.CreateOrder(context.Background(), orders.CreateRequest{}, "")
	require.NoError(t, err)
	assert.Len(t, gotKey, 36)
}

func TestFinalizeDeliveryPath(t *testing.T) {
	var gotPath, gotMethod string
	var body orders.FinalizeRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id":7,"status":"delivered"}`))
	})
	o, err := c.FinalizeDelivery(context.Background(), 7, []orders.ItemUpdate{{ID: 3, QtyEmptyIn: 2}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/orders/7/finalize", gotPath)
	assert.Equal(t, []orders.ItemUpdate{{ID: 3, QtyEmptyIn: 2}}, body.Items)
	assert.Equal(t, orders.StatusDelivered, o.Status)
}

func TestServerMessagePassedThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"title":"Conflict","status":409,"detail":"conflict: order is already in a final state"}`))
	})
	_, err := c.Process(context.Background(), 4, orders.ProcessRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "conflict: order is already in a final state", err.Error())
	assert.True(t, errors.Is(err, shared.ErrConflict))
}

func TestServerMessageLegacyShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"qty_empty_in for item 3 cannot be negative"}`))
	})
	_, err := c.UpdateItems(context.Background(), 1, []orders.ItemUpdate{{ID: 3, QtyEmptyIn: -1}})
	require.Error(t, err)
	assert.Equal(t, "qty_empty_in for item 3 cannot be negative", err.Error())
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestListEndpointsNormalize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/products":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Round","price":"20.00"}]`))
		case "/api/orders":
			_, _ = w.Write([]byte(`{"data":[{"id":1,"status":"delivered"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	products, err := c.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "20", products[0].Price.String())

	list, err := c.Orders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = c.Order(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

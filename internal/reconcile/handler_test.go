package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/rbac"
)

type memRepo struct {
	orders map[int64]*orders.Order
	txErr  error
}

func newMemRepo(o *orders.Order) *memRepo {
	return &memRepo{orders: map[int64]*orders.Order{o.ID: o}}
}

func (m *memRepo) Get(_ context.Context, id int64) (*orders.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	c := *o
	c.Items = append([]orders.Item(nil), o.Items...)
	return &c, nil
}

func (m *memRepo) List(context.Context, orders.ListRequest) ([]orders.Order, int, error) {
	return nil, 0, nil
}

func (m *memRepo) History(context.Context, int64) ([]orders.History, error) { return nil, nil }

func (m *memRepo) UserHasRole(context.Context, int64, string) (bool, error) { return true, nil }

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, orders.TxRepository) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return fn(ctx, m)
}

func (m *memRepo) CreateOrder(context.Context, orders.Order) (int64, error) { return 0, errors.New("unused") }

func (m *memRepo) InsertItem(context.Context, orders.Item) (int64, error) { return 0, errors.New("unused") }

func (m *memRepo) UpdateItemReturn(_ context.Context, orderID, itemID int64, qty int) error {
	for i := range m.orders[orderID].Items {
		if m.orders[orderID].Items[i].ID == itemID {
			m.orders[orderID].Items[i].QtyEmptyIn = qty
		}
	}
	return nil
}

func (m *memRepo) UpdateOrder(_ context.Context, id int64, updates map[string]any) error {
	if status, ok := updates["status"].(orders.Status); ok {
		m.orders[id].Status = status
	}
	return nil
}

func (m *memRepo) InsertHistory(context.Context, orders.History) error { return nil }

func (m *memRepo) InsertCancellation(context.Context, int64, string, int64) error { return nil }

func newReturnsServer(repo *memRepo) http.Handler {
	logger := quietLogger()
	mw := rbac.Middleware{Logger: logger}
	r := chi.NewRouter()
	r.Use(mw.Resolve)
	r.Route("/orders/{id}/returns", NewHandler(logger, orders.NewService(repo, nil, logger), mw).MountRoutes)
	return r
}

func postReturns(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(rbac.HeaderActorID, "2")
	req.Header.Set(rbac.HeaderActorRole, "staff")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCheckPreviewsAllocation(t *testing.T) {
	repo := newMemRepo(walkInOrder())
	rec := postReturns(t, newReturnsServer(repo), "/orders/9/returns/check", `{"returns":{"11":6,"13":2}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.NeedsConfirmation)
	assert.Equal(t, 2, got.Outstanding)
	assert.Equal(t, "2 containers outstanding; proceed anyway?", got.Message)
	assert.Equal(t, []orders.ItemUpdate{{ID: 11, QtyEmptyIn: 5}, {ID: 12, QtyEmptyIn: 1}, {ID: 13, QtyEmptyIn: 2}}, got.Allocation)
	assert.Equal(t, orders.StatusProcessing, repo.orders[9].Status)
}

func TestHandlerCommitRequiresConfirmation(t *testing.T) {
	repo := newMemRepo(walkInOrder())
	srv := newReturnsServer(repo)

	rec := postReturns(t, srv, "/orders/9/returns/commit", `{"returns":{"11":3}}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var preview CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.True(t, preview.NeedsConfirmation)
	assert.Equal(t, 7, preview.Outstanding)
	assert.Equal(t, orders.StatusProcessing, repo.orders[9].Status)
	assert.Zero(t, repo.orders[9].Items[0].QtyEmptyIn)

	rec = postReturns(t, srv, "/orders/9/returns/commit", `{"returns":{"11":3},"confirmed":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Order)
	assert.Equal(t, orders.StatusDelivered, res.Order.Status)
	assert.Equal(t, 3, repo.orders[9].Items[0].QtyEmptyIn)
}

func TestHandlerCommitCompleteReturns(t *testing.T) {
	repo := newMemRepo(walkInOrder())
	rec := postReturns(t, newReturnsServer(repo), "/orders/9/returns/commit", `{"returns":{"11":8,"13":2}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Completeness.NeedsConfirmation)
	assert.Equal(t, orders.StatusDelivered, repo.orders[9].Status)
}

func TestHandlerCommitDuplicateKeysStillNeedConfirmation(t *testing.T) {
	repo := newMemRepo(walkInOrder())
	rec := postReturns(t, newReturnsServer(repo), "/orders/9/returns/commit", `{"returns":{"11":4,"12":4,"13":2}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, orders.StatusProcessing, repo.orders[9].Status)
}

func TestHandlerCommitErrorsAreProblems(t *testing.T) {
	delivered := walkInOrder()
	delivered.Status = orders.StatusDelivered
	rec := postReturns(t, newReturnsServer(newMemRepo(delivered)), "/orders/9/returns/commit", `{"returns":{"11":8,"13":2}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	repo := newMemRepo(walkInOrder())
	repo.txErr = errors.New("connection reset")
	rec = postReturns(t, newReturnsServer(repo), "/orders/9/returns/commit", `{"returns":{"11":8,"13":2}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerRejectsBadOrderID(t *testing.T) {
	srv := newReturnsServer(newMemRepo(walkInOrder()))
	for _, path := range []string{"/orders/abc/returns/commit", "/orders/0/returns/check"} {
		rec := postReturns(t, srv, path, `{"returns":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := postReturns(t, srv, "/orders/404/returns/check", `{"returns":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

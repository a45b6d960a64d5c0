package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterops/waterops/internal/shared"
)

type mockRepo struct {
	products  map[int64]Product
	nextID    int64
	listCalls int
	listErr   error
	updates   map[string]any
}

func newMockRepo(products ...Product) *mockRepo {
	m := &mockRepo{products: make(map[int64]Product), nextID: 1}
	for _, p := range products {
		m.products[p.ID] = p
		if p.ID >= m.nextID {
			m.nextID = p.ID + 1
		}
	}
	return m
}

func (m *mockRepo) List(ctx context.Context) ([]Product, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Product, 0, len(m.products))
	for id := int64(1); id < m.nextID; id++ {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) Get(ctx context.Context, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *mockRepo) Create(ctx context.Context, p Product) (int64, error) {
	p.ID = m.nextID
	m.nextID++
	m.products[p.ID] = p
	return p.ID, nil
}

func (m *mockRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	m.updates = updates
	if v, ok := updates["price"]; ok {
		p.Price = v.(decimal.Decimal)
	}
	if v, ok := updates["name"]; ok {
		p.Name = v.(string)
	}
	m.products[id] = p
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCachedService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute), quietLogger())
}

func TestListServesFromCacheUntilBump(t *testing.T) {
	repo := newMockRepo(Product{ID: 1, Name: "Round Gallon", Price: decimal.RequireFromString("25.00"), Active: true})
	svc := newCachedService(t, repo)
	ctx := context.Background()

	first, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, decimal.RequireFromString("25").Equal(first[0].Price))

	_, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls, "second read should hit the cache")

	price := decimal.RequireFromString("30.00")
	_, err = svc.Update(ctx, 1, UpdateRequest{Price: &price})
	require.NoError(t, err)

	after, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	assert.True(t, price.Equal(after[0].Price))
}

func TestListWithoutCacheReadsRepository(t *testing.T) {
	repo := newMockRepo(Product{ID: 1, Name: "Slim"})
	svc := NewService(repo, nil, quietLogger())

	_, err := svc.List(context.Background())
	require.NoError(t, err)
	_, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestListPropagatesRepositoryError(t *testing.T) {
	repo := newMockRepo()
	repo.listErr = errors.New("db down")
	svc := NewService(repo, nil, quietLogger())

	_, err := svc.List(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestIndexLookup(t *testing.T) {
	repo := newMockRepo(
		Product{ID: 1, Name: "Round Gallon"},
		Product{ID: 2, Name: "Slim Container"},
	)
	svc := NewService(repo, nil, quietLogger())

	idx, err := svc.Index(context.Background())
	require.NoError(t, err)
	p, ok := idx.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "Slim Container", p.Name)
	_, ok = idx.Lookup(99)
	assert.False(t, ok)
	assert.Equal(t, "", idx.ProductName(99))
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMockRepo(), nil, quietLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Name: "", SKU: "X", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateRequest{Name: "Gallon", SKU: "G1", Price: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	p, err := svc.Create(ctx, CreateRequest{Name: "Gallon", SKU: "G1", Price: decimal.NewFromInt(20), Stock: 5})
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Equal(t, 5, p.Stock)
}

func TestUpdateRejectsNegativeLiters(t *testing.T) {
	repo := newMockRepo(Product{ID: 1, Name: "Gallon"})
	svc := NewService(repo, nil, quietLogger())
	liters := decimal.NewFromInt(-1)

	_, err := svc.Update(context.Background(), 1, UpdateRequest{Liters: &liters})
	assert.ErrorIs(t, err, ErrInvalidLiters)
	assert.Nil(t, repo.updates)
}

func TestPriced(t *testing.T) {
	var nilProduct *Product
	assert.False(t, nilProduct.Priced())
	assert.False(t, (&Product{ID: 1, Price: decimal.NewFromInt(-1)}).Priced())
	assert.True(t, (&Product{ID: 1, Price: decimal.Zero}).Priced())
}

package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/waterops/waterops/internal/shared"
)

// Service provides catalog reads for the order workflow and admin edits.
type Service struct {
	repo     Repository
	cache    *Cache
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService creates a catalog service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, validate: validator.New()}
}

// List returns all products, served from the cache when available. A cache
// failure degrades to a direct read.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.cache.Products(ctx, s.repo.List)
	if err != nil && s.cache.enabled() {
		s.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return s.repo.List(ctx)
	}
	return products, err
}

// Index returns a lookup snapshot of the catalog.
func (s *Service) Index(ctx context.Context) (Index, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewIndex(products), nil
}

// Get returns a product by id from the primary store.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a product.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if req.Liters.IsNegative() {
		return nil, ErrInvalidLiters
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	id, err := s.repo.Create(ctx, Product{
		Name:   req.Name,
		SKU:    req.SKU,
		Price:  req.Price,
		Stock:  req.Stock,
		Active: active,
		Liters: req.Liters,
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

// Update applies admin edits to a product.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.SKU != nil {
		updates["sku"] = *req.SKU
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, ErrInvalidPrice
		}
		updates["price"] = *req.Price
	}
	if req.Stock != nil {
		updates["stock"] = *req.Stock
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.Liters != nil {
		if req.Liters.IsNegative() {
			return nil, ErrInvalidLiters
		}
		updates["liters"] = *req.Liters
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump", slog.Any("error", err))
	}
}

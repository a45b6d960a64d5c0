package activity

import (
	"context"
	"fmt"

	"github.com/waterops/waterops/internal/shared"
)

const maxPageSize = 200

// Service records entries and serves role-scoped listings.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends an entry.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("activity: repository not configured")
	}
	return s.repo.Record(ctx, e)
}

// List returns the entries visible to actor. Admin and staff see everything,
// drivers see their own entries, customers see nothing.
func (s *Service) List(ctx context.Context, actor shared.Actor, f Filter) ([]Entry, shared.Pagination, error) {
	if f.Limit <= 0 {
		f.Limit = shared.DefaultPerPage
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch actor.Role {
	case shared.RoleAdmin, shared.RoleStaff:
	case shared.RoleDriver:
		id := actor.ID
		f.ActorID = &id
	default:
		return []Entry{}, shared.NewPagination(f.Limit, f.Offset, 0), nil
	}
	entries, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list activity: %w", err)
	}
	return entries, shared.NewPagination(f.Limit, f.Offset, total), nil
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/waterops/waterops/internal/activity"
	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/shared"
)

const idempotencyModule = "orders.create"

// ProductSource provides a catalog snapshot.
type ProductSource interface {
	Index(ctx context.Context) (catalog.Index, error)
}

// ActivityRecorder appends activity log entries.
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry) error
}

// StatusNotifier is told about every committed status change.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, change StatusChange) error
}

// TransitionObserver counts committed transitions.
type TransitionObserver interface {
	ObserveTransition(from, to string)
}

// IdempotencyStore deduplicates create requests.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, module string) error
	Complete(ctx context.Context, key, module string, resourceID int64) error
	Lookup(ctx context.Context, key, module string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Service provides business logic for orders.
type Service struct {
	repo        Repository
	products    ProductSource
	logger      *slog.Logger
	validate    *validator.Validate
	recorder    ActivityRecorder
	notifier    StatusNotifier
	observer    TransitionObserver
	idempotency IdempotencyStore
	now         func() time.Time
}

// NewService creates a new service.
func NewService(repo Repository, products ProductSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		products: products,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// SetRecorder sets the activity recorder.
func (s *Service) SetRecorder(r ActivityRecorder) { s.recorder = r }

// SetNotifier sets the status change notifier.
func (s *Service) SetNotifier(n StatusNotifier) { s.notifier = n }

// SetObserver sets the transition metrics observer.
func (s *Service) SetObserver(o TransitionObserver) { s.observer = o }

// SetIdempotency enables Idempotency-Key handling on Create.
func (s *Service) SetIdempotency(store IdempotencyStore) { s.idempotency = store }

// Get returns an order visible to actor.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, o) {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns orders visible to actor. Customers see their own orders and
// drivers see the orders assigned to them.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListRequest) ([]Order, int, error) {
	if req.Status != nil && !req.Status.IsValid() {
		return nil, 0, ErrInvalidStatus
	}
	switch actor.Role {
	case shared.RoleAdmin, shared.RoleStaff:
	case shared.RoleDriver:
		id := actor.ID
		req.DriverID = &id
	case shared.RoleCustomer:
		id := actor.ID
		req.CustomerID = &id
	default:
		return nil, 0, ErrRoleNotAllowed
	}
	list, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return list, total, nil
}

// Create stores a new order in processing. When key is set, a replayed request
// returns the order created by the first one.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest, key string) (*Order, error) {
	if actor.Role == shared.RoleDriver {
		return nil, ErrRoleNotAllowed
	}
	if err := ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	customerID, walkIn, err := s.resolveCustomer(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if err := s.checkProducts(ctx, req.Items); err != nil {
		return nil, err
	}

	if key != "" && s.idempotency != nil {
		if err := s.idempotency.Reserve(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.replay(ctx, actor, key)
			}
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		}
	}

	var orderID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, Order{
			CustomerID: customerID,
			Status:     StatusProcessing,
			WalkIn:     walkIn,
			Notes:      req.Notes,
			CreatedBy:  actor.ID,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		orderID = id
		for _, it := range req.Items {
			if _, err := tx.InsertItem(ctx, Item{
				OrderID:    id,
				ProductID:  it.ProductID,
				QtyFullOut: it.QtyFullOut,
				QtyEmptyIn: it.QtyEmptyIn,
			}); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
		}
		return tx.InsertHistory(ctx, History{OrderID: id, Status: StatusProcessing, UpdatedBy: actor.ID, Timestamp: s.now()})
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, key); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	if key != "" && s.idempotency != nil {
		if err := s.idempotency.Complete(ctx, key, idempotencyModule, orderID); err != nil {
			s.logger.Warn("complete idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}

	action := activity.ActionCreateOrder
	if walkIn {
		action = activity.ActionCreateWalkInOrder
	}
	s.record(ctx, actor, action, orderID, map[string]any{"items": len(req.Items), "walk_in": walkIn})

	return s.repo.Get(ctx, orderID)
}

func (s *Service) replay(ctx context.Context, actor shared.Actor, key string) (*Order, error) {
	id, err := s.idempotency.Lookup(ctx, key, idempotencyModule)
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if id == 0 {
		return nil, ErrDuplicateRequest
	}
	return s.Get(ctx, actor, id)
}

func (s *Service) resolveCustomer(ctx context.Context, actor shared.Actor, req CreateRequest) (*int64, bool, error) {
	if actor.Role == shared.RoleCustomer {
		id := actor.ID
		return &id, false, nil
	}
	walkIn := IsWalkInNote(req.Notes)
	if req.WalkIn != nil && *req.WalkIn {
		walkIn = true
	}
	if req.CustomerID == nil {
		return nil, walkIn, nil
	}
	ok, err := s.repo.UserHasRole(ctx, *req.CustomerID, shared.RoleCustomer)
	if err != nil {
		return nil, false, fmt.Errorf("check customer: %w", err)
	}
	if !ok {
		return nil, false, ErrCustomerNotFound
	}
	return req.CustomerID, walkIn, nil
}

func (s *Service) checkProducts(ctx context.Context, items []CreateItemReq) error {
	index, err := s.products.Index(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	for i, it := range items {
		p, ok := index.Lookup(*it.ProductID)
		if !ok {
			return fmt.Errorf("item %d: %w", i+1, ErrUnknownProduct)
		}
		if !p.Active {
			return fmt.Errorf("item %d (%s): %w", i+1, p.Name, ErrInactiveProduct)
		}
	}
	return nil
}

// UpdateItems applies container return counts. Re-sending the same payload
// leaves the order unchanged.
func (s *Service) UpdateItems(ctx context.Context, actor shared.Actor, id int64, updates []ItemUpdate) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, ErrTerminal
	}
	if err := authorizeItemUpdate(actor, o); err != nil {
		return nil, err
	}
	if err := ValidateItemUpdates(o, updates); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return applyItemUpdates(ctx, tx, id, updates)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, activity.ActionUpdateOrderItems, id, map[string]any{"items": updates})
	return s.repo.Get(ctx, id)
}

// Process performs a status transition, a driver assignment, or both.
func (s *Service) Process(ctx context.Context, actor shared.Actor, id int64, req ProcessRequest) (*Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if req.Status == nil && req.DriverID == nil {
		return nil, fmt.Errorf("%w: status or driver_id is required", shared.ErrValidation)
	}
	if req.Status != nil && !req.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, ErrTerminal
	}
	if err := authorizeProcess(actor, o, req); err != nil {
		return nil, err
	}

	from := o.Status
	changing := req.Status != nil && *req.Status != from
	if changing && !CanTransition(from, *req.Status, o.WalkIn) {
		return nil, fmt.Errorf("cannot change status from %s to %s: %w", from, *req.Status, ErrInvalidTransition)
	}

	driverID := o.DriverID
	assigning := req.DriverID != nil
	if assigning {
		driverID = nil
		if *req.DriverID > 0 {
			ok, err := s.repo.UserHasRole(ctx, *req.DriverID, shared.RoleDriver)
			if err != nil {
				return nil, fmt.Errorf("check driver: %w", err)
			}
			if !ok {
				return nil, ErrDriverNotFound
			}
			driverID = req.DriverID
		}
	}
	target := from
	if req.Status != nil {
		target = *req.Status
	}
	if target == StatusOut && (driverID == nil || *driverID <= 0) {
		return nil, ErrDriverRequired
	}
	if !changing && !assigning {
		return o, nil
	}

	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		updates := make(map[string]any)
		if assigning {
			updates["driver_id"] = driverID
		}
		if changing {
			return s.transition(ctx, tx, actor, o, target, notes, updates)
		}
		return tx.UpdateOrder(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	if assigning {
		s.record(ctx, actor, activity.ActionAssignDriver, id, map[string]any{"driver_id": driverID})
	}
	if changing {
		s.afterTransition(ctx, actor, o, driverID, target, notes)
	}
	return s.repo.Get(ctx, id)
}

// Finalize applies return updates and delivers the order in a single
// transaction. Either both persist or neither does.
func (s *Service) Finalize(ctx context.Context, actor shared.Actor, id int64, req FinalizeRequest) (*Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, ErrTerminal
	}
	if err := authorizeItemUpdate(actor, o); err != nil {
		return nil, err
	}
	if err := authorizeProcess(actor, o, ProcessRequest{Status: statusPtr(StatusDelivered)}); err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusDelivered, o.WalkIn) {
		return nil, fmt.Errorf("cannot change status from %s to %s: %w", o.Status, StatusDelivered, ErrInvalidTransition)
	}
	if len(req.Items) > 0 {
		if err := ValidateItemUpdates(o, req.Items); err != nil {
			return nil, err
		}
	}

	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := applyItemUpdates(ctx, tx, id, req.Items); err != nil {
			return err
		}
		return s.transition(ctx, tx, actor, o, StatusDelivered, notes, map[string]any{})
	})
	if err != nil {
		return nil, err
	}

	if len(req.Items) > 0 {
		s.record(ctx, actor, activity.ActionUpdateOrderItems, id, map[string]any{"items": req.Items})
	}
	s.afterTransition(ctx, actor, o, o.DriverID, StatusDelivered, notes)
	return s.repo.Get(ctx, id)
}

// History returns the status history of an order.
func (s *Service) History(ctx context.Context, id int64) ([]History, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *Service) transition(ctx context.Context, tx TxRepository, actor shared.Actor, o *Order, to Status, notes string, updates map[string]any) error {
	now := s.now()
	updates["status"] = to
	if notes != "" {
		updates["notes"] = notes
	}
	if to == StatusDelivered {
		updates["delivered_at"] = now
	}
	if err := tx.UpdateOrder(ctx, o.ID, updates); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := tx.InsertHistory(ctx, History{OrderID: o.ID, Status: to, UpdatedBy: actor.ID, Timestamp: now}); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	if to == StatusCancelled {
		if err := tx.InsertCancellation(ctx, o.ID, notes, actor.ID); err != nil {
			return fmt.Errorf("insert cancellation: %w", err)
		}
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, actor shared.Actor, o *Order, driverID *int64, to Status, notes string) {
	s.record(ctx, actor, activity.ActionUpdateOrderStatus, o.ID, map[string]any{
		"from":  string(o.Status),
		"to":    string(to),
		"notes": notes,
	})
	if s.observer != nil {
		s.observer.ObserveTransition(string(o.Status), string(to))
	}
	if s.notifier == nil {
		return
	}
	change := StatusChange{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		DriverID:   driverID,
		From:       o.Status,
		To:         to,
		Notes:      notes,
	}
	if err := s.notifier.NotifyStatusChange(ctx, change); err != nil {
		s.logger.Warn("enqueue status notification",
			slog.Int64("order_id", o.ID), slog.String("to", string(to)), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, orderID int64, meta map[string]any) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Record(ctx, activity.Entry{
		ActorID:   actor.ID,
		Action:    action,
		Entity:    activity.OrderEntity(orderID),
		Meta:      meta,
		Timestamp: s.now(),
	})
	if err != nil {
		s.logger.Warn("record activity", slog.String("action", action), slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

func applyItemUpdates(ctx context.Context, tx TxRepository, orderID int64, updates []ItemUpdate) error {
	for _, u := range updates {
		if err := tx.UpdateItemReturn(ctx, orderID, u.ID, u.QtyEmptyIn); err != nil {
			return fmt.Errorf("update item %d: %w", u.ID, err)
		}
	}
	return nil
}

func statusPtr(s Status) *Status { return &s }

// Summary is an order with its priced grouped lines.
type Summary struct {
	Order     *Order          `json:"order"`
	Lines     []LineSummary   `json:"lines"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// Summarize returns the grouped, priced view of an order used during return
// capture. Prices are read from the current catalog.
func (s *Service) Summarize(ctx context.Context, actor shared.Actor, id int64) (*Summary, error) {
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	index, err := s.products.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return &Summary{Order: o, Lines: Summarize(o, index), TotalCost: OrderCost(o, index)}, nil
}

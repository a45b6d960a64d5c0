package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/returns"
	"github.com/waterops/waterops/internal/shared"
)

type processCall struct {
	orderID int64
	req     orders.ProcessRequest
}

type finalizeCall struct {
	orderID int64
	updates []orders.ItemUpdate
}

type fakeGateway struct {
	creates     []string
	processes   []processCall
	finalizes   []finalizeCall
	createErr   error
	finalizeErr error
	order       *orders.Order
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req orders.CreateRequest, key string) (*orders.Order, error) {
	g.creates = append(g.creates, key)
	if g.createErr != nil {
		return nil, g.createErr
	}
	o := *g.order
	o.WalkIn = req.WalkIn != nil && *req.WalkIn
	return &o, nil
}

func (g *fakeGateway) Process(ctx context.Context, orderID int64, req orders.ProcessRequest) (*orders.Order, error) {
	g.processes = append(g.processes, processCall{orderID: orderID, req: req})
	return &orders.Order{ID: orderID}, nil
}

func (g *fakeGateway) UpdateItems(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error) {
	return &orders.Order{ID: orderID}, nil
}

func (g *fakeGateway) FinalizeDelivery(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error) {
	g.finalizes = append(g.finalizes, finalizeCall{orderID: orderID, updates: updates})
	if g.finalizeErr != nil {
		return nil, g.finalizeErr
	}
	return &orders.Order{ID: orderID, Status: orders.StatusDelivered}, nil
}

func pid(id int64) *int64 { return &id }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func walkInOrder() *orders.Order {
	return &orders.Order{ID: 9, Status: orders.StatusProcessing, WalkIn: true, Items: []orders.Item{
		{ID: 11, ProductID: pid(1), QtyFullOut: 5},
		{ID: 12, ProductID: pid(1), QtyFullOut: 3},
		{ID: 13, ProductID: pid(2), QtyFullOut: 2},
	}}
}

func TestCheckCompleteness(t *testing.T) {
	c := CheckCompleteness(walkInOrder(), returns.Allocation{11: 6, 13: 2})
	assert.Equal(t, 10, c.TotalOrdered)
	assert.Equal(t, 8, c.TotalReturned)
	assert.Equal(t, 2, c.Outstanding)
	assert.True(t, c.NeedsConfirmation)
	assert.Equal(t, "2 containers outstanding; proceed anyway?", c.Message())

	full := CheckCompleteness(walkInOrder(), returns.Allocation{11: 8, 13: 2})
	assert.False(t, full.NeedsConfirmation)
	assert.Zero(t, full.Outstanding)
	assert.Empty(t, full.Message())

	excess := CheckCompleteness(walkInOrder(), returns.Allocation{11: 9, 13: 2})
	assert.Zero(t, excess.Outstanding)
	require.Len(t, excess.Excess, 1)
	assert.True(t, excess.NeedsConfirmation)
	assert.Contains(t, excess.Message(), "1 returned containers exceed")
}

func TestCommitWithoutConfirmationSendsNothing(t *testing.T) {
	gw := &fakeGateway{}
	r := NewReconciler(gw, quietLogger())

	res, err := r.Commit(context.Background(), walkInOrder(), returns.Allocation{11: 3}, Unconfirmed)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 7, res.Completeness.Outstanding)
	assert.Nil(t, res.Order)
	assert.Empty(t, gw.finalizes)
	assert.Empty(t, gw.processes)

	_, err = r.FinalizeWalkInDelivery(context.Background(), walkInOrder(), nil, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, gw.finalizes)
}

func TestCommitConfirmedPartial(t *testing.T) {
	gw := &fakeGateway{}
	r := NewReconciler(gw, quietLogger())

	res, err := r.Commit(context.Background(), walkInOrder(), returns.Allocation{12: 6}, Confirmed)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, res.Order.Status)
	require.Len(t, gw.finalizes, 1)
	assert.Equal(t, int64(9), gw.finalizes[0].orderID)
	assert.Equal(t, []orders.ItemUpdate{{ID: 11, QtyEmptyIn: 5}, {ID: 12, QtyEmptyIn: 1}, {ID: 13, QtyEmptyIn: 0}}, gw.finalizes[0].updates)
}

func TestCheckCompletenessCountsWhatIsAllocated(t *testing.T) {
	order := &orders.Order{ID: 3, Items: []orders.Item{
		{ID: 10, ProductID: pid(1), QtyFullOut: 5},
		{ID: 11, ProductID: pid(1), QtyFullOut: 3},
	}}

	dup := CheckCompleteness(order, returns.Allocation{10: 4, 11: 4})
	assert.Equal(t, 4, dup.TotalReturned)
	assert.Equal(t, 4, dup.Outstanding)
	assert.True(t, dup.NeedsConfirmation)

	single := &orders.Order{ID: 4, Items: []orders.Item{{ID: 10, ProductID: pid(1), QtyFullOut: 10}}}
	unknown := CheckCompleteness(single, returns.Allocation{999: 10})
	assert.Zero(t, unknown.TotalReturned)
	assert.Equal(t, 10, unknown.Outstanding)
	assert.True(t, unknown.NeedsConfirmation)
}

func TestCommitRefusesMisleadingReturns(t *testing.T) {
	gw := &fakeGateway{}
	r := NewReconciler(gw, quietLogger())
	order := &orders.Order{ID: 3, Items: []orders.Item{
		{ID: 10, ProductID: pid(1), QtyFullOut: 5},
		{ID: 11, ProductID: pid(1), QtyFullOut: 3},
	}}

	_, err := r.Commit(context.Background(), order, returns.Allocation{10: 4, 11: 4}, Unconfirmed)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	_, err = r.Commit(context.Background(), order, returns.Allocation{999: 8}, Unconfirmed)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, gw.finalizes)
}

func TestCommitResetsEarlierReturns(t *testing.T) {
	gw := &fakeGateway{}
	order := walkInOrder()
	order.Items[2].QtyEmptyIn = 2

	res, err := NewReconciler(gw, quietLogger()).Commit(context.Background(), order, returns.Allocation{11: 8}, Unconfirmed)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, 2, res.Completeness.Outstanding)

	_, err = NewReconciler(gw, quietLogger()).Commit(context.Background(), order, returns.Allocation{11: 8}, Confirmed)
	require.NoError(t, err)
	require.Len(t, gw.finalizes, 1)
	assert.Contains(t, gw.finalizes[0].updates, orders.ItemUpdate{ID: 13, QtyEmptyIn: 0})
}

func TestCommitCompleteNeedsNoConfirmation(t *testing.T) {
	gw := &fakeGateway{}
	res, err := NewReconciler(gw, quietLogger()).FinalizeWalkInDelivery(context.Background(), walkInOrder(), returns.Allocation{11: 8, 13: 2}, false)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, res.Order.Status)
	assert.Len(t, gw.finalizes, 1)
}

func TestCommitFailureIsPersistenceError(t *testing.T) {
	gw := &fakeGateway{finalizeErr: errors.New("Order is already in a final state.")}
	_, err := NewReconciler(gw, quietLogger()).Commit(context.Background(), walkInOrder(), returns.Allocation{11: 8, 13: 2}, Unconfirmed)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "finalize delivery", pe.Op)
	assert.Equal(t, "Order is already in a final state.", pe.Message())
}

func TestDispatcherHoldsOutUntilDriver(t *testing.T) {
	gw := &fakeGateway{}
	d := NewDispatcher(gw)
	ctx := context.Background()
	o := &orders.Order{ID: 4, Status: orders.StatusProcessing}

	got, err := d.SetStatus(ctx, o, orders.StatusOut)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, gw.processes)
	status, held := d.Pending(4)
	assert.True(t, held)
	assert.Equal(t, orders.StatusOut, status)

	_, err = d.SetDriver(ctx, 4, 77)
	require.NoError(t, err)
	require.Len(t, gw.processes, 1)
	call := gw.processes[0]
	assert.Equal(t, int64(4), call.orderID)
	require.NotNil(t, call.req.Status)
	assert.Equal(t, orders.StatusOut, *call.req.Status)
	require.NotNil(t, call.req.DriverID)
	assert.Equal(t, int64(77), *call.req.DriverID)

	_, held = d.Pending(4)
	assert.False(t, held)
}

func TestDispatcherSendsOtherStatusesImmediately(t *testing.T) {
	gw := &fakeGateway{}
	d := NewDispatcher(gw)
	ctx := context.Background()

	_, err := d.SetStatus(ctx, &orders.Order{ID: 5}, orders.StatusCancelled)
	require.NoError(t, err)
	_, err = d.SetStatus(ctx, &orders.Order{ID: 6, DriverID: pid(3)}, orders.StatusOut)
	require.NoError(t, err)
	assert.Len(t, gw.processes, 2)

	_, err = d.SetDriver(ctx, 5, 3)
	require.NoError(t, err)
	require.Len(t, gw.processes, 3)
	assert.Nil(t, gw.processes[2].req.Status)
}

func TestDispatcherRejectsMissingOrder(t *testing.T) {
	gw := &fakeGateway{}
	_, err := NewDispatcher(gw).SetStatus(context.Background(), nil, orders.StatusOut)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, gw.processes)
}

func TestDispatcherDiscard(t *testing.T) {
	gw := &fakeGateway{}
	d := NewDispatcher(gw)
	_, _ = d.SetStatus(context.Background(), &orders.Order{ID: 4}, orders.StatusOut)
	d.Discard(4)
	_, held := d.Pending(4)
	assert.False(t, held)
	assert.Empty(t, gw.processes)
}

func TestWalkInRetainsOrderAcrossFailures(t *testing.T) {
	gw := &fakeGateway{order: walkInOrder(), finalizeErr: errors.New("network down")}
	w := NewWalkIn(gw, NewReconciler(gw, quietLogger()))
	ctx := context.Background()

	_, err := w.Check(nil)
	require.Error(t, err)

	created, err := w.Create(ctx, orders.CreateRequest{Items: []orders.CreateItemReq{{ProductID: pid(1), QtyFullOut: 8}}})
	require.NoError(t, err)
	assert.True(t, created.WalkIn)

	again, err := w.Create(ctx, orders.CreateRequest{})
	require.NoError(t, err)
	assert.Same(t, created, again)
	assert.Len(t, gw.creates, 1)

	_, err = w.Finalize(ctx, returns.Allocation{11: 8, 13: 2}, Unconfirmed)
	require.Error(t, err)
	assert.Same(t, created, w.Order())

	gw.finalizeErr = nil
	res, err := w.Finalize(ctx, returns.Allocation{11: 8, 13: 2}, Unconfirmed)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, res.Order.Status)
	assert.Equal(t, orders.StatusDelivered, w.Order().Status)
	assert.Len(t, gw.finalizes, 2)
}

func TestWalkInCreateReusesKeyOnRetry(t *testing.T) {
	gw := &fakeGateway{order: walkInOrder(), createErr: errors.New("timeout")}
	w := NewWalkIn(gw, NewReconciler(gw, quietLogger()))
	req := orders.CreateRequest{Items: []orders.CreateItemReq{{ProductID: pid(1), QtyFullOut: 1}}}

	_, err := w.Create(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, w.Order())

	gw.createErr = nil
	_, err = w.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, gw.creates, 2)
	assert.Equal(t, gw.creates[0], gw.creates[1])
	assert.NotEmpty(t, gw.creates[0])

	_, err = NewWalkIn(gw, nil).Create(context.Background(), orders.CreateRequest{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

type outcomeRecorder struct{ outcomes []string }

func (o *outcomeRecorder) ObserveReconciliation(outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}

func TestCommitReportsOutcome(t *testing.T) {
	gw := &fakeGateway{}
	rec := &outcomeRecorder{}
	r := NewReconciler(gw, quietLogger())
	r.SetObserver(rec)

	_, _ = r.Commit(context.Background(), walkInOrder(), returns.Allocation{11: 3}, Unconfirmed)
	_, _ = r.Commit(context.Background(), walkInOrder(), returns.Allocation{11: 3}, Confirmed)
	_, _ = r.Commit(context.Background(), walkInOrder(), returns.Allocation{11: 8, 13: 2}, Unconfirmed)
	gw.finalizeErr = errors.New("boom")
	_, _ = r.Commit(context.Background(), walkInOrder(), returns.Allocation{11: 8, 13: 2}, Unconfirmed)

	assert.Equal(t, []string{OutcomePendingConfirmation, OutcomeConfirmed, OutcomeComplete, OutcomeFailed}, rec.outcomes)
}

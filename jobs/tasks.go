package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/waterops/waterops/internal/orders"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries customer facing notifications.
	QueueNotifications = "notifications"
	// TaskOrderStatusNotify writes the customer notification for a status change.
	TaskOrderStatusNotify = "order:status_notify"
	// TaskOutstandingScan reports containers still held by customers.
	TaskOutstandingScan = "inventory:outstanding_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StatusNotifyPayload is the queued form of a committed status change.
type StatusNotifyPayload struct {
	Change     orders.StatusChange `json:"change"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
}

// NewStatusNotifyTask constructs the notification task for change.
func NewStatusNotifyTask(change orders.StatusChange, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StatusNotifyPayload{Change: change, EnqueuedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStatusNotify, body, asynq.Queue(QueueNotifications), asynq.MaxRetry(5)), nil
}

// OutstandingScanPayload carries scheduling metadata.
type OutstandingScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOutstandingScanTask constructs the outstanding containers scan task.
func NewOutstandingScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OutstandingScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutstandingScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// StatusMessage renders the customer facing text for a status change.
// driverName may be empty.
func StatusMessage(change orders.StatusChange, driverName string) string {
	switch change.To {
	case orders.StatusOut:
		if driverName != "" {
			return fmt.Sprintf("Your order #%d is now Out for Delivery by %s.", change.OrderID, driverName)
		}
		return fmt.Sprintf("Your order #%d is now Out for Delivery.", change.OrderID)
	case orders.StatusDelivered:
		return fmt.Sprintf("Your order #%d has been Delivered. Thank you for choosing our service!", change.OrderID)
	case orders.StatusCancelled:
		if change.Notes != "" {
			return fmt.Sprintf("Your order #%d has been Cancelled. Reason: %s", change.OrderID, change.Notes)
		}
		return fmt.Sprintf("Your order #%d has been Cancelled.", change.OrderID)
	default:
		return fmt.Sprintf("Your order #%d status has been updated to %s.", change.OrderID, orders.StatusLabel(change.To))
	}
}

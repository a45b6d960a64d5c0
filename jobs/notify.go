package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/waterops/waterops/internal/jobs"
	"github.com/waterops/waterops/internal/orders"
)

// Notification is an in-app message addressed to a user.
type Notification struct {
	UserID  int64
	Message string
	SentAt  time.Time
}

// NotificationStore persists notifications and resolves driver names.
type NotificationStore interface {
	Insert(ctx context.Context, n Notification) error
	DriverName(ctx context.Context, driverID int64) (string, error)
}

// StatusNotifyJob turns queued status changes into customer notifications.
type StatusNotifyJob struct {
	Store   NotificationStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStatusNotifyJob constructs the notification handler.
func NewStatusNotifyJob(store NotificationStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusNotifyJob {
	return &StatusNotifyJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle writes the notification for one status change.
func (j *StatusNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("status notify: handler not configured")
	}
	var payload StatusNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	change := payload.Change
	if change.OrderID <= 0 || !change.To.IsValid() {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskOrderStatusNotify)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("order_id", change.OrderID),
		slog.String("status", string(change.To)),
	)
	if change.CustomerID == nil {
		logger.Debug("no customer to notify")
		return nil
	}

	driverName := ""
	if change.To == orders.StatusOut && change.DriverID != nil {
		name, err := j.Store.DriverName(ctx, *change.DriverID)
		if err != nil {
			logger.Warn("driver lookup failed", slog.Any("error", err))
		} else {
			driverName = name
		}
	}

	n := Notification{
		UserID:  *change.CustomerID,
		Message: StatusMessage(change, driverName),
		SentAt:  j.now(),
	}
	if err := j.Store.Insert(ctx, n); err != nil {
		resultErr = fmt.Errorf("status notify: %w", err)
		logger.Error("insert notification", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddNotification(string(change.To))
	logger.Info("customer notified", slog.Int64("customer_id", n.UserID))
	return resultErr
}

func (j *StatusNotifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOrderStatusNotify))
	}
	return slog.Default().With(slog.String("job", TaskOrderStatusNotify))
}

func (j *StatusNotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatusNotifyJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// PGNotificationStore implements NotificationStore on Postgres.
type PGNotificationStore struct {
	pool *pgxpool.Pool
}

// NewPGNotificationStore constructs the store.
func NewPGNotificationStore(pool *pgxpool.Pool) *PGNotificationStore {
	return &PGNotificationStore{pool: pool}
}

// Insert writes an unread in-app notification.
func (s *PGNotificationStore) Insert(ctx context.Context, n Notification) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO notifications (user_id, type, message, sent_at, is_read) VALUES ($1, 'inapp', $2, $3, FALSE)`,
		n.UserID, n.Message, n.SentAt)
	return err
}

// DriverName returns the display name of a driver, or "" when unknown.
func (s *PGNotificationStore) DriverName(ctx context.Context, driverID int64) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, driverID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/waterops/waterops/internal/inventory"
	jobmetrics "github.com/waterops/waterops/internal/jobs"
)

// OutstandingReporter computes per-product rows with containers still out.
type OutstandingReporter interface {
	Outstanding(ctx context.Context) ([]inventory.Row, error)
}

// OutstandingScanJob logs and exports the containers customers still hold.
type OutstandingScanJob struct {
	Report  OutstandingReporter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOutstandingScanJob initialises the scan handler.
func NewOutstandingScanJob(report OutstandingReporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutstandingScanJob {
	return &OutstandingScanJob{
		Report:  report,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle runs one scan.
func (j *OutstandingScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Report == nil {
		return errors.New("outstanding scan: handler not configured")
	}
	var payload OutstandingScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	start := j.now()
	tracker := j.metrics().Track(TaskOutstandingScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting outstanding scan")

	rows, err := j.Report.Outstanding(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().ResetOutstanding()
	total := 0
	for _, row := range rows {
		logger.Warn("containers outstanding",
			slog.Int64("product_id", row.ProductID),
			slog.String("product", row.Name),
			slog.Int("delivered", row.Delivered),
			slog.Int("returned", row.Returned),
			slog.Int("to_be_returned", row.ToBeReturned),
		)
		j.metrics().SetOutstanding(row.ProductID, row.ToBeReturned)
		total += row.ToBeReturned
	}

	logger.Info("completed outstanding scan",
		slog.Int("products", len(rows)),
		slog.Int("containers", total),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OutstandingScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOutstandingScan))
	}
	return slog.Default().With(slog.String("job", TaskOutstandingScan))
}

func (j *OutstandingScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OutstandingScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

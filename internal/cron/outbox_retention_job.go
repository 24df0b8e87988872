package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultRetentionBatch  = 500
)

type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Outbox       publishedDeleter
	DLQ          dlqDeleter
	Retention    time.Duration
	DLQRetention time.Duration
	BatchSize    int
}

type publishedDeleter interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type dlqDeleter interface {
	DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	dlqRetention := params.DLQRetention
	if dlqRetention <= 0 {
		dlqRetention = defaultDLQRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetentionBatch
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		outbox:       params.Outbox,
		dlq:          params.DLQ,
		retention:    retention,
		dlqRetention: dlqRetention,
		batch:        batch,
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	outbox       publishedDeleter
	dlq          dlqDeleter
	retention    time.Duration
	dlqRetention time.Duration
	batch        int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes in batches so a large backlog never holds one long transaction.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-j.retention)
	dlqCutoff := now.Add(-j.dlqRetention)

	var errs error
	published, err := j.drain(ctx, func(ctx context.Context) (int64, error) {
		return j.outbox.DeletePublishedBefore(ctx, outboxCutoff, j.batch)
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("outbox retention: %w", err))
	}
	dead, err := j.drain(ctx, func(ctx context.Context) (int64, error) {
		return j.dlq.DeleteBefore(ctx, dlqCutoff, j.batch)
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("dlq retention: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff": outboxCutoff,
		"dlq_cutoff":    dlqCutoff,
		"outbox_rows":   published,
		"dlq_rows":      dead,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return errs
}

func (j *outboxRetentionJob) drain(ctx context.Context, deleteBatch func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := deleteBatch(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(j.batch) {
			return total, nil
		}
	}
}

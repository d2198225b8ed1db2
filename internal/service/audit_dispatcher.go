package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	"github.com/noah-isme/sma-attendance-lock/pkg/jobs"
)

// AuditDispatcher persists audit entries off the request path. Writes that
// fail are retried by the underlying queue.
type AuditDispatcher struct {
	queue *jobs.Queue[models.AuditLog]
}

// AuditDispatcherConfig tunes the worker pool behind the dispatcher.
type AuditDispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NewAuditDispatcher wires an audit sink to a background queue. Start must be
// called before entries are accepted.
func NewAuditDispatcher(sink auditLogger, cfg AuditDispatcherConfig, logger *zap.Logger) *AuditDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	handler := func(ctx context.Context, job jobs.Job[models.AuditLog]) error {
		entry := job.Payload
		return sink.CreateAuditLog(ctx, &entry)
	}
	return &AuditDispatcher{
		queue: jobs.NewQueue[models.AuditLog]("audit", handler, jobs.QueueConfig{
			Workers:    cfg.Workers,
			BufferSize: cfg.BufferSize,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		}),
	}
}

// Start launches the workers.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop flushes queued entries, giving up when ctx expires.
func (d *AuditDispatcher) Stop(ctx context.Context) {
	d.queue.Stop(ctx)
}

// CreateAuditLog stamps the entry and queues it for persistence.
func (d *AuditDispatcher) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return d.queue.Enqueue(ctx, jobs.Job[models.AuditLog]{ID: log.ID, Payload: *log})
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
	"github.com/user/knowledge-service/pkg/metrics"
)

const defaultPollInterval = time.Second

// IngestWorker serializes queued ingest requests: one job at a time.
type IngestWorker struct {
	queue    repository.QueueRepository
	ingester Ingester
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewIngestWorker(queue repository.QueueRepository, ingester Ingester, interval time.Duration, m *metrics.Metrics, log *zap.Logger) *IngestWorker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &IngestWorker{
		queue:    queue,
		ingester: ingester,
		interval: interval,
		metrics:  m,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

// Enqueue validates a request and pushes it onto the queue.
func (w *IngestWorker) Enqueue(ctx context.Context, rawURL string, opts IngestOptions) (*entity.IngestRequest, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsHTTPURL(rawURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	req := &entity.IngestRequest{
		ID:         uuid.NewString(),
		URL:        rawURL,
		Collection: strings.TrimSpace(opts.Collection),
		Force:      opts.Force,
		EnqueuedAt: w.now().UTC(),
	}
	if err := w.queue.Push(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", rawURL, err)
	}
	w.reportDepth(ctx)
	w.logger.Info("Ingest request queued", zap.String("request_id", req.ID), zap.String("url", rawURL))
	return req, nil
}

// ProcessNext pops one request and ingests it. It reports false when the
// queue was empty. Ingest failures are recorded on the job, not returned.
func (w *IngestWorker) ProcessNext(ctx context.Context) (bool, error) {
	req, err := w.queue.Pop(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrQueueEmpty) {
			return false, nil
		}
		return false, fmt.Errorf("failed to pop ingest request: %w", err)
	}
	defer w.reportDepth(ctx)

	w.logger.Info("Processing ingest request from queue",
		zap.String("request_id", req.ID),
		zap.String("url", req.URL),
		zap.Duration("queued_for", w.now().Sub(req.EnqueuedAt)),
	)
	res, err := w.ingester.Ingest(ctx, req.URL, IngestOptions{Collection: req.Collection, Force: req.Force})
	if err != nil {
		fields := []zap.Field{zap.String("request_id", req.ID), zap.String("url", req.URL), zap.Error(err)}
		if res != nil {
			fields = append(fields, zap.Int64("job_id", res.JobID))
		}
		w.logger.Warn("Queued ingest failed", fields...)
		return true, nil
	}
	w.logger.Info("Queued ingest finished",
		zap.String("request_id", req.ID),
		zap.Int64("job_id", res.JobID),
		zap.Int64("source_id", res.SourceID),
	)
	return true, nil
}

// Run drains the queue until ctx is cancelled, polling when it is empty.
func (w *IngestWorker) Run(ctx context.Context) error {
	w.logger.Info("Ingest worker started", zap.Duration("poll_interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("Ingest worker iteration failed", zap.Error(err))
		}
		if processed && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
			w.logger.Info("Ingest worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *IngestWorker) reportDepth(ctx context.Context) {
	n, err := w.queue.Size(context.WithoutCancel(ctx))
	if err != nil {
		w.logger.Warn("Failed to read queue depth", zap.Error(err))
		return
	}
	w.metrics.SetQueueDepth(n)
}

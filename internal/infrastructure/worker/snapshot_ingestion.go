package worker

import (
	"context"
	"sync"
	"time"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// MetricsRecorder abstracts prometheus metrics for the ingestion worker.
type MetricsRecorder interface {
	RecordSnapshotIngested(path string)
	SetBufferSize(size int)
}

// SnapshotIngestionWorkerConfig holds configuration for the ingestion worker.
type SnapshotIngestionWorkerConfig struct {
	// BufferSize is the size of the snapshot channel buffer.
	BufferSize int

	// BatchSize is the number of snapshots to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time to wait before flushing a partial batch.
	FlushInterval time.Duration

	// WorkerCount is the number of concurrent workers writing batches.
	WorkerCount int

	// DrainTimeout bounds the final flush after the context is cancelled.
	DrainTimeout time.Duration
}

// DefaultSnapshotIngestionConfig returns sensible defaults for the worker.
func DefaultSnapshotIngestionConfig() SnapshotIngestionWorkerConfig {
	return SnapshotIngestionWorkerConfig{
		BufferSize:    5000,
		BatchSize:     100,
		FlushInterval: 500 * time.Millisecond,
		WorkerCount:   2,
		DrainTimeout:  5 * time.Second,
	}
}

// SnapshotIngestionWorker persists influence snapshots from a buffered channel.
// snapshots are written in batches to reduce database roundtrips.
type SnapshotIngestionWorker struct {
	snapshotChan chan *domain.InfluenceSnapshot
	repo         domain.InfluenceSnapshotRepository
	config       SnapshotIngestionWorkerConfig
	logger       *logging.Logger
	metrics      MetricsRecorder

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewSnapshotIngestionWorker creates a new snapshot ingestion worker.
func NewSnapshotIngestionWorker(
	repo domain.InfluenceSnapshotRepository,
	config SnapshotIngestionWorkerConfig,
	logger *logging.Logger,
) *SnapshotIngestionWorker {
	return &SnapshotIngestionWorker{
		snapshotChan: make(chan *domain.InfluenceSnapshot, config.BufferSize),
		repo:         repo,
		config:       config,
		logger:       logger.WithComponent("snapshot_ingestion_worker"),
		stopped:      make(chan struct{}),
	}
}

// WithMetrics sets the metrics recorder for observability.
func (w *SnapshotIngestionWorker) WithMetrics(m MetricsRecorder) *SnapshotIngestionWorker {
	w.metrics = m
	return w
}

// SnapshotChannel returns the channel the ingestion use case pushes into.
func (w *SnapshotIngestionWorker) SnapshotChannel() chan<- *domain.InfluenceSnapshot {
	return w.snapshotChan
}

// Start begins the worker goroutines.
// call this before accepting snapshots.
func (w *SnapshotIngestionWorker) Start(ctx context.Context) {
	w.logger.Info("snapshot ingestion worker starting",
		"buffer_size", w.config.BufferSize,
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval.String(),
		"worker_count", w.config.WorkerCount,
	)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Stop gracefully shuts down the worker, draining remaining snapshots.
// the producer side must be stopped first: sending after Stop panics.
func (w *SnapshotIngestionWorker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("snapshot ingestion worker stopping, draining buffer...")

		close(w.snapshotChan)
		w.wg.Wait()

		close(w.stopped)
		w.logger.Info("snapshot ingestion worker stopped")
	})
}

// Stopped returns a channel that closes when the worker has fully stopped.
func (w *SnapshotIngestionWorker) Stopped() <-chan struct{} {
	return w.stopped
}

// QueueSize returns the current number of snapshots waiting in the buffer.
func (w *SnapshotIngestionWorker) QueueSize() int {
	return len(w.snapshotChan)
}

func (w *SnapshotIngestionWorker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	batch := make([]*domain.InfluenceSnapshot, 0, w.config.BatchSize)
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		w.flushBatch(ctx, batch, workerID)
		batch = batch[:0]
	}

	for {
		select {
		case snapshot, ok := <-w.snapshotChan:
			if !ok {
				flush(ctx)
				w.logger.Debug("worker exiting after drain", "worker_id", workerID)
				return
			}

			batch = append(batch, snapshot)
			if len(batch) >= w.config.BatchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)

		case <-ctx.Done():
			// the parent context is gone, give the last batch its own deadline
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.DrainTimeout)
			flush(drainCtx)
			cancel()
			w.logger.Debug("worker exiting on context cancel", "worker_id", workerID)
			return
		}
	}
}

func (w *SnapshotIngestionWorker) flushBatch(ctx context.Context, batch []*domain.InfluenceSnapshot, workerID int) {
	start := time.Now()
	err := w.repo.SaveBatch(ctx, batch)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error("batch save failed",
			"worker_id", workerID,
			"batch_size", len(batch),
			"error", err.Error(),
			"duration_ms", duration.Milliseconds(),
		)
		return
	}

	if w.metrics != nil {
		for range batch {
			w.metrics.RecordSnapshotIngested("async")
		}
		w.metrics.SetBufferSize(len(w.snapshotChan))
	}

	w.logger.Debug("batch flushed",
		"worker_id", workerID,
		"batch_size", len(batch),
		"duration_ms", duration.Milliseconds(),
	)
}

// IngestionStats describes the worker's buffer.
type IngestionStats struct {
	QueueSize   int
	BufferSize  int
	WorkerCount int
}

// Stats returns current worker statistics.
func (w *SnapshotIngestionWorker) Stats() IngestionStats {
	return IngestionStats{
		QueueSize:   len(w.snapshotChan),
		BufferSize:  w.config.BufferSize,
		WorkerCount: w.config.WorkerCount,
	}
}

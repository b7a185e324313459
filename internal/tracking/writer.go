package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/models"
	"github.com/aman-churiwal/api-tracker/internal/repository"
	"go.uber.org/zap"
)

// ErrBufferFull is returned by Enqueue when the writer cannot keep up.
// Callers drop the entry rather than block the request.
var ErrBufferFull = errors.New("tracking: log buffer full")

// Writer batches tracked records into the database from a buffered
// channel so request handling never waits on an insert.
type Writer struct {
	repo      *repository.RequestLogRepository
	logger    *zap.Logger
	entries   chan *models.APIRequestLog
	batchSize int
	interval  time.Duration
	done      chan struct{}
	stopped   chan struct{}
}

func NewWriter(repo *repository.RequestLogRepository, logger *zap.Logger, bufferSize, batchSize int, interval time.Duration) *Writer {
	w := &Writer{
		repo:      repo,
		logger:    logger,
		entries:   make(chan *models.APIRequestLog, bufferSize),
		batchSize: batchSize,
		interval:  interval,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	go w.run()

	return w
}

// Enqueue implements HandleLogFunc.
func (w *Writer) Enqueue(_ context.Context, entry *models.APIRequestLog) error {
	select {
	case w.entries <- entry:
		return nil
	default:
		return ErrBufferFull
	}
}

func (w *Writer) run() {
	defer close(w.stopped)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	batch := make([]*models.APIRequestLog, 0, w.batchSize)

	for {
		select {
		case entry := <-w.entries:
			batch = append(batch, entry)
			if len(batch) >= w.batchSize {
				batch = w.insert(batch)
			}
		case <-ticker.C:
			batch = w.insert(batch)
		case <-w.done:
			// Drain whatever is queued, then flush
			for {
				select {
				case entry := <-w.entries:
					batch = append(batch, entry)
				default:
					w.insert(batch)
					return
				}
			}
		}
	}
}

func (w *Writer) insert(batch []*models.APIRequestLog) []*models.APIRequestLog {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.repo.CreateBatch(ctx, batch); err != nil {
		w.logger.Error("failed to insert request logs",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
	}

	return batch[:0]
}

// Close flushes pending entries and stops the background worker.
func (w *Writer) Close(ctx context.Context) error {
	close(w.done)

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

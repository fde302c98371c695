// Package dispatcher runs accepted jobs on a bounded pool of background workers.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/metrics"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/queue/memory"
)

// Dispatcher fans out queued jobs to a fixed set of processors. Submit never
// waits for a job to run; it fails fast with convert.ErrQueueFull instead.
type Dispatcher struct {
	queue   *memory.Queue
	workers []convert.Processor
	logger  *zap.Logger
}

// New creates a Dispatcher with one goroutine per processor.
func New(queue *memory.Queue, workers []convert.Processor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until ctx ends. It then closes the queue
// and waits for the workers to finish every job already accepted.
func (d *Dispatcher) Run(ctx context.Context) {
	// Jobs outlive the request and the shutdown signal.
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, w := range d.workers {
		wg.Add(1)
		go func(index int, p convert.Processor) {
			defer wg.Done()
			d.runWorker(jobCtx, index, p)
		}(i, w)
	}
	<-ctx.Done()
	d.logger.Info("dispatcher draining", zap.Int("pending", d.queue.Len()))
	d.queue.Close()
	wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) runWorker(ctx context.Context, index int, p convert.Processor) {
	for {
		job, err := d.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, memory.ErrClosed) {
				d.logger.Error("queue dequeue failed", zap.Int("worker", index), zap.Error(err))
			}
			return
		}
		metrics.SetQueueDepth(d.queue.Len())
		d.logger.Debug("dequeued job", zap.Int("worker", index), zap.String("uuid", job.UUID))
		p.Process(ctx, job)
	}
}

// Submit implements convert.Submitter.
func (d *Dispatcher) Submit(_ context.Context, job convert.Job) error {
	if !d.queue.TryEnqueue(job) {
		return convert.ErrQueueFull
	}
	metrics.SetQueueDepth(d.queue.Len())
	return nil
}

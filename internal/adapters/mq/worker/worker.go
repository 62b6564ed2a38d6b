package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/similarity"
	"github.com/okian/brandmatch/pkg/logger"
	"github.com/okian/brandmatch/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job is what workers read off the queue.
type Job = model.IngestJob

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes ingest jobs.
type Worker interface {
	// Run processes jobs until ctx is canceled or the queue is drained.
	Run(ctx context.Context)
}

// InMemoryWorker embeds each partition text of a job and upserts it.
type InMemoryWorker struct {
	queue    Queue
	embedder embedding.Provider
	writer   similarity.Writer
	name     string
	onResult func(ctx context.Context, j Job, err error)

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, embedder embedding.Provider, writer similarity.Writer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		embedder: embedder,
		writer:   writer,
		name:     "worker",
		onResult: func(context.Context, Job, error) {},
		done:     make(chan struct{}),
		logger:   logger.NamedOrNop("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			err := w.process(ctx, j)
			if err != nil {
				w.logger.Error(ctx, "ingest job failed",
					logger.String("job_id", j.JobID),
					logger.String("influencer", j.Profile.ID),
					logger.Error(err))
			}
			w.onResult(ctx, j, err)
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process indexes every non-empty partition text of the job. Partitions are
// handled in name order; one failing partition does not stop the others.
func (w *InMemoryWorker) process(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordIngestLatency(float64(time.Since(start).Milliseconds()))
	}()

	parts := make([]attribute.Partition, 0, len(j.Profile.Texts))
	for p := range j.Profile.Texts {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(a, b int) bool { return parts[a] < parts[b] })

	var errs []error
	indexed := 0
	present := make(map[attribute.Partition]bool, len(parts))
	for _, p := range parts {
		text := attribute.Normalize(j.Profile.Texts[p])
		if text == "" {
			continue
		}
		present[p] = true
		vec, err := w.embedder.Embed(ctx, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: embed: %w", p, err))
			continue
		}
		if err := w.writer.Upsert(ctx, p, j.Profile.ID, text, vec); err != nil {
			errs = append(errs, fmt.Errorf("%s: upsert: %w", p, err))
			continue
		}
		indexed++
	}
	// A resubmitted profile replaces the previous one, so partitions it no
	// longer carries are cleared.
	for _, p := range attribute.Partitions() {
		if present[p] {
			continue
		}
		if err := w.writer.Delete(ctx, p, j.Profile.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: delete: %w", p, err))
		}
	}

	if len(errs) > 0 {
		metrics.RecordIngestJob("failed")
		return errors.Join(errs...)
	}
	metrics.RecordIngestJob("processed")
	w.logger.Debug(ctx, "influencer indexed",
		logger.String("influencer", j.Profile.ID),
		logger.Int("partitions", indexed))
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu     sync.Mutex
	cancel context.CancelFunc

	logger logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 uses runtime.NumCPU().
// opts are applied to every worker.
func NewPool(workerCount int, q Queue, embedder embedding.Provider, writer similarity.Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.NamedOrNop("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, embedder, writer, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool. Workers stop when ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue, lets workers drain what is left and waits for
// them. Once ctx (capped at 30s) expires the workers are canceled and an
// error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	defer cancel()

	shutdownCtx, stop := context.WithTimeout(ctx, poolShutdownTimeout)
	defer stop()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}
	return nil
}

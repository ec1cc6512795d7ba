package worker

import (
	"context"
	"sync"

	"dosage-management/pkg/errors"

	"github.com/rs/zerolog"
)

type WorkerPool struct {
	workerCount int
	jobChan     chan func(context.Context) error
	stopping    chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
	stopped     bool
	wg          sync.WaitGroup
	log         zerolog.Logger
}

func NewWorkerPool(workerCount int, log zerolog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
		jobChan:     make(chan func(context.Context) error, workerCount*2),
		stopping:    make(chan struct{}),
		log:         log,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.Info().Int("worker_count", wp.workerCount).Msg("Starting worker pool")

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop rejects further submissions, lets the workers drain queued jobs and
// waits for them. It is safe to call while Submit is blocked.
func (wp *WorkerPool) Stop() {
	wp.log.Info().Msg("Stopping worker pool")
	wp.stopOnce.Do(func() {
		close(wp.stopping)

		wp.mu.Lock()
		wp.stopped = true
		close(wp.jobChan)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
	wp.log.Info().Msg("Worker pool stopped")
}

// Submit blocks until a worker slot frees up, ctx is done or the pool is
// stopped. A job is never dropped silently; a rejected one is reported so the
// caller can dead-letter it instead of leaving its run QUEUED.
func (wp *WorkerPool) Submit(ctx context.Context, job func(context.Context) error) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return errors.ErrPoolStopped
	}

	select {
	case wp.jobChan <- job:
		return nil
	case <-wp.stopping:
		return errors.ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	log := wp.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Worker stopping due to context cancellation")
			return
		case job, ok := <-wp.jobChan:
			if !ok {
				log.Debug().Msg("Worker stopping due to closed job channel")
				return
			}

			if err := job(ctx); err != nil {
				log.Error().Err(err).Msg("Job execution failed")
			}
		}
	}
}

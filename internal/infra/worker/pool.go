package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"psychic-credits/internal/infra/logging"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task is a unit of background work. It is an alias so plain funcs satisfy
// consumers that declare their own submitter interface.
type Task = func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines. Submit never blocks:
// when the queue is saturated the task is rejected.
type Pool struct {
	wg      sync.WaitGroup
	mu      sync.RWMutex
	jobs    chan Task
	stopped bool
	n       int
	log     *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logging.OrNop(logger).With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, workers*16), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("workers", p.n).Msg("Starting worker pool")
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				p.run(ctx, id, task)
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Int("worker", id).Err(err).Msg("task error")
	}
}

// Stop refuses new work, lets queued tasks finish and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
	p.log.Info().Msg("Worker pool stopped")
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

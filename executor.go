// Package worksteal provides a work-stealing task executor: a fixed pool of
// worker goroutines that cooperatively execute externally-submitted tasks.
//
// The executor balances load through:
// - Per-worker bounded lock-free deques (owner LIFO, thieves FIFO)
// - A warm LIFO slot per worker for producer-consumer locality
// - Half-stealing between workers to amortise steal overhead
// - An unbounded global overflow queue with fairness polling
// - A coordinator that throttles concurrent thieves and parks idle workers
package worksteal

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/rs/zerolog"
)

// ErrShutdown is returned by Submit once Shutdown has been requested.
var ErrShutdown = errors.New("worksteal: executor is shut down")

// Executor owns the workers, the global overflow queue and the coordinator.
// Construction spawns one goroutine per worker; Shutdown stops and joins them.
type Executor struct {
	cfg    Config
	log    zerolog.Logger
	global *GlobalQueue
	coord  *coordinator

	workers     []*worker
	byGoroutine sync.Map // goroutine id -> *worker
	wg          sync.WaitGroup

	down         atomic.Bool
	shutdownOnce sync.Once
}

// New creates an executor with the given number of workers and default queue
// parameters, and starts its worker goroutines.
func New(workers int) (*Executor, error) {
	cfg := DefaultConfig()
	cfg.Workers = workers
	return NewWithConfig(cfg)
}

// NewWithConfig creates an executor from cfg and starts its worker goroutines.
// Invalid configuration fails here; no executor is ever partially started.
func NewWithConfig(cfg Config) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("worksteal: %w", err)
	}

	e := &Executor{
		cfg:    cfg,
		log:    cfg.Logger,
		global: NewGlobalQueue(),
		coord:  newCoordinator(cfg.Workers),
	}

	e.workers = make([]*worker, cfg.Workers)
	for i := range e.workers {
		local, err := NewDeque(cfg.LocalQueueCapacity)
		if err != nil {
			return nil, fmt.Errorf("worksteal: %w", err)
		}
		e.workers[i] = newWorker(i, e, local)
	}
	for _, w := range e.workers {
		for _, peer := range e.workers {
			if peer != w {
				w.peers = append(w.peers, peer.local.Stealer())
			}
		}
	}

	e.log.Info().
		Int("workers", cfg.Workers).
		Int("local_queue_capacity", cfg.LocalQueueCapacity).
		Msg("executor starting")

	for _, w := range e.workers {
		w := w
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			w.run()
		}()
	}
	return e, nil
}

// Submit hands a task to the executor. Called from a worker goroutine (a task
// spawning a subtask), it takes that worker's fast local path; called from
// anywhere else it goes through the global queue. Returns ErrShutdown after
// Shutdown has been requested.
func (e *Executor) Submit(t Task) error {
	if e.down.Load() {
		return ErrShutdown
	}
	if v, ok := e.byGoroutine.Load(goid.Get()); ok {
		v.(*worker).pushTask(t)
		return nil
	}
	e.global.Push(t)
	e.coord.notifyWorkAvailable()
	return nil
}

// SubmitBatch splices a caller-built list of tasks into the global queue in
// O(1) with a single notification, leaving the list empty.
func (e *Executor) SubmitBatch(batch *TaskList) error {
	if e.down.Load() {
		return ErrShutdown
	}
	if batch.Empty() {
		return nil
	}
	e.global.PushBatch(batch)
	e.coord.notifyWorkAvailable()
	return nil
}

// Shutdown requests cooperative termination, joins all workers and discards
// any tasks left unexecuted. Tasks already running finish; parked workers are
// woken to observe the request. Shutdown is idempotent and safe to call
// concurrently.
func (e *Executor) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.down.Store(true)
		e.log.Info().Msg("executor shutting down")
		e.coord.shutdown()
		e.wg.Wait()
		e.global.Wake()

		discarded := 0
		for e.global.TryPop() != nil {
			discarded++
		}
		e.log.Info().Int("discarded", discarded).Msg("executor stopped")
	})
}

// Workers returns the number of workers in the pool.
func (e *Executor) Workers() int { return e.cfg.Workers }

func (e *Executor) registerWorker(w *worker) {
	e.byGoroutine.Store(goid.Get(), w)
}

func (e *Executor) unregisterWorker() {
	e.byGoroutine.Delete(goid.Get())
}

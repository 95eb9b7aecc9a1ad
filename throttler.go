package worksteal

import (
	"sync"
	"sync/atomic"
)

// throttler bounds the number of workers simultaneously in the stealing phase.
// It is a counting semaphore over searcher permits plus the parking primitive
// idle workers sleep on. Capping searchers at roughly half the pool keeps the
// remaining workers executing tasks instead of contending over scraps.
type throttler struct {
	maxSearchers int64
	searchers    atomic.Int64
	parked       atomic.Int64

	mu            sync.Mutex
	workAvailable *sync.Cond
	workHint      atomic.Bool
}

func newThrottler(maxSearchers int) *throttler {
	th := &throttler{maxSearchers: int64(maxSearchers)}
	th.workAvailable = sync.NewCond(&th.mu)
	return th
}

// permit authorises one worker to be in the search phase. It is linear:
// release is idempotent, and a released permit is inert.
type permit struct {
	host *throttler
}

func (p *permit) release() {
	if p.host != nil {
		p.host.searchers.Add(-1)
		p.host = nil
	}
}

// tryAcquirePermit increments the searcher count iff it is below the cap,
// via a CAS loop. Returns nil when all permits are taken.
func (th *throttler) tryAcquirePermit() *permit {
	cur := th.searchers.Load()
	for cur < th.maxSearchers {
		if th.searchers.CompareAndSwap(cur, cur+1) {
			return &permit{host: th}
		}
		cur = th.searchers.Load()
	}
	return nil
}

// park blocks the caller until stop returns true or a work hint arrives.
// After registering as parked (and before the first wait) it runs lastCheck;
// a true result aborts the park. This closes the window where a producer's
// notification observes zero parked workers an instant before the caller
// starts waiting: the producer's publish and the caller's registration are
// both sequentially consistent, so one side always sees the other.
func (th *throttler) park(stop func() bool, lastCheck func() bool) {
	th.mu.Lock()
	th.parked.Add(1)

	if lastCheck != nil && lastCheck() {
		th.parked.Add(-1)
		th.mu.Unlock()
		return
	}

	for !stop() && !th.workHint.Load() {
		th.workAvailable.Wait()
	}

	th.workHint.Store(false)
	th.parked.Add(-1)
	th.mu.Unlock()
}

// notifyWorkAvailable advertises new work. If any searcher is active nothing
// needs doing: a worker in the steal phase is guaranteed to find the task.
// Otherwise, if anyone is parked, the hint is set under the mutex and exactly
// one waiter is woken.
func (th *throttler) notifyWorkAvailable() {
	if th.searchers.Load() > 0 {
		return
	}
	if th.parked.Load() > 0 {
		th.mu.Lock()
		th.workHint.Store(true)
		th.mu.Unlock()
		th.workAvailable.Signal()
	}
}

// notifyAll wakes every parked worker. Used for shutdown fan-out.
func (th *throttler) notifyAll() {
	th.mu.Lock()
	th.workAvailable.Broadcast()
	th.mu.Unlock()
}

func (th *throttler) searchersCount() int64 { return th.searchers.Load() }
func (th *throttler) parkedCount() int64    { return th.parked.Load() }

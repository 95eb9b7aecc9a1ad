package worksteal

import "sync/atomic"

// searchDirective is the coordinator's answer to a worker that has run out of
// local work.
type searchDirective uint8

const (
	// directiveSearch grants a permit; the worker may scan peers for loot.
	directiveSearch searchDirective = iota
	// directiveWait tells the worker to park.
	directiveWait
	// directiveRetry tells the worker to re-poll once before deciding again:
	// work may have appeared while all permits were taken (two-phase parking).
	directiveRetry
	// directiveTerminate tells the worker to drain and exit.
	directiveTerminate
)

// coordinator is the decision layer above the throttler. Workers with no local
// work ask it what to do next; producers report new work through it; shutdown
// fans out through it.
type coordinator struct {
	throttler          *throttler
	shutdownRequested  atomic.Bool
	workMaybeAvailable atomic.Bool
}

// newCoordinator sizes the throttler to half the worker count, minimum one.
func newCoordinator(workers int) *coordinator {
	maxSearchers := workers / 2
	if maxSearchers < 1 {
		maxSearchers = 1
	}
	return &coordinator{throttler: newThrottler(maxSearchers)}
}

// trySearch returns the directive for a worker entering the idle path. The
// permit is non-nil only for directiveSearch, and the caller must release it
// when leaving the search phase.
func (c *coordinator) trySearch() (searchDirective, *permit) {
	if c.shutdownRequested.Load() {
		return directiveTerminate, nil
	}
	if p := c.throttler.tryAcquirePermit(); p != nil {
		return directiveSearch, p
	}
	// Consume the hint so each notification funds a single retry; otherwise
	// denied workers would spin on it forever.
	if c.workMaybeAvailable.CompareAndSwap(true, false) {
		return directiveRetry, nil
	}
	return directiveWait, nil
}

// parkWorker blocks the caller until work or shutdown. lastCheck runs after
// the worker is registered as parked; returning true aborts the park (see
// throttler.park).
func (c *coordinator) parkWorker(lastCheck func() bool) {
	c.throttler.park(c.shutdownRequested.Load, lastCheck)
}

// notifyWorkAvailable is called by every producer after publishing a task.
// With searchers active it only sets the cheap hint flag; with everyone busy
// or parked it wakes at most one sleeper.
func (c *coordinator) notifyWorkAvailable() {
	if c.throttler.searchersCount() > 0 {
		c.workMaybeAvailable.Store(true)
		return
	}
	if c.throttler.parkedCount() > 0 {
		c.throttler.notifyWorkAvailable()
	}
}

// shutdown requests termination and wakes every parked worker so all of them
// observe directiveTerminate.
func (c *coordinator) shutdown() {
	c.shutdownRequested.Store(true)
	c.throttler.notifyAll()
}

func (c *coordinator) isShutdownRequested() bool {
	return c.shutdownRequested.Load()
}

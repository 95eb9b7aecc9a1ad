package worksteal

import (
	"math/rand"
	"runtime"
	"time"
)

const (
	// globalPollBatch caps how many tasks a fairness tick pulls from the
	// global queue in one go.
	globalPollBatch = 16
	// stealRetryLimit bounds how often a Retry loot is re-attempted against
	// the same victim before moving on.
	stealRetryLimit = 3
)

// worker owns one local deque and a warm slot, and runs the task selection
// loop on its own goroutine.
type worker struct {
	index int
	exec  *Executor
	local *Deque

	// warm holds the most recently produced task for cache-warm immediate
	// re-execution. Only this worker's goroutine touches it.
	warm       Task
	lifoStreak int
	tick       uint64

	rng   *rand.Rand
	peers []StealHandle
}

func newWorker(index int, exec *Executor, local *Deque) *worker {
	return &worker{
		index: index,
		exec:  exec,
		local: local,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(index)<<32)),
	}
}

// run is the worker's main loop. It exits when the coordinator hands out
// directiveTerminate, after draining any leftover local tasks back to the
// global queue.
func (w *worker) run() {
	w.exec.registerWorker(w)
	defer w.exec.unregisterWorker()

	for !w.exec.coord.isShutdownRequested() {
		t := w.nextTask()
		if t == nil {
			t = w.searchForWork()
			if t == nil {
				break
			}
		}
		t.Run()
	}

	drained := w.drainLocal()
	w.exec.log.Debug().Int("worker", w.index).Int("drained", drained).Msg("worker exiting")
}

// nextTask picks the next task from local sources, in priority order:
// a periodic global-queue batch for fairness, the warm LIFO slot while the
// streak allows, the local deque, and finally the global queue. Returns nil
// when all of them come up empty.
func (w *worker) nextTask() Task {
	w.tick++

	if w.tick%uint64(w.exec.cfg.FairnessPeriod) == 0 {
		if t := w.pollGlobalBatch(); t != nil {
			w.lifoStreak = 0
			return t
		}
	}

	if w.warm != nil && w.lifoStreak < w.exec.cfg.MaxLIFOStreak {
		t := w.warm
		w.warm = nil
		w.lifoStreak++
		return t
	}

	if t := w.local.TryPop(); t != nil {
		w.lifoStreak = 0
		return t
	}

	// The streak cap forced us past an occupied warm slot; with the backlog
	// empty the warm task is simply the next task.
	if w.warm != nil {
		t := w.warm
		w.warm = nil
		w.lifoStreak = 1
		return t
	}

	w.lifoStreak = 0
	return w.pollGlobalBatch()
}

// pollGlobalBatch takes a small batch from the global queue, keeps the first
// task for immediate execution and splices the rest into the local deque. The
// batch is capped by the deque's free space, so the pushes cannot fail.
func (w *worker) pollGlobalBatch() Task {
	max := globalPollBatch
	if free := int(w.local.capacity) - w.local.Len(); max > free+1 {
		max = free + 1
	}
	batch := w.exec.global.TryPopBatch(max)
	first := batch.PopFront()
	for !batch.Empty() {
		w.local.tryPushNode(batch.popNode())
	}
	return first
}

// searchForWork runs the stealing phase. It asks the coordinator for a
// directive each round: on Search it scans peers under a permit, on Retry it
// re-polls once, on Wait it parks, and on Terminate it returns nil.
func (w *worker) searchForWork() Task {
	for {
		directive, p := w.exec.coord.trySearch()
		switch directive {
		case directiveTerminate:
			return nil

		case directiveSearch:
			t := w.stealRound()
			if t == nil {
				t = w.exec.global.TryPop()
			}
			p.release()
			if t != nil {
				// The loot (or batch) may exceed one task; let peers know.
				w.exec.coord.notifyWorkAvailable()
				return t
			}
			// Every peer and the global queue came up empty. Park instead of
			// re-acquiring the permit, or an idle pool would spin its
			// searchers forever; the last-look check re-opens the search if
			// work appeared meanwhile.
			w.exec.coord.parkWorker(w.workInSight)

		case directiveRetry:
			runtime.Gosched()
			if t := w.exec.global.TryPop(); t != nil {
				return t
			}

		case directiveWait:
			w.exec.coord.parkWorker(w.workInSight)
		}
	}
}

// workInSight reports whether any queue visibly holds a task. It runs after
// the worker has registered as parked, closing the publish/park race: a
// producer that saw no parked workers has already published its task, so this
// scan finds it.
func (w *worker) workInSight() bool {
	if !w.exec.global.Empty() {
		return true
	}
	for _, h := range w.peers {
		if !h.Empty() {
			return true
		}
	}
	return false
}

// stealRound scans all peers once, starting from a random index. Half-steals
// land the claimed batch in the local deque and return the first task; Retry
// loot is re-attempted a bounded number of times, Empty moves on.
func (w *worker) stealRound() Task {
	n := len(w.peers)
	if n == 0 {
		return nil
	}
	start := w.rng.Intn(n)
	for i := 0; i < n; i++ {
		h := w.peers[(start+i)%n]
		for attempt := 0; attempt <= stealRetryLimit; attempt++ {
			loot := h.StealHalfInto(w.local)
			if loot.IsSuccess() {
				return loot.Unwrap()
			}
			if loot.IsEmpty() {
				break
			}
		}
	}
	return nil
}

// pushTask is the worker-side production path. The new task takes the warm
// slot; the previous occupant, if any, is demoted into the local deque.
func (w *worker) pushTask(t Task) {
	prev := w.warm
	w.warm = t
	if prev != nil {
		w.pushToLocal(prev)
	}
	w.exec.coord.notifyWorkAvailable()
}

// pushToLocal pushes into the local deque, offloading the older half to the
// global queue when the deque is full.
func (w *worker) pushToLocal(t Task) {
	if w.local.TryPush(t) {
		return
	}
	batch := w.local.OffloadHalf()
	w.exec.log.Debug().Int("worker", w.index).Int("tasks", batch.Len()).Msg("local deque full, offloading to global queue")
	w.exec.global.PushBatch(&batch)
	if !w.local.TryPush(t) {
		// Thieves cannot refill the deque, so the retry only fails if the
		// offload claimed nothing; hand the task to the global queue instead.
		w.exec.global.Push(t)
	}
}

// drainLocal moves the warm slot and every remaining local task back to the
// global queue. Called once, on the way out of the run loop.
func (w *worker) drainLocal() int {
	var list TaskList
	if w.warm != nil {
		list.PushBack(w.warm)
		w.warm = nil
	}
	for {
		t := w.local.TryPop()
		if t == nil {
			break
		}
		list.PushBack(t)
	}
	n := list.Len()
	w.exec.global.PushBatch(&list)
	return n
}

package worksteal

import "sync"

// GlobalQueue is the unbounded multi-producer multi-consumer overflow queue.
// Externally submitted tasks land here, and workers drain half their local
// deque into it when the deque fills up. A mutex guards an intrusive TaskList;
// a condition variable signals "not empty" for the blocking wait used during
// shutdown. Every critical section is O(1) except TryPopBatch, which is O(max).
type GlobalQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	list     TaskList
}

// NewGlobalQueue creates an empty global queue.
func NewGlobalQueue() *GlobalQueue {
	q := &GlobalQueue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends t and wakes one waiter.
func (q *GlobalQueue) Push(t Task) {
	q.mu.Lock()
	q.list.PushBack(t)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// PushBatch splices the whole list to the back of the queue in O(1), leaving
// it empty. Waiters are signalled only for a non-empty batch.
func (q *GlobalQueue) PushBatch(batch *TaskList) {
	if batch.Empty() {
		return
	}
	q.mu.Lock()
	q.list.Append(batch)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// TryPop removes and returns the oldest task, or nil if the queue is empty.
func (q *GlobalQueue) TryPop() Task {
	q.mu.Lock()
	t := q.list.PopFront()
	q.mu.Unlock()
	return t
}

// TryPopBatch moves up to max front-most tasks into a new list. The returned
// list is empty when the queue was empty or max is not positive.
func (q *GlobalQueue) TryPopBatch(max int) TaskList {
	var out TaskList
	if max <= 0 {
		return out
	}
	q.mu.Lock()
	for out.Len() < max {
		n := q.list.popNode()
		if n == nil {
			break
		}
		out.pushNode(n)
	}
	q.mu.Unlock()
	return out
}

// Len returns the number of queued tasks.
func (q *GlobalQueue) Len() int {
	q.mu.Lock()
	n := q.list.Len()
	q.mu.Unlock()
	return n
}

// Empty reports whether the queue holds no tasks.
func (q *GlobalQueue) Empty() bool { return q.Len() == 0 }

// WaitNotEmpty blocks until the queue is non-empty or stop returns true, and
// reports whether tasks were present when it returned. Use Wake to force
// waiters to re-evaluate stop.
func (q *GlobalQueue) WaitNotEmpty(stop func() bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.list.Empty() && !stop() {
		q.notEmpty.Wait()
	}
	return !q.list.Empty()
}

// Wake broadcasts to all blocked WaitNotEmpty callers.
func (q *GlobalQueue) Wake() {
	q.notEmpty.Broadcast()
}

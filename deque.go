package worksteal

import (
	"fmt"
	"sync/atomic"
)

const cacheLineSize = 64

// ringBuffer is a fixed-capacity array of atomic task slots. Capacity is a
// power of two; a slot is addressed by masking a monotonic 64-bit index.
// Callers establish top <= i < bottom before trusting a loaded value.
type ringBuffer struct {
	slots []atomic.Pointer[TaskNode]
	mask  uint64
}

func newRingBuffer(capacity uint64) *ringBuffer {
	return &ringBuffer{
		slots: make([]atomic.Pointer[TaskNode], capacity),
		mask:  capacity - 1,
	}
}

func (r *ringBuffer) load(i uint64) *TaskNode     { return r.slots[i&r.mask].Load() }
func (r *ringBuffer) store(i uint64, n *TaskNode) { r.slots[i&r.mask].Store(n) }

// sharedState is the portion of a deque visible to thieves: the ring buffer
// and the top/bottom counters. top is the index of the oldest element and is
// advanced only by CAS; bottom is one past the newest and is written only by
// the owner. Both increase monotonically, which makes every CAS on top ABA-free.
// Padding keeps the two counters and the ring on separate cache lines.
type sharedState struct {
	ring   *ringBuffer
	_      [cacheLineSize]byte
	top    atomic.Uint64
	_      [cacheLineSize]byte
	bottom atomic.Uint64
}

func (s *sharedState) size() uint64 {
	b := s.bottom.Load()
	t := s.top.Load()
	if t >= b {
		return 0
	}
	return b - t
}

// Deque is the owner's view of a bounded single-producer multi-consumer
// work-stealing deque. The owner pushes and pops at the bottom (LIFO); thieves
// take from the top (FIFO) through StealHandles. All operations are lock-free.
type Deque struct {
	state    *sharedState
	capacity uint64
}

// NewDeque creates a deque with the given capacity, which must be a power of
// two no smaller than two.
func NewDeque(capacity int) (*Deque, error) {
	if capacity < 2 || !isPowerOfTwo(capacity) {
		return nil, fmt.Errorf("deque capacity must be a power of two >= 2, got %d", capacity)
	}
	c := uint64(capacity)
	return &Deque{
		state:    &sharedState{ring: newRingBuffer(c)},
		capacity: c,
	}, nil
}

// TryPush appends t at the bottom. It never blocks; false means the deque is
// full and the owner should offload half to the global queue and retry.
// Owner only.
func (d *Deque) TryPush(t Task) bool {
	return d.tryPushNode(nodeOf(t))
}

func (d *Deque) tryPushNode(n *TaskNode) bool {
	s := d.state
	b := s.bottom.Load()
	t := s.top.Load()
	if b-t >= d.capacity {
		return false
	}
	s.ring.store(b, n)
	s.bottom.Store(b + 1)
	return true
}

// TryPop removes and returns the newest task, or nil if the deque is empty.
// When exactly one element remains the owner races thieves for it with a CAS
// on top; losing the race returns nil. Owner only.
func (d *Deque) TryPop() Task {
	s := d.state
	b := s.bottom.Load()
	if b == s.top.Load() {
		return nil
	}

	// Reserve the bottom slot, then re-read top to detect thieves.
	b--
	s.bottom.Store(b)
	t := s.top.Load()

	if t > b {
		// A thief claimed the reserved slot before the store landed.
		s.bottom.Store(b + 1)
		return nil
	}

	n := s.ring.load(b)
	if t == b {
		// Last element: race thieves with a single CAS on top.
		if !s.top.CompareAndSwap(t, t+1) {
			s.bottom.Store(b + 1)
			return nil
		}
		s.bottom.Store(b + 1)
	}
	return n.task
}

// OffloadHalf atomically claims the older half of the deque and returns it as
// a batch, for transfer to the global queue when TryPush reports full. The
// claim uses CAS on top because thieves may be stealing concurrently; on a
// lost race the observed counters are refreshed and the claim retried.
// Owner only.
func (d *Deque) OffloadHalf() TaskList {
	var out TaskList
	s := d.state
	for {
		t := s.top.Load()
		b := s.bottom.Load()
		if t >= b {
			return out
		}
		grab := (b - t + 1) / 2
		if s.top.CompareAndSwap(t, t+grab) {
			for i := t; i < t+grab; i++ {
				out.pushNode(s.ring.load(i))
			}
			return out
		}
	}
}

// Len returns the approximate number of tasks in the deque.
func (d *Deque) Len() int { return int(d.state.size()) }

// Empty reports whether the deque looks empty.
func (d *Deque) Empty() bool { return d.state.size() == 0 }

// Stealer returns a handle thieves use to take tasks from this deque.
func (d *Deque) Stealer() StealHandle {
	return StealHandle{state: d.state, capacity: d.capacity}
}

// lootKind tags the outcome of a steal attempt.
type lootKind uint8

const (
	lootEmpty lootKind = iota
	lootSuccess
	lootRetry
)

// Loot is the result of a steal attempt: a task on success, Empty when the
// victim had nothing, or Retry when a racing owner or thief won the CAS and
// the attempt may be repeated.
type Loot struct {
	kind lootKind
	task Task
}

// IsSuccess reports whether the steal yielded a task.
func (l Loot) IsSuccess() bool { return l.kind == lootSuccess }

// IsEmpty reports whether the victim's deque was empty.
func (l Loot) IsEmpty() bool { return l.kind == lootEmpty }

// IsRetry reports whether the attempt lost a race and may be retried.
func (l Loot) IsRetry() bool { return l.kind == lootRetry }

// Unwrap returns the stolen task, or nil when the loot is not a success.
func (l Loot) Unwrap() Task { return l.task }

// StealHandle is a cheap, copyable, non-owning reference to a peer deque's
// shared state. It must not outlive the deque it points at; within an executor
// that lifetime is bounded by the executor itself.
type StealHandle struct {
	state    *sharedState
	capacity uint64
}

// Steal takes the oldest task from the target deque.
func (h StealHandle) Steal() Loot {
	s := h.state
	t := s.top.Load()
	b := s.bottom.Load()
	if t >= b {
		return Loot{kind: lootEmpty}
	}
	n := s.ring.load(t)
	if !s.top.CompareAndSwap(t, t+1) {
		return Loot{kind: lootRetry}
	}
	return Loot{kind: lootSuccess, task: n.task}
}

// StealHalfInto claims roughly half of the target deque in a single CAS,
// pushes all but the first claimed task into dst, and returns the first as
// loot for immediate execution. The claim is capped by dst's free capacity so
// the transfer can never overflow the thief's own deque.
func (h StealHandle) StealHalfInto(dst *Deque) Loot {
	s := h.state
	t := s.top.Load()
	b := s.bottom.Load()
	if t >= b {
		return Loot{kind: lootEmpty}
	}
	n := b - t
	grab := n - n/2
	if free := dst.capacity - dst.state.size(); grab > free+1 {
		grab = free + 1
	}
	if !s.top.CompareAndSwap(t, t+grab) {
		return Loot{kind: lootRetry}
	}
	first := s.ring.load(t)
	for i := t + 1; i < t+grab; i++ {
		dst.tryPushNode(s.ring.load(i))
	}
	return Loot{kind: lootSuccess, task: first.task}
}

// Empty reports whether the target deque looks empty. The answer is
// approximate: the counters may move before the caller acts on it.
func (h StealHandle) Empty() bool { return h.state.size() == 0 }

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

package worksteal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalQueueFIFO(t *testing.T) {
	q := NewGlobalQueue()
	q.Push(newTestTask(1))
	q.Push(newTestTask(2))

	first := q.TryPop()
	require.NotNil(t, first)
	assert.Equal(t, 1, first.(*testTask).value)

	second := q.TryPop()
	require.NotNil(t, second)
	assert.Equal(t, 2, second.(*testTask).value)

	assert.Nil(t, q.TryPop())
}

func TestGlobalQueuePushEmptyBatch(t *testing.T) {
	q := NewGlobalQueue()
	var empty TaskList
	q.PushBatch(&empty)
	assert.Nil(t, q.TryPop())
	assert.True(t, q.Empty())
}

func TestGlobalQueuePopBatchMoreThanAvailable(t *testing.T) {
	q := NewGlobalQueue()
	q.Push(newTestTask(1))
	q.Push(newTestTask(2))

	batch := q.TryPopBatch(100)
	assert.Equal(t, 2, batch.Len())
	assert.True(t, q.Empty())
}

func TestGlobalQueuePopBatchZero(t *testing.T) {
	q := NewGlobalQueue()
	q.Push(newTestTask(1))

	batch := q.TryPopBatch(0)
	assert.True(t, batch.Empty())

	task := q.TryPop()
	require.NotNil(t, task)
	assert.Equal(t, 1, task.(*testTask).value)
}

func TestGlobalQueueBatchRoundTrip(t *testing.T) {
	q := NewGlobalQueue()

	var batch TaskList
	for i := 1; i <= 5; i++ {
		batch.PushBack(newTestTask(i))
	}
	q.PushBatch(&batch)
	assert.True(t, batch.Empty())
	assert.Equal(t, 5, q.Len())

	popped := q.TryPopBatch(3)
	assert.Equal(t, []int{1, 2, 3}, values(&popped))

	remains := 0
	for q.TryPop() != nil {
		remains++
	}
	assert.Equal(t, 2, remains)
}

func TestGlobalQueueConcurrentProducersConsumers(t *testing.T) {
	const (
		producers = 4
		perProd   = 5000
	)
	q := NewGlobalQueue()

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for i := 0; i < perProd; i++ {
				q.Push(newTestTask(p*perProd + i))
			}
		}(p)
	}

	var consumed atomic.Int64
	var done atomic.Bool
	var consumers sync.WaitGroup
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				if q.TryPop() != nil {
					consumed.Add(1)
					continue
				}
				if done.Load() && q.Empty() {
					return
				}
			}
		}()
	}

	produced.Wait()
	done.Store(true)
	consumers.Wait()
	assert.Equal(t, int64(producers*perProd), consumed.Load())
}

func TestGlobalQueueWaitNotEmpty(t *testing.T) {
	q := NewGlobalQueue()

	got := make(chan bool, 1)
	go func() {
		got <- q.WaitNotEmpty(func() bool { return false })
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(newTestTask(1))

	select {
	case ok := <-got:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by push")
	}
}

func TestGlobalQueueWaitNotEmptyStop(t *testing.T) {
	q := NewGlobalQueue()
	var stop atomic.Bool

	got := make(chan bool, 1)
	go func() {
		got <- q.WaitNotEmpty(stop.Load)
	}()

	time.Sleep(10 * time.Millisecond)
	stop.Store(true)
	q.Wake()

	select {
	case ok := <-got:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by stop")
	}
}

package worksteal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottlerPermitCap(t *testing.T) {
	th := newThrottler(2)

	p1 := th.tryAcquirePermit()
	p2 := th.tryAcquirePermit()
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	assert.Nil(t, th.tryAcquirePermit(), "third permit must be denied")
	assert.Equal(t, int64(2), th.searchersCount())

	p1.release()
	assert.Equal(t, int64(1), th.searchersCount())

	p3 := th.tryAcquirePermit()
	require.NotNil(t, p3)

	p2.release()
	p3.release()
	assert.Equal(t, int64(0), th.searchersCount())
}

func TestThrottlerPermitDoubleRelease(t *testing.T) {
	th := newThrottler(1)
	p := th.tryAcquirePermit()
	require.NotNil(t, p)

	p.release()
	p.release()
	assert.Equal(t, int64(0), th.searchersCount(), "second release must be inert")
}

func TestThrottlerPermitConservation(t *testing.T) {
	const (
		workers = 8
		rounds  = 2000
	)
	th := newThrottler(3)

	var peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				p := th.tryAcquirePermit()
				if p == nil {
					continue
				}
				cur := th.searchersCount()
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				p.release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Equal(t, int64(0), th.searchersCount(), "all permits released at quiescence")
}

func TestThrottlerParkNotify(t *testing.T) {
	th := newThrottler(1)

	woken := make(chan struct{})
	go func() {
		th.park(func() bool { return false }, nil)
		close(woken)
	}()

	// Wait until the worker is registered as parked, then notify.
	for th.parkedCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	th.notifyWorkAvailable()

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("parked worker was not woken by work notification")
	}
	assert.Equal(t, int64(0), th.parkedCount())
	assert.False(t, th.workHint.Load(), "hint is consumed on wake")
}

func TestThrottlerNotifySkippedWithActiveSearcher(t *testing.T) {
	th := newThrottler(1)
	p := th.tryAcquirePermit()
	require.NotNil(t, p)

	th.notifyWorkAvailable()
	assert.False(t, th.workHint.Load(), "an active searcher absorbs the notification")
	p.release()
}

func TestThrottlerParkLastCheckAborts(t *testing.T) {
	th := newThrottler(1)

	done := make(chan struct{})
	go func() {
		th.park(func() bool { return false }, func() bool { return true })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("park must abort when lastCheck reports work")
	}
	assert.Equal(t, int64(0), th.parkedCount())
}

func TestThrottlerNotifyAll(t *testing.T) {
	const sleepers = 4
	th := newThrottler(1)
	var stop atomic.Bool

	var wg sync.WaitGroup
	for i := 0; i < sleepers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.park(stop.Load, nil)
		}()
	}

	for th.parkedCount() != sleepers {
		time.Sleep(time.Millisecond)
	}
	stop.Store(true)
	th.notifyAll()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifyAll must wake every parked worker")
	}
	assert.Equal(t, int64(0), th.parkedCount())
}

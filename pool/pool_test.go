package pool

import (
	"context"
	"testing"
	"time"
)

func testPool() *Pool {
	return New(Options{MaxConnections: 2}, nil)
}

func TestCondVarBroadcastWakesAllWaiters(t *testing.T) {
	cv := newCondVar()

	const n = 3
	woke := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			cv.lock()
			cv.wait(context.Background())
			woke <- struct{}{}
			cv.unlock()
		}()
	}
	time.Sleep(20 * time.Millisecond)
	cv.lock()
	cv.broadcast()
	cv.unlock()

	for i := 0; i < n; i++ {
		select {
		case <-woke:
		case <-time.After(time.Second):
			t.Fatalf("waiter %d never woke", i)
		}
	}
}

func TestCondVarWaitRespectsCancellation(t *testing.T) {
	cv := newCondVar()
	ctx, cancel := context.WithCancel(context.Background())

	cv.lock()
	done := make(chan struct{})
	go func() {
		cv.lock()
		cv.wait(ctx)
		cv.unlock()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cv.unlock() // let the waiter's lock() inside the goroutine proceed to wait()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after context cancellation")
	}
}

func TestStatsReflectsCapacity(t *testing.T) {
	p := testPool()
	s := p.Stats()
	if s.Capacity != 2 || s.Idle != 0 || s.InUse != 0 {
		t.Fatalf("unexpected initial stats: %+v", s)
	}
}

package transform

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimit_Unbounded(t *testing.T) {
	next := Func(func(context.Context, Request) *Result { return &Result{Status: StatusSuccess} })
	if _, ok := Limit(next, 0).(*Limited); ok {
		t.Error("Limit(next, 0) should return next unchanged")
	}
}

func TestLimit_BoundsConcurrency(t *testing.T) {
	var (
		active  atomic.Int64
		maxSeen atomic.Int64
	)
	next := Func(func(context.Context, Request) *Result {
		n := active.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return &Result{Status: StatusSuccess}
	})

	limited := Limit(next, 2)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := limited.Run(t.Context(), Request{}); !res.OK() {
				t.Errorf("unexpected failure: %+v", res)
			}
		}()
	}
	wg.Wait()

	if got := maxSeen.Load(); got > 2 {
		t.Errorf("observed %d concurrent runs, limit 2", got)
	}
}

func TestLimit_CanceledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	next := Func(func(context.Context, Request) *Result {
		<-release
		return &Result{Status: StatusSuccess}
	})
	limited := Limit(next, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		limited.Run(t.Context(), Request{})
	}()

	// Wait until the slot is held.
	deadline := time.Now().Add(time.Second)
	for limited.(*Limited).sem.TryAcquire(1) {
		limited.(*Limited).sem.Release(1)
		if time.Now().After(deadline) {
			t.Fatal("slot never acquired")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	res := limited.Run(ctx, Request{})
	if res.OK() || res.Kind != FailureCanceled {
		t.Errorf("expected canceled failure, got %+v", res)
	}

	close(release)
	<-done
}

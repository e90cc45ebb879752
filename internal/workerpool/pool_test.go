package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunBlockingExecutesAndReturnsResult(t *testing.T) {
	p := New(2)
	got, err := RunBlocking(context.Background(), p, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("unexpected result: %d, %v", got, err)
	}
}

func TestRunBlockingBoundsConcurrency(t *testing.T) {
	p := New(2)
	var active int32
	var maxActive int32
	release := make(chan struct{})

	start := func() {
		_, _ = RunBlocking(context.Background(), p, func(ctx context.Context) (struct{}, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&active, -1)
			return struct{}{}, nil
		})
	}

	for i := 0; i < 5; i++ {
		go start()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&maxActive); got > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, observed %d", got)
	}
}

func TestRunBlockingRespectsContextCancellation(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBlocking(ctx, p, func(ctx context.Context) (int, error) {
		t.Fatal("fn should not run once context is already cancelled")
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestTryRunBlockingReportsSaturation(t *testing.T) {
	p := New(1)
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = RunBlocking(context.Background(), p, func(ctx context.Context) (int, error) {
			close(started)
			<-hold
			return 0, nil
		})
	}()
	<-started

	_, _, ok := TryRunBlocking(p, func() (int, error) { return 0, nil })
	if ok {
		t.Fatal("expected TryRunBlocking to report saturation")
	}
	close(hold)
}

func TestNewFallsBackToDefaultCapacity(t *testing.T) {
	p := New(0)
	if p.Capacity() != DefaultMaxThreads {
		t.Fatalf("expected default capacity %d, got %d", DefaultMaxThreads, p.Capacity())
	}
}

package pipeline

import (
	"sync"
	"testing"
)

func TestNewWorkerPool_ZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool == nil {
		t.Fatal("Expected non-nil WorkerPool")
	}
	if pool.workers <= 0 {
		t.Errorf("Expected workers to default to CPU count, got %d", pool.workers)
	}
}

func TestWorkerPool_TrySubmit(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()

	var counter int
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		if pool.TrySubmit(func() {
			mu.Lock()
			counter++
			mu.Unlock()
		}) {
			accepted++
		}
	}

	pool.Close()

	if accepted == 0 {
		t.Fatal("Expected at least one job to be accepted")
	}
	if counter != accepted {
		t.Errorf("Expected %d jobs to run, got %d", accepted, counter)
	}
}

func TestWorkerPool_QueueFull(t *testing.T) {
	pool := NewWorkerPool(1)
	// not started, so the single queue slot fills up
	if !pool.TrySubmit(func() {}) {
		t.Fatal("Expected first job to be queued")
	}
	if pool.TrySubmit(func() {}) {
		t.Error("Expected second job to be rejected")
	}
	pool.Start()
	pool.Close()
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Close()
	pool.Close()

	if pool.TrySubmit(func() {}) {
		t.Error("Expected submit after close to fail")
	}
}

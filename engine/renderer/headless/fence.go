package headless

import (
	"sync"
	"sync/atomic"
)

type fenceWaiter struct {
	value uint64
	done  chan<- struct{}
}

type Fence struct {
	completed atomic.Uint64
	mu        sync.Mutex
	waiters   []fenceWaiter
}

func (f *Fence) CompletedValue() uint64 {
	return f.completed.Load()
}

func (f *Fence) SetEventOnCompletion(value uint64, done chan<- struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed.Load() >= value {
		close(done)
		return nil
	}
	f.waiters = append(f.waiters, fenceWaiter{value: value, done: done})
	return nil
}

// complete is called by the queue worker when the signal is reached.
func (f *Fence) complete(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed.Load() {
		f.completed.Store(value)
	}
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= value {
			close(w.done)
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

func (f *Fence) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiters = nil
}

package renderer

import "github.com/spaghettifunk/framering/engine/containers"

type pendingRelease struct {
	fence     uint64
	resources []Resource
}

// ReleaseQueue keeps resources alive until the GPU work that reads them
// completed. Entries are released in the order they were deferred.
type ReleaseQueue struct {
	pending *containers.RingQueue[pendingRelease]
}

func NewReleaseQueue() *ReleaseQueue {
	return &ReleaseQueue{pending: containers.NewGrowableRingQueue[pendingRelease](8)}
}

func (rq *ReleaseQueue) Defer(fence uint64, resources ...Resource) {
	if len(resources) == 0 {
		return
	}
	// growable, never full
	_ = rq.pending.Enqueue(pendingRelease{fence: fence, resources: resources})
}

// Collect destroys entries whose fence is at or below completed and returns
// how many resources were destroyed.
func (rq *ReleaseQueue) Collect(completed uint64) int {
	n := 0
	for !rq.pending.IsEmpty() {
		head, _ := rq.pending.Peek()
		if head.fence > completed {
			break
		}
		rq.pending.Dequeue()
		n += release(head)
	}
	return n
}

// Drain destroys everything. Only call after a flush.
func (rq *ReleaseQueue) Drain() int {
	n := 0
	for !rq.pending.IsEmpty() {
		p, _ := rq.pending.Dequeue()
		n += release(p)
	}
	return n
}

func (rq *ReleaseQueue) Len() int {
	return rq.pending.Len()
}

func release(p pendingRelease) int {
	for _, r := range p.resources {
		r.Destroy()
	}
	return len(p.resources)
}

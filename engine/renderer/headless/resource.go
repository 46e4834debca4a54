package headless

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// Resource is a buffer or texture in host memory. Texels are four float32.
type Resource struct {
	device    *Device
	desc      metadata.ResourceDesc
	data      []byte
	state     metadata.ResourceState
	destroyed atomic.Bool
}

func (r *Resource) Name() string {
	return r.desc.Name
}

func (r *Resource) Desc() metadata.ResourceDesc {
	return r.desc
}

func (r *Resource) Map() ([]byte, error) {
	if r.desc.Heap == metadata.HeapTypeDefault {
		return nil, fmt.Errorf("%w: %s is not CPU visible", core.ErrSubmission, r.desc.Name)
	}
	return r.data, nil
}

func (r *Resource) Destroy() {
	if r.destroyed.CompareAndSwap(false, true) {
		r.device.live.Add(-1)
	}
}

func (r *Resource) Destroyed() bool {
	return r.destroyed.Load()
}

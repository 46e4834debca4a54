package systems

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// CullStats summarizes one visibility pass.
type CullStats struct {
	Visible int
	Total   int
}

func (cs CullStats) String() string {
	return fmt.Sprintf("%d objects visible out of %d", cs.Visible, cs.Total)
}

type VisibilitySystemConfig struct {
	Workers int
	Enabled bool
}

// VisibilitySystem culls the instances of every instanced render item
// against the camera frustum and compacts the survivors into the frame's
// instance buffer. Items are processed in parallel since their regions in
// the buffer never overlap.
type VisibilitySystem struct {
	pool    worker.DynamicWorkerPool
	enabled atomic.Bool
	taskID  int
}

func NewVisibilitySystem(config *VisibilitySystemConfig) (*VisibilitySystem, error) {
	if config.Workers < 1 {
		return nil, fmt.Errorf("func NewVisibilitySystem - config.Workers must be > 0")
	}
	vs := &VisibilitySystem{
		pool: worker.NewDynamicWorkerPool(config.Workers, 256, 1*time.Second),
	}
	vs.enabled.Store(config.Enabled)
	return vs, nil
}

// SetEnabled toggles culling. Disabled culling keeps every instance.
func (vs *VisibilitySystem) SetEnabled(enabled bool) {
	vs.enabled.Store(enabled)
}

func (vs *VisibilitySystem) Enabled() bool {
	return vs.enabled.Load()
}

// Filter runs the main pass. frustum is in view space; view is the camera
// view matrix. It returns once every item is done.
func (vs *VisibilitySystem) Filter(view math.Mat4, frustum math.Frustum, items []*RenderItem, frame *renderer.FrameResource) (CullStats, error) {
	return vs.FilterPass(0, view, frustum, items, frame)
}

// FilterPass culls items for one pass. The survivors go to the pass's own
// region of the instance buffer, so passes seen from other cameras in the
// same frame keep theirs.
func (vs *VisibilitySystem) FilterPass(pass int, view math.Mat4, frustum math.Frustum, items []*RenderItem, frame *renderer.FrameResource) (CullStats, error) {
	base, err := frame.InstanceRegion(pass)
	if err != nil {
		return CullStats{}, err
	}
	invView := view.Inverse()
	enabled := vs.enabled.Load()

	visible := make([]int, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		if !item.IsInstanced() {
			continue
		}
		wg.Add(1)
		idx, it := i, item
		id := vs.taskID
		vs.taskID++
		vs.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				n, err := cullItem(it, pass, base+it.InstanceBufferOffset, invView, frustum, frame.InstanceBuffer, enabled)
				visible[idx] = n
				errs[idx] = err
				return nil, err
			},
		})
	}
	wg.Wait()

	var stats CullStats
	for i, item := range items {
		if errs[i] != nil {
			return stats, errs[i]
		}
		if !item.IsInstanced() {
			continue
		}
		stats.Visible += visible[i]
		stats.Total += len(item.Instances)
	}
	return stats, nil
}

// cullItem writes the surviving instances of item, in order, to buf from
// offset on and records how many there are for pass.
func cullItem(item *RenderItem, pass, offset int, invView math.Mat4, frustum math.Frustum, buf *renderer.UploadBuffer[metadata.InstanceData], enabled bool) (int, error) {
	n := 0
	for _, inst := range item.Instances {
		keep := !enabled || !item.HasBounds
		if !keep {
			invWorld := inst.World.Inverse()
			// view space -> local space of this instance
			viewToLocal := invView.Mul(invWorld)
			localFrustum := frustum.Transform(viewToLocal)
			keep = localFrustum.ContainsSphere(item.Bounds) != math.Disjoint
		}
		if !keep {
			continue
		}
		if err := buf.CopyData(offset+n, inst); err != nil {
			return n, err
		}
		n++
	}
	item.setVisible(pass, InstanceRange{Offset: offset, Count: uint32(n)})
	return n, nil
}

func (vs *VisibilitySystem) Shutdown() error {
	vs.pool.Stop()
	return nil
}

package systems

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

/**
 * @brief Everything needed to draw one shape. Instanced items carry their
 * per instance data; the visibility system decides which instances reach
 * the frame's instance buffer.
 */
type RenderItem struct {
	ID int

	/** @brief World matrix of the shape, used when the item has no instances. */
	World        math.Mat4
	TexTransform math.Mat4

	/**
	 * @brief Frame resources still holding stale object constants. Reset to
	 * the ring depth on every edit.
	 */
	NumFramesDirty int
	/** @brief Index into the object constant buffer of every frame resource. */
	ObjCBIndex int

	Mat *metadata.Material
	Geo *MeshGeometry

	IndexCount         uint32
	StartIndexLocation uint32
	BaseVertexLocation int32

	Instances []metadata.InstanceData
	/** @brief First element of this item's region in the instance buffer. */
	InstanceBufferOffset int
	/** @brief Survivors of the main pass. */
	VisibleInstanceCount uint32
	// survivors of every other pass, indexed by pass-1
	passRanges []InstanceRange

	/** @brief Local space bounds shared by all instances. */
	Bounds    math.BoundingSphere
	HasBounds bool
}

// IsInstanced reports whether the item is drawn from the instance buffer.
func (ri *RenderItem) IsInstanced() bool {
	return len(ri.Instances) > 0
}

// InstanceRange locates the instances one pass draws of an item.
type InstanceRange struct {
	Offset int
	Count  uint32
}

// Visible returns the range of the item drawn by pass. Pass 0 is the main
// pass. An instanced item never culled for pass draws nothing in it.
func (ri *RenderItem) Visible(pass int) InstanceRange {
	if pass == 0 || !ri.IsInstanced() {
		return InstanceRange{Offset: ri.InstanceBufferOffset, Count: ri.VisibleInstanceCount}
	}
	if pass-1 < len(ri.passRanges) {
		return ri.passRanges[pass-1]
	}
	return InstanceRange{}
}

func (ri *RenderItem) setVisible(pass int, r InstanceRange) {
	if pass == 0 {
		ri.VisibleInstanceCount = r.Count
		return
	}
	for len(ri.passRanges) < pass {
		ri.passRanges = append(ri.passRanges, InstanceRange{})
	}
	ri.passRanges[pass-1] = r
}

type RenderItemSystemConfig struct {
	MaxRenderItems    int
	MaxInstances      int
	NumFrameResources int
}

// RenderItemSystem is the catalog of render items. It owns the items and
// assigns their object constant and instance buffer regions.
type RenderItemSystem struct {
	config         *RenderItemSystemConfig
	items          []*RenderItem
	totalInstances int
}

func NewRenderItemSystem(config *RenderItemSystemConfig) (*RenderItemSystem, error) {
	if config.MaxRenderItems <= 0 {
		err := fmt.Errorf("func NewRenderItemSystem - config.MaxRenderItems must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.NumFrameResources < 1 {
		return nil, fmt.Errorf("%w: render item system needs at least one frame resource", core.ErrInvalidConfig)
	}
	return &RenderItemSystem{config: config}, nil
}

// Add takes ownership of item and returns its id.
func (rs *RenderItemSystem) Add(item *RenderItem) (int, error) {
	if len(rs.items) >= rs.config.MaxRenderItems {
		err := fmt.Errorf("%w: render item limit %d reached", core.ErrOutOfRange, rs.config.MaxRenderItems)
		core.LogError(err.Error())
		return -1, err
	}
	if rs.totalInstances+len(item.Instances) > rs.config.MaxInstances {
		err := fmt.Errorf("%w: %d instances exceed the instance buffer (%d)",
			core.ErrOutOfRange, rs.totalInstances+len(item.Instances), rs.config.MaxInstances)
		core.LogError(err.Error())
		return -1, err
	}
	if item.TexTransform == (math.Mat4{}) {
		item.TexTransform = math.NewMat4Identity()
	}
	if item.World == (math.Mat4{}) {
		item.World = math.NewMat4Identity()
	}
	item.ID = len(rs.items)
	item.ObjCBIndex = item.ID
	item.InstanceBufferOffset = rs.totalInstances
	item.NumFramesDirty = rs.config.NumFrameResources
	if !item.IsInstanced() {
		item.VisibleInstanceCount = 1
	}
	rs.totalInstances += len(item.Instances)
	rs.items = append(rs.items, item)
	return item.ID, nil
}

func (rs *RenderItemSystem) Item(id int) (*RenderItem, error) {
	if id < 0 || id >= len(rs.items) {
		return nil, fmt.Errorf("%w: render item %d of %d", core.ErrOutOfRange, id, len(rs.items))
	}
	return rs.items[id], nil
}

func (rs *RenderItemSystem) Items() []*RenderItem {
	return rs.items
}

// MarkDirty schedules the object constants of id for the next ring-depth frames.
func (rs *RenderItemSystem) MarkDirty(id int) error {
	item, err := rs.Item(id)
	if err != nil {
		return err
	}
	item.NumFramesDirty = rs.config.NumFrameResources
	return nil
}

// SetWorld moves the item and marks it dirty.
func (rs *RenderItemSystem) SetWorld(id int, world math.Mat4) error {
	item, err := rs.Item(id)
	if err != nil {
		return err
	}
	item.World = world
	item.NumFramesDirty = rs.config.NumFrameResources
	return nil
}

// UpdateObjectConstants refreshes the frame's object constants of every
// dirty item and returns how many were written.
func (rs *RenderItemSystem) UpdateObjectConstants(frame *renderer.FrameResource) (int, error) {
	written := 0
	for _, item := range rs.items {
		if item.NumFramesDirty <= 0 {
			continue
		}
		var matIndex uint32
		if item.Mat != nil {
			matIndex = item.Mat.MatBufferIndex
		}
		err := frame.ObjectCB.CopyData(item.ObjCBIndex, metadata.ObjectConstants{
			World:         item.World,
			TexTransform:  item.TexTransform,
			MaterialIndex: matIndex,
		})
		if err != nil {
			return written, err
		}
		item.NumFramesDirty--
		written++
	}
	return written, nil
}

func (rs *RenderItemSystem) TotalInstances() int {
	return rs.totalInstances
}

func (rs *RenderItemSystem) Shutdown() error {
	rs.items = nil
	rs.totalInstances = 0
	return nil
}

package renderer

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// FrameResourceCounts sizes the per frame upload buffers.
type FrameResourceCounts struct {
	Passes    int
	Objects   int
	Materials int
	// Instances per pass. Each pass culls into its own region of the
	// instance buffer.
	Instances int
}

/**
 * @brief Everything the CPU writes for one frame. A slot may be touched again
 * only once the GPU reached Fence.
 */
type FrameResource struct {
	/** @brief Position in the ring. */
	Index     int
	Allocator CommandAllocator

	PassCB         *UploadBuffer[metadata.PassConstants]
	ObjectCB       *UploadBuffer[metadata.ObjectConstants]
	MaterialBuffer *UploadBuffer[metadata.MaterialData]
	InstanceBuffer *UploadBuffer[metadata.InstanceData]

	/** @brief Fence value marking the last submission that used this slot. 0 means never submitted. */
	Fence uint64

	passes           int
	instancesPerPass int
}

func NewFrameResource(device Device, index int, counts FrameResourceCounts) (*FrameResource, error) {
	fr := &FrameResource{Index: index, passes: max(counts.Passes, 1), instancesPerPass: counts.Instances}
	var err error

	if fr.Allocator, err = device.CreateCommandAllocator(); err != nil {
		return nil, err
	}
	if fr.PassCB, err = NewUploadBuffer[metadata.PassConstants](device, fmt.Sprintf("frame%d.pass", index), counts.Passes, true); err != nil {
		fr.Destroy()
		return nil, err
	}
	if fr.ObjectCB, err = NewUploadBuffer[metadata.ObjectConstants](device, fmt.Sprintf("frame%d.object", index), counts.Objects, true); err != nil {
		fr.Destroy()
		return nil, err
	}
	if fr.MaterialBuffer, err = NewUploadBuffer[metadata.MaterialData](device, fmt.Sprintf("frame%d.material", index), counts.Materials, false); err != nil {
		fr.Destroy()
		return nil, err
	}
	if fr.InstanceBuffer, err = NewUploadBuffer[metadata.InstanceData](device, fmt.Sprintf("frame%d.instance", index), fr.passes*counts.Instances, false); err != nil {
		fr.Destroy()
		return nil, err
	}
	return fr, nil
}

// InstanceRegion returns the first instance buffer element owned by pass.
func (fr *FrameResource) InstanceRegion(pass int) (int, error) {
	if pass < 0 || pass >= fr.passes {
		return 0, fmt.Errorf("%w: pass %d of %d", core.ErrOutOfRange, pass, fr.passes)
	}
	return pass * fr.instancesPerPass, nil
}

func (fr *FrameResource) Destroy() {
	if fr.InstanceBuffer != nil {
		fr.InstanceBuffer.Destroy()
	}
	if fr.MaterialBuffer != nil {
		fr.MaterialBuffer.Destroy()
	}
	if fr.ObjectCB != nil {
		fr.ObjectCB.Destroy()
	}
	if fr.PassCB != nil {
		fr.PassCB.Destroy()
	}
	if fr.Allocator != nil {
		fr.Allocator.Destroy()
		fr.Allocator = nil
	}
}

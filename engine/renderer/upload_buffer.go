package renderer

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// GPUData is a value with a fixed GPU layout.
type GPUData interface {
	Size() uint64
	Marshal() []byte
}

// UploadBuffer is a persistently mapped upload heap array of T. Constant
// buffers pad each element to 256 bytes; structured buffers are packed.
type UploadBuffer[T GPUData] struct {
	resource    Resource
	mapped      []byte
	elementSize uint64
	count       int
}

func NewUploadBuffer[T GPUData](device Device, name string, count int, isConstantBuffer bool) (*UploadBuffer[T], error) {
	var zero T
	elementSize := zero.Size()
	if isConstantBuffer {
		elementSize = metadata.CalcConstantBufferByteSize(elementSize)
	}
	if count < 1 {
		count = 1
	}

	res, err := device.CreateCommittedResource(
		metadata.BufferDesc(name, metadata.HeapTypeUpload, elementSize*uint64(count)),
		metadata.ResourceStateGenericRead,
	)
	if err != nil {
		err = fmt.Errorf("%w: upload buffer %s: %v", core.ErrResourceCreation, name, err)
		core.LogError(err.Error())
		return nil, err
	}
	mapped, err := res.Map()
	if err != nil {
		res.Destroy()
		return nil, fmt.Errorf("%w: map %s: %v", core.ErrResourceCreation, name, err)
	}

	return &UploadBuffer[T]{
		resource:    res,
		mapped:      mapped,
		elementSize: elementSize,
		count:       count,
	}, nil
}

// CopyData writes v into element index.
func (ub *UploadBuffer[T]) CopyData(index int, v T) error {
	if index < 0 || index >= ub.count {
		return fmt.Errorf("%w: element %d of %d in %s", core.ErrOutOfRange, index, ub.count, ub.resource.Name())
	}
	off := uint64(index) * ub.elementSize
	copy(ub.mapped[off:off+ub.elementSize], v.Marshal())
	return nil
}

// Element returns the bytes of element index.
func (ub *UploadBuffer[T]) Element(index int) []byte {
	off := uint64(index) * ub.elementSize
	return ub.mapped[off : off+ub.elementSize]
}

func (ub *UploadBuffer[T]) Resource() Resource {
	return ub.resource
}

func (ub *UploadBuffer[T]) ElementSize() uint64 {
	return ub.elementSize
}

func (ub *UploadBuffer[T]) Count() int {
	return ub.count
}

// Offset is the byte offset of element index, used for root views.
func (ub *UploadBuffer[T]) Offset(index int) uint64 {
	return uint64(index) * ub.elementSize
}

func (ub *UploadBuffer[T]) Destroy() {
	if ub.resource != nil {
		ub.resource.Destroy()
		ub.resource = nil
		ub.mapped = nil
	}
}

package metadata

import "fmt"

type ResourceType int

/** @brief Asset types known to the asset manager. */
const (
	/** @brief Not an asset. */
	ResourceTypeNone ResourceType = iota
	/** @brief Engine configuration (TOML). */
	ResourceTypeConfig
	/** @brief Plain text mesh (vertex and triangle lists). */
	ResourceTypeMesh
	/** @brief Custom resource type. Used by loaders outside the core engine. */
	ResourceTypeCustom
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeConfig:
		return "config"
	case ResourceTypeMesh:
		return "mesh"
	case ResourceTypeCustom:
		return "custom"
	}
	return "none"
}

/**
 * @brief A generic structure for a loaded asset. All asset loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The type of the loaded asset. */
	Type ResourceType
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the source file in bytes. */
	DataSize uint64
	/** @brief The decoded data, *core.Config or *MeshData. */
	Data interface{}
}

/** @brief Where the memory of a GPU resource lives. */
type HeapType uint8

const (
	/** @brief GPU only. Filled by copies from upload heaps. */
	HeapTypeDefault HeapType = iota
	/** @brief CPU writable, GPU readable. Stays mapped for its lifetime. */
	HeapTypeUpload
	/** @brief GPU writable, CPU readable after the writing work is complete. */
	HeapTypeReadback
)

type ResourceDimension uint8

const (
	ResourceDimensionBuffer ResourceDimension = iota
	ResourceDimensionTexture2D
)

type Format uint8

const (
	FormatUnknown Format = iota
	FormatR8G8B8A8Unorm
	FormatR32G32B32A32Float
	FormatD24UnormS8Uint
)

/** @brief Bytes per texel as stored by the device. */
func (f Format) BytesPerPixel() uint64 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatD24UnormS8Uint:
		return 4
	case FormatR32G32B32A32Float:
		return 16
	}
	return 1
}

func (f Format) String() string {
	switch f {
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR32G32B32A32Float:
		return "R32G32B32A32_FLOAT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	}
	return "UNKNOWN"
}

type ResourceFlags uint8

const (
	ResourceFlagNone                 ResourceFlags = 0x0
	ResourceFlagAllowRenderTarget    ResourceFlags = 0x1
	ResourceFlagAllowDepthStencil    ResourceFlags = 0x2
	ResourceFlagAllowUnorderedAccess ResourceFlags = 0x4
)

/**
 * @brief Describes a buffer or a texture to create.
 */
type ResourceDesc struct {
	/** @brief Debug name. A generated one is used when empty. */
	Name      string
	Dimension ResourceDimension
	Heap      HeapType
	/** @brief Byte size for buffers, texel width for textures. */
	Width  uint64
	Height uint32
	/** @brief Array slices. Six for a cube map. */
	ArraySize uint16
	Format    Format
	Flags     ResourceFlags
}

// BufferDesc describes a buffer of size bytes on the given heap.
func BufferDesc(name string, heap HeapType, size uint64) ResourceDesc {
	return ResourceDesc{
		Name:      name,
		Dimension: ResourceDimensionBuffer,
		Heap:      heap,
		Width:     size,
		Height:    1,
		ArraySize: 1,
	}
}

// Texture2DDesc describes a default heap texture.
func Texture2DDesc(name string, width, height uint32, arraySize uint16, format Format, flags ResourceFlags) ResourceDesc {
	return ResourceDesc{
		Name:      name,
		Dimension: ResourceDimensionTexture2D,
		Heap:      HeapTypeDefault,
		Width:     uint64(width),
		Height:    height,
		ArraySize: arraySize,
		Format:    format,
		Flags:     flags,
	}
}

// ByteSize is the memory the resource occupies.
func (d ResourceDesc) ByteSize() uint64 {
	if d.Dimension == ResourceDimensionBuffer {
		return d.Width
	}
	slices := uint64(d.ArraySize)
	if slices == 0 {
		slices = 1
	}
	return d.Width * uint64(d.Height) * slices * d.Format.BytesPerPixel()
}

// SliceSize is the byte size of one array slice of a texture.
func (d ResourceDesc) SliceSize() uint64 {
	if d.Dimension == ResourceDimensionBuffer {
		return d.Width
	}
	return d.Width * uint64(d.Height) * d.Format.BytesPerPixel()
}

func (d ResourceDesc) String() string {
	if d.Dimension == ResourceDimensionBuffer {
		return fmt.Sprintf("buffer %q (%d bytes)", d.Name, d.Width)
	}
	return fmt.Sprintf("texture %q (%dx%dx%d)", d.Name, d.Width, d.Height, d.ArraySize)
}

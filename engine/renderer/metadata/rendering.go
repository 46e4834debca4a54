package metadata

/** @brief The usage state of a GPU resource. Barriers move resources between states. */
type ResourceState uint16

const (
	/** @brief Common state. Identical to the present state of a back buffer. */
	ResourceStateCommon ResourceState = iota
	ResourceStateRenderTarget
	ResourceStateDepthWrite
	/** @brief Read by shaders and as vertex/index/constant data. Upload heaps live here. */
	ResourceStateGenericRead
	ResourceStateCopySource
	ResourceStateCopyDest
	ResourceStateUnorderedAccess
	ResourceStatePixelShaderResource
)

const ResourceStatePresent = ResourceStateCommon

func (s ResourceState) String() string {
	switch s {
	case ResourceStateCommon:
		return "COMMON"
	case ResourceStateRenderTarget:
		return "RENDER_TARGET"
	case ResourceStateDepthWrite:
		return "DEPTH_WRITE"
	case ResourceStateGenericRead:
		return "GENERIC_READ"
	case ResourceStateCopySource:
		return "COPY_SOURCE"
	case ResourceStateCopyDest:
		return "COPY_DEST"
	case ResourceStateUnorderedAccess:
		return "UNORDERED_ACCESS"
	case ResourceStatePixelShaderResource:
		return "PIXEL_SHADER_RESOURCE"
	}
	return "UNKNOWN"
}

type Viewport struct {
	TopLeftX float32
	TopLeftY float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

type ScissorRect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// NewViewport covers a width x height target with the full depth range.
func NewViewport(width, height uint32) Viewport {
	return Viewport{Width: float32(width), Height: float32(height), MinDepth: 0, MaxDepth: 1}
}

func NewScissorRect(width, height uint32) ScissorRect {
	return ScissorRect{Right: int32(width), Bottom: int32(height)}
}

package views

import (
	"encoding/binary"
	"fmt"
	stdmath "math"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

const (
	MaxBlurRadius = 5
	// the kernels read and write four float32 channels
	BlurMapFormat = metadata.FormatR32G32B32A32Float
	// pixels covered by one thread group of either pass
	blurGroupSize = 256

	PipelineHorzBlur  = "horzBlur"
	PipelineVertBlur  = "vertBlur"
	RootSignatureBlur = "blur"
)

// Root parameters of the blur root signature.
const (
	blurSlotConstants uint32 = iota
	blurSlotInput
	blurSlotOutput
)

// GaussWeights returns the 2r+1 normalized weights of a gaussian with the
// given sigma, where r = ceil(2*sigma).
func GaussWeights(sigma float32) ([]float32, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("%w: sigma must be positive, got %g", core.ErrBlurRadius, sigma)
	}
	twoSigma2 := 2.0 * sigma * sigma
	radius := int(math32.Ceil(2.0 * sigma))
	if radius > MaxBlurRadius {
		return nil, fmt.Errorf("%w: sigma %g needs radius %d, max is %d", core.ErrBlurRadius, sigma, radius, MaxBlurRadius)
	}

	weights := make([]float32, 2*radius+1)
	var sum float32
	for i := -radius; i <= radius; i++ {
		x := float32(i)
		weights[i+radius] = math32.Exp(-x * x / twoSigma2)
		sum += weights[i+radius]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, nil
}

/**
 * @brief Separable gaussian blur run as two compute passes that ping-pong
 * between two textures the size of the input.
 */
type BlurFilter struct {
	device   renderer.Device
	width    uint32
	height   uint32
	format   metadata.Format
	blurMap0 renderer.Resource
	blurMap1 renderer.Resource

	horzPipeline  metadata.PipelineHandle
	vertPipeline  metadata.PipelineHandle
	rootSignature metadata.RootSignatureHandle

	weights []float32
}

func NewBlurFilter(device renderer.Device, catalog *metadata.PipelineCatalog, width, height uint32, format metadata.Format, sigma float32) (*BlurFilter, error) {
	if format != BlurMapFormat {
		err := fmt.Errorf("%w: blur maps are %v, got %v", core.ErrInvalidConfig, BlurMapFormat, format)
		core.LogError(err.Error())
		return nil, err
	}
	weights, err := GaussWeights(sigma)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	bf := &BlurFilter{
		device:        device,
		width:         width,
		height:        height,
		format:        format,
		horzPipeline:  catalog.RegisterPipeline(PipelineHorzBlur),
		vertPipeline:  catalog.RegisterPipeline(PipelineVertBlur),
		rootSignature: catalog.RegisterRootSignature(RootSignatureBlur),
		weights:       weights,
	}
	if err := bf.buildResources(); err != nil {
		return nil, err
	}
	if reg, ok := device.(renderer.KernelRegistry); ok {
		reg.RegisterKernel(bf.horzPipeline, BlurKernel(true))
		reg.RegisterKernel(bf.vertPipeline, BlurKernel(false))
	}
	return bf, nil
}

func (bf *BlurFilter) buildResources() error {
	var err error
	desc := metadata.Texture2DDesc("blurMap0", bf.width, bf.height, 1, bf.format, metadata.ResourceFlagAllowUnorderedAccess)
	if bf.blurMap0, err = bf.device.CreateCommittedResource(desc, metadata.ResourceStateCommon); err != nil {
		return fmt.Errorf("%w: blurMap0: %v", core.ErrResourceCreation, err)
	}
	desc.Name = "blurMap1"
	if bf.blurMap1, err = bf.device.CreateCommittedResource(desc, metadata.ResourceStateCommon); err != nil {
		bf.blurMap0.Destroy()
		bf.blurMap0 = nil
		return fmt.Errorf("%w: blurMap1: %v", core.ErrResourceCreation, err)
	}
	return nil
}

// Output is the blurred image, GENERIC_READ after Execute.
func (bf *BlurFilter) Output() renderer.Resource {
	return bf.blurMap0
}

func (bf *BlurFilter) Weights() []float32 {
	return bf.weights
}

// SetSigma swaps the weights used by the next Execute.
func (bf *BlurFilter) SetSigma(sigma float32) error {
	weights, err := GaussWeights(sigma)
	if err != nil {
		return err
	}
	bf.weights = weights
	return nil
}

/**
 * @brief Records blurCount horizontal plus vertical iterations over input.
 * input must be tracked by rec. Call Finish once the output was consumed.
 */
func (bf *BlurFilter) Execute(rec *renderer.CommandRecorder, input renderer.Resource, blurCount int) error {
	list := rec.List()
	rec.Track(bf.blurMap0, metadata.ResourceStateCommon)
	rec.Track(bf.blurMap1, metadata.ResourceStateCommon)

	constants := make([]uint32, 0, len(bf.weights)+1)
	constants = append(constants, uint32(len(bf.weights)/2))
	for _, w := range bf.weights {
		constants = append(constants, stdmath.Float32bits(w))
	}
	list.SetComputeRootSignature(bf.rootSignature)
	list.SetComputeRoot32BitConstants(blurSlotConstants, constants)

	if err := rec.Transition(input, metadata.ResourceStateCopySource); err != nil {
		return err
	}
	if err := rec.Transition(bf.blurMap0, metadata.ResourceStateCopyDest); err != nil {
		return err
	}
	// Copy the input to blurMap0.
	list.CopyResource(bf.blurMap0, input)
	if err := rec.Transition(bf.blurMap0, metadata.ResourceStateGenericRead); err != nil {
		return err
	}
	if err := rec.Transition(bf.blurMap1, metadata.ResourceStateUnorderedAccess); err != nil {
		return err
	}

	groupsX := (bf.width + blurGroupSize - 1) / blurGroupSize
	groupsY := (bf.height + blurGroupSize - 1) / blurGroupSize
	for i := 0; i < blurCount; i++ {
		// horizontal
		list.SetPipelineState(bf.horzPipeline)
		list.SetComputeRootView(blurSlotInput, bf.blurMap0)
		list.SetComputeRootView(blurSlotOutput, bf.blurMap1)
		list.Dispatch(groupsX, bf.height, 1)

		if err := rec.Transition(bf.blurMap0, metadata.ResourceStateUnorderedAccess); err != nil {
			return err
		}
		if err := rec.Transition(bf.blurMap1, metadata.ResourceStateGenericRead); err != nil {
			return err
		}

		// vertical
		list.SetPipelineState(bf.vertPipeline)
		list.SetComputeRootView(blurSlotInput, bf.blurMap1)
		list.SetComputeRootView(blurSlotOutput, bf.blurMap0)
		list.Dispatch(bf.width, groupsY, 1)

		if err := rec.Transition(bf.blurMap0, metadata.ResourceStateGenericRead); err != nil {
			return err
		}
		if err := rec.Transition(bf.blurMap1, metadata.ResourceStateUnorderedAccess); err != nil {
			return err
		}
	}
	return nil
}

// Finish hands both maps back in COMMON.
func (bf *BlurFilter) Finish(rec *renderer.CommandRecorder) error {
	return rec.TransitionAll(metadata.ResourceStateCommon, bf.blurMap0, bf.blurMap1)
}

// OnResize rebuilds the maps. The GPU must be done with the old ones.
func (bf *BlurFilter) OnResize(width, height uint32) error {
	if width == bf.width && height == bf.height {
		return nil
	}
	bf.Destroy()
	bf.width, bf.height = width, height
	return bf.buildResources()
}

func (bf *BlurFilter) Destroy() {
	if bf.blurMap0 != nil {
		bf.blurMap0.Destroy()
		bf.blurMap0 = nil
	}
	if bf.blurMap1 != nil {
		bf.blurMap1.Destroy()
		bf.blurMap1 = nil
	}
}

// BlurKernel is the CPU version of one blur pass over RGBA float32 texels.
// Samples past the image edge are clamped to the border.
func BlurKernel(horizontal bool) renderer.ComputeKernel {
	return func(ctx *renderer.KernelContext) error {
		consts := ctx.Constants[blurSlotConstants]
		if len(consts) < 1 {
			return fmt.Errorf("blur constants are not bound")
		}
		radius := int(consts[0])
		if radius > MaxBlurRadius || len(consts) < 2*radius+2 {
			return fmt.Errorf("%w: blur radius %d with %d constants", core.ErrBlurRadius, radius, len(consts))
		}
		weights := make([]float32, 2*radius+1)
		for i := range weights {
			weights[i] = stdmath.Float32frombits(consts[i+1])
		}

		in, okIn := ctx.Views[blurSlotInput]
		out, okOut := ctx.Views[blurSlotOutput]
		if !okIn || !okOut {
			return fmt.Errorf("blur input or output is not bound")
		}
		if in.Desc.Format != BlurMapFormat || out.Desc.Format != BlurMapFormat {
			return fmt.Errorf("%w: blur maps are %v, got %v and %v", core.ErrInvalidConfig, BlurMapFormat, in.Desc.Format, out.Desc.Format)
		}
		w, h := int(in.Desc.Width), int(in.Desc.Height)
		if int(out.Desc.Width) != w || int(out.Desc.Height) != h {
			return fmt.Errorf("%w: blur maps differ in size", core.ErrOutOfRange)
		}

		xEnd, yEnd := int(ctx.ThreadGroups[0]), int(ctx.ThreadGroups[1])*blurGroupSize
		if horizontal {
			xEnd, yEnd = int(ctx.ThreadGroups[0])*blurGroupSize, int(ctx.ThreadGroups[1])
		}
		xEnd, yEnd = min(xEnd, w), min(yEnd, h)

		for y := 0; y < yEnd; y++ {
			for x := 0; x < xEnd; x++ {
				var sum [4]float32
				for k := -radius; k <= radius; k++ {
					sx, sy := x, y
					if horizontal {
						sx = min(max(x+k, 0), w-1)
					} else {
						sy = min(max(y+k, 0), h-1)
					}
					texel := readTexel(in.Data, (sy*w+sx)*16)
					for c := range sum {
						sum[c] += weights[k+radius] * texel[c]
					}
				}
				writeTexel(out.Data, (y*w+x)*16, sum)
			}
		}
		return nil
	}
}

func readTexel(data []byte, offset int) [4]float32 {
	var t [4]float32
	for c := range t {
		t[c] = stdmath.Float32frombits(binary.LittleEndian.Uint32(data[offset+4*c:]))
	}
	return t
}

func writeTexel(data []byte, offset int, t [4]float32) {
	for c := range t {
		binary.LittleEndian.PutUint32(data[offset+4*c:], stdmath.Float32bits(t[c]))
	}
}

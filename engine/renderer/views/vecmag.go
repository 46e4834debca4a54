package views

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	stdmath "math"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"golang.org/x/exp/rand"
)

const (
	NumVecMagElements = 64
	// threads per group of the length kernel
	vecMagGroupSize = 64

	PipelineVecLength      = "vecLength"
	RootSignatureVecLength = "vecLength"

	MinVecLength float32 = 1.0
	MaxVecLength float32 = 10.0
)

// Root parameters of the vector length root signature.
const (
	vecMagSlotInput uint32 = iota
	vecMagSlotOutput
)

// GenerateVectors returns n random vectors with lengths in [1, 10).
func GenerateVectors(seed uint64, n int) []math.Vec3 {
	r := rand.New(rand.NewSource(seed))
	data := make([]math.Vec3, n)
	for i := range data {
		data[i] = math.RandUnitVec3(r).MulScalar(math.RandF(r, MinVecLength, MaxVecLength))
	}
	return data
}

/**
 * @brief Computes the length of every input vector on the GPU and reads the
 * results back to the CPU.
 */
type VecMagDemo struct {
	renderer      *renderer.Renderer
	pipeline      metadata.PipelineHandle
	rootSignature metadata.RootSignatureHandle
	count         int

	input    renderer.Resource
	output   renderer.Resource
	readback renderer.Resource
	upload   renderer.Resource
}

func NewVecMagDemo(r *renderer.Renderer, catalog *metadata.PipelineCatalog, data []math.Vec3) (*VecMagDemo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no input vectors", core.ErrInvalidConfig)
	}
	d := &VecMagDemo{
		renderer:      r,
		pipeline:      catalog.RegisterPipeline(PipelineVecLength),
		rootSignature: catalog.RegisterRootSignature(RootSignatureVecLength),
		count:         len(data),
	}
	if reg, ok := r.Device().(renderer.KernelRegistry); ok {
		reg.RegisterKernel(d.pipeline, VecLengthKernel)
	}
	if err := d.buildBuffers(data); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *VecMagDemo) buildBuffers(data []math.Vec3) error {
	dev := d.renderer.Device()
	inputSize := uint64(len(data) * 12)
	outputSize := uint64(len(data) * 4)

	var err error
	if d.input, err = dev.CreateCommittedResource(metadata.BufferDesc("vecmag-input", metadata.HeapTypeDefault, inputSize), metadata.ResourceStateCommon); err != nil {
		return fmt.Errorf("%w: input buffer: %v", core.ErrResourceCreation, err)
	}
	if d.upload, err = dev.CreateCommittedResource(metadata.BufferDesc("vecmag-upload", metadata.HeapTypeUpload, inputSize), metadata.ResourceStateGenericRead); err != nil {
		return fmt.Errorf("%w: upload buffer: %v", core.ErrResourceCreation, err)
	}
	outDesc := metadata.BufferDesc("vecmag-output", metadata.HeapTypeDefault, outputSize)
	outDesc.Flags = metadata.ResourceFlagAllowUnorderedAccess
	if d.output, err = dev.CreateCommittedResource(outDesc, metadata.ResourceStateCommon); err != nil {
		return fmt.Errorf("%w: output buffer: %v", core.ErrResourceCreation, err)
	}
	if d.readback, err = dev.CreateCommittedResource(metadata.BufferDesc("vecmag-readback", metadata.HeapTypeReadback, outputSize), metadata.ResourceStateCopyDest); err != nil {
		return fmt.Errorf("%w: readback buffer: %v", core.ErrResourceCreation, err)
	}

	mapped, err := d.upload.Map()
	if err != nil {
		return err
	}
	for i, v := range data {
		binary.LittleEndian.PutUint32(mapped[i*12:], stdmath.Float32bits(v.X))
		binary.LittleEndian.PutUint32(mapped[i*12+4:], stdmath.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(mapped[i*12+8:], stdmath.Float32bits(v.Z))
	}
	return nil
}

// Run uploads the input, dispatches the kernel, copies the output to the
// readback buffer and waits for the GPU. It returns one length per input.
// The input stays in the upload buffer until Destroy, so Run may be repeated.
func (d *VecMagDemo) Run(ctx context.Context) ([]float32, error) {
	groups := uint32((d.count + vecMagGroupSize - 1) / vecMagGroupSize)
	fence, err := d.renderer.ExecuteImmediate(ctx, func(rec *renderer.CommandRecorder) error {
		list := rec.List()
		rec.TrackHandoff(d.input, metadata.ResourceStateCommon, metadata.ResourceStateGenericRead)
		rec.Track(d.output, metadata.ResourceStateCommon)

		if err := rec.Transition(d.input, metadata.ResourceStateCopyDest); err != nil {
			return err
		}
		list.CopyResource(d.input, d.upload)
		if err := rec.Transition(d.input, metadata.ResourceStateGenericRead); err != nil {
			return err
		}

		list.SetPipelineState(d.pipeline)
		list.SetComputeRootSignature(d.rootSignature)
		list.SetComputeRootView(vecMagSlotInput, d.input)
		list.SetComputeRootView(vecMagSlotOutput, d.output)
		list.Dispatch(groups, 1, 1)

		// Schedule to copy the data to the default buffer to the readback buffer.
		if err := rec.Transition(d.output, metadata.ResourceStateCopySource); err != nil {
			return err
		}
		list.CopyResource(d.readback, d.output)
		return rec.Transition(d.output, metadata.ResourceStateCommon)
	})
	if err != nil {
		core.LogError("vector length pass failed: %s", err.Error())
		return nil, err
	}

	// Wait for the work to finish.
	if err := d.renderer.Clock().WaitUntil(ctx, fence); err != nil {
		return nil, err
	}

	mapped, err := d.readback.Map()
	if err != nil {
		return nil, err
	}
	lengths := make([]float32, d.count)
	for i := range lengths {
		lengths[i] = stdmath.Float32frombits(binary.LittleEndian.Uint32(mapped[i*4:]))
	}
	return lengths, nil
}

func (d *VecMagDemo) Destroy() {
	for _, res := range []renderer.Resource{d.input, d.output, d.readback, d.upload} {
		if res != nil {
			res.Destroy()
		}
	}
	d.input, d.output, d.readback, d.upload = nil, nil, nil, nil
}

// VecLengthKernel writes the length of each float3 of the input view into
// the matching float of the output view.
func VecLengthKernel(ctx *renderer.KernelContext) error {
	in, okIn := ctx.Views[vecMagSlotInput]
	out, okOut := ctx.Views[vecMagSlotOutput]
	if !okIn || !okOut {
		return fmt.Errorf("vector length input or output is not bound")
	}
	n := min(len(in.Data)/12, len(out.Data)/4, int(ctx.ThreadGroups[0])*vecMagGroupSize)
	for i := 0; i < n; i++ {
		x := stdmath.Float32frombits(binary.LittleEndian.Uint32(in.Data[i*12:]))
		y := stdmath.Float32frombits(binary.LittleEndian.Uint32(in.Data[i*12+4:]))
		z := stdmath.Float32frombits(binary.LittleEndian.Uint32(in.Data[i*12+8:]))
		l := math32.Sqrt(x*x + y*y + z*z)
		binary.LittleEndian.PutUint32(out.Data[i*4:], stdmath.Float32bits(l))
	}
	return nil
}

// WriteResults writes one line per length: the value with six significant
// digits when it lies in [1, 10], otherwise "Length out of range".
func WriteResults(w io.Writer, lengths []float32) error {
	bw := bufio.NewWriter(w)
	for _, l := range lengths {
		if l >= MinVecLength && l <= MaxVecLength {
			bw.WriteString(strconv.FormatFloat(float64(l), 'g', 6, 32))
		} else {
			bw.WriteString("Length out of range")
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

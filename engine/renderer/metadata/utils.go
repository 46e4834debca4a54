package metadata

import (
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/framering/engine/math"
)

/** @brief Constant buffer views must start on and span multiples of this many bytes. */
const ConstantBufferAlignment uint64 = 256

func GetAligned(operand, granularity uint64) uint64 {
	val := (operand + (granularity - 1)) &^ (granularity - 1)
	return val
}

// CalcConstantBufferByteSize rounds size up to the next multiple of 256.
func CalcConstantBufferByteSize(size uint64) uint64 {
	return GetAligned(size, ConstantBufferAlignment)
}

func putFloat32(buf []byte, offset int, v float32) int {
	binary.LittleEndian.PutUint32(buf[offset:offset+4], stdmath.Float32bits(v))
	return offset + 4
}

func putUint32(buf []byte, offset int, v uint32) int {
	binary.LittleEndian.PutUint32(buf[offset:offset+4], v)
	return offset + 4
}

func putVec3(buf []byte, offset int, v math.Vec3) int {
	offset = putFloat32(buf, offset, v.X)
	offset = putFloat32(buf, offset, v.Y)
	return putFloat32(buf, offset, v.Z)
}

func putVec4(buf []byte, offset int, v math.Vec4) int {
	offset = putVec3(buf, offset, v.ToVec3())
	return putFloat32(buf, offset, v.W)
}

func putMat4(buf []byte, offset int, m math.Mat4) int {
	for _, f := range m.Data {
		offset = putFloat32(buf, offset, f)
	}
	return offset
}

func getFloat32(buf []byte, offset int) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(buf[offset : offset+4]))
}

func getMat4(buf []byte, offset int) math.Mat4 {
	var m math.Mat4
	for i := range m.Data {
		m.Data[i] = getFloat32(buf, offset+i*4)
	}
	return m
}

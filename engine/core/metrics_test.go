package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameStats(t *testing.T) {
	fs := NewFrameStats()
	for i := 0; i < int(AVG_COUNT); i++ {
		fs.Update(0.010)
	}
	assert.InDelta(t, 10.0, fs.FrameTime(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT), fs.TotalFrames())
	// 30 frames of 10ms are not a full second yet
	assert.Zero(t, fs.FPS())

	for i := 0; i < 70; i++ {
		fs.Update(0.010)
	}
	assert.InDelta(t, 100.0, fs.FPS(), 1e-6)
	assert.Contains(t, fs.String(), "fps: 100.0")
}

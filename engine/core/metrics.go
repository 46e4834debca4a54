package core

import "fmt"

const AVG_COUNT uint8 = 30

// FrameStats tracks frames per second and a rolling average of frame time.
type FrameStats struct {
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAVG              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64
}

func NewFrameStats() *FrameStats {
	return &FrameStats{}
}

// Update records one frame that took frameElapsedTime seconds.
func (fs *FrameStats) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	fs.msTimes[fs.frameAVGCounter] = frameMS
	if fs.frameAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += fs.msTimes[i]
		}
		fs.msAVG = sum / float64(AVG_COUNT)
	}
	fs.frameAVGCounter = (fs.frameAVGCounter + 1) % AVG_COUNT

	fs.frames++
	fs.totalFrames++
	fs.accumulatedFrameMS += frameMS
	if fs.accumulatedFrameMS >= 1000 {
		fs.fps = float64(fs.frames) * 1000.0 / fs.accumulatedFrameMS
		fs.accumulatedFrameMS = 0
		fs.frames = 0
	}
}

func (fs *FrameStats) FPS() float64 {
	return fs.fps
}

// FrameTime is the average milliseconds per frame over the last AVG_COUNT frames.
func (fs *FrameStats) FrameTime() float64 {
	return fs.msAVG
}

func (fs *FrameStats) TotalFrames() uint64 {
	return fs.totalFrames
}

func (fs *FrameStats) String() string {
	return fmt.Sprintf("fps: %.1f  mspf: %.3f", fs.fps, fs.msAVG)
}

// Package audio owns the output device and plays decoded clips on it.
package audio

import (
	"time"

	"github.com/gopxl/beep/v2"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// OutputFormat is the format every clip is resampled to before mixing.
var OutputFormat = beep.Format{
	SampleRate:  beep.SampleRate(SampleRate),
	NumChannels: Channels,
	Precision:   BitDepth / 8,
}

package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// resampleQuality is passed to beep.Resample when a clip's rate differs from
// the output rate.
const resampleQuality = 4

// Mixer combines every active playback into the device's output buffer. It
// is the part of a Session that does not need a device, so it can be driven
// directly by tests.
type Mixer struct {
	mu    sync.Mutex
	mixer beep.Mixer
	buf   [][2]float64

	tap     chan []int16
	pending []int16
}

// NewMixer returns an empty mixer. tapSize > 0 enables Frames.
func NewMixer(tapSize int) *Mixer {
	m := &Mixer{}
	if tapSize > 0 {
		m.tap = make(chan []int16, tapSize)
		m.pending = make([]int16, 0, FrameSamples)
	}
	return m
}

// Frames returns 20ms frames of everything rendered, or nil when the tap is
// disabled. Frames are dropped when the reader falls behind.
func (m *Mixer) Frames() <-chan []int16 {
	return m.tap
}

// Active returns the number of playbacks still streaming.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mixer.Len()
}

// Play starts src on the mixer at volume percent (nil keeps unity gain). The
// returned Playback closes src once it finishes or is stopped.
func (m *Mixer) Play(src beep.StreamSeekCloser, format beep.Format, volume *float64) *Playback {
	p := newPlayback(m, src)

	var s beep.Streamer = src
	if format.SampleRate != OutputFormat.SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, OutputFormat.SampleRate, s)
	}
	if volume != nil {
		s = volumeEffect(s, *volume)
	}
	p.ctrl = &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(p.finish))}

	m.mu.Lock()
	m.mixer.Add(p.ctrl)
	m.mu.Unlock()
	return p
}

// PlayBytes decodes data and plays it.
func (m *Mixer) PlayBytes(data []byte, volume *float64) (*Playback, error) {
	src, format, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return m.Play(src, format, volume), nil
}

// volumeEffect scales s linearly by percent/100.
func volumeEffect(s beep.Streamer, percent float64) beep.Streamer {
	if percent <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(percent / 100)}
}

// Render fills out with interleaved little-endian int16 frames.
func (m *Mixer) Render(out []byte) {
	frames := len(out) / (Channels * 2)
	if frames == 0 {
		return
	}

	m.mu.Lock()
	if cap(m.buf) < frames {
		m.buf = make([][2]float64, frames)
	}
	buf := m.buf[:frames]
	for i := range buf {
		buf[i] = [2]float64{}
	}
	n, _ := m.mixer.Stream(buf)
	for i := n; i < frames; i++ {
		buf[i] = [2]float64{}
	}

	for i, frame := range buf {
		l, r := toInt16(frame[0]), toInt16(frame[1])
		binary.LittleEndian.PutUint16(out[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(r))
		if m.tap != nil {
			m.pending = append(m.pending, l, r)
			if len(m.pending) == FrameSamples {
				m.emit()
			}
		}
	}
	m.mu.Unlock()
}

// emit hands a full pending frame to the tap. Must be called with mu held.
func (m *Mixer) emit() {
	frame := make([]int16, FrameSamples)
	copy(frame, m.pending)
	m.pending = m.pending[:0]
	select {
	case m.tap <- frame:
	default:
		// nobody is keeping up with the monitor feed
	}
}

// stop detaches a playback from the mixer.
func (m *Mixer) stop(p *Playback) {
	m.mu.Lock()
	if p.ctrl != nil {
		p.ctrl.Streamer = nil
	}
	m.mu.Unlock()
}

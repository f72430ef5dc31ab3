package audio

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

// Playback is one clip playing on the shared output.
type Playback struct {
	mixer *Mixer
	src   beep.StreamSeekCloser
	ctrl  *beep.Ctrl

	done     chan struct{}
	doneOnce sync.Once
}

func newPlayback(m *Mixer, src beep.StreamSeekCloser) *Playback {
	p := &Playback{
		mixer: m,
		src:   src,
		done:  make(chan struct{}),
	}
	go func() {
		<-p.done
		p.src.Close()
	}()
	return p
}

// Done is closed when the clip has played to its end or was stopped.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Stop cuts the clip short. It is safe to call more than once.
func (p *Playback) Stop() {
	p.mixer.stop(p)
	p.finish()
}

// finish runs from the mixer's render path at end of stream, so it only
// closes the channel.
func (p *Playback) finish() {
	p.doneOnce.Do(func() { close(p.done) })
}

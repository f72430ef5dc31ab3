// Package autodj runs the two playback loops: hourly music and looping
// rain ambiance.
package autodj

import (
	"context"
	"sync"
	"time"
)

// Fetcher downloads a whole track file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Clip is a track playing on the shared output.
type Clip interface {
	Done() <-chan struct{}
	Stop()
}

// Output decodes a track file and starts playing it.
type Output interface {
	Play(data []byte, volume *float64) (Clip, error)
}

// OutputFunc adapts a function to Output.
type OutputFunc func(data []byte, volume *float64) (Clip, error)

func (f OutputFunc) Play(data []byte, volume *float64) (Clip, error) {
	return f(data, volume)
}

// Switch reasons recorded in Status.
const (
	ReasonStart     = "start"
	ReasonBoundary  = "hour"
	ReasonFinished  = "finished"
	ReasonRepeating = "repeat"
)

// Status is a snapshot of what a loop is playing.
type Status struct {
	Stream string    `json:"stream"`
	URL    string    `json:"url,omitempty"`
	Slot   string    `json:"slot,omitempty"`
	Period string    `json:"period,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Plays  int       `json:"plays"`
	Since  time.Time `json:"since"`
}

// statusCell guards a loop's Status.
type statusCell struct {
	mu sync.RWMutex
	st Status
}

func (c *statusCell) get() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st
}

func (c *statusCell) update(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.st)
	c.mu.Unlock()
}

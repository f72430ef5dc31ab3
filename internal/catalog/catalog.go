// Package catalog builds fetch URLs for the remote track catalog.
package catalog

import (
	"strings"

	"github.com/satindergrewal/nookd/internal/timeslot"
)

const (
	DefaultOrigin    = "https://d17orwheorv96d.cloudfront.net"
	DefaultExtension = ".ogg"
)

// Catalog is a remote origin serving hourly music and rain loops.
type Catalog struct {
	Origin    string
	Extension string
}

// New returns a catalog rooted at origin. Empty arguments fall back to the
// defaults.
func New(origin, ext string) Catalog {
	if origin == "" {
		origin = DefaultOrigin
	}
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return Catalog{Origin: strings.TrimRight(origin, "/"), Extension: ext}
}

// TrackURL is the music file for game at the given hour slot.
func (c Catalog) TrackURL(g Game, slot timeslot.Slot) string {
	return c.Origin + "/" + g.String() + "/" + slot.String() + c.Extension
}

// RainURL is the ambiance loop for r. It has no hour component.
func (c Catalog) RainURL(r Rain) string {
	return c.Origin + "/rain/" + r.String() + c.Extension
}

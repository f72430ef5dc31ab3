package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownRain is returned by ParseRain for unrecognised moods.
var ErrUnknownRain = errors.New("catalog: unknown rain")

// Rain is the ambiance mood layered under the music.
type Rain int

const (
	NoRain Rain = iota
	NormalRain
	NoThunderRain
	GameRain
)

// String is the file name of the mood under the rain folder.
func (r Rain) String() string {
	switch r {
	case NormalRain:
		return "rain"
	case NoThunderRain:
		return "no-thunder-rain"
	case GameRain:
		return "game-rain"
	default:
		return "none"
	}
}

// rainNames maps command-line names to moods.
var rainNames = map[string]Rain{
	"none":       NoRain,
	"normal":     NormalRain,
	"no-thunder": NoThunderRain,
	"game":       GameRain,
}

// ParseRain parses a command-line rain name.
func ParseRain(s string) (Rain, error) {
	r, ok := rainNames[s]
	if !ok {
		return NoRain, fmt.Errorf("%w: %q", ErrUnknownRain, s)
	}
	return r, nil
}

// RainNames returns the accepted command-line names.
func RainNames() []string {
	return []string{"no-thunder", "normal", "none", "game"}
}

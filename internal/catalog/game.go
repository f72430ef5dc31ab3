package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownGame is returned by ParseGame for names outside the whitelist.
var ErrUnknownGame = errors.New("catalog: unknown game")

// Title is a base music catalog.
type Title string

const (
	PopulationGrowing Title = "population-growing"
	NewHorizons       Title = "new-horizons"
	WildWorld         Title = "wild-world"
	NewLeaf           Title = "new-leaf"
	PocketCamp        Title = "pocket-camp"
)

// Variant is a seasonal variation of a title. The zero value is the plain
// catalog.
type Variant string

const (
	NoVariant Variant = ""
	Cherry    Variant = "cherry"
	Rainy     Variant = "rainy"
	Snowy     Variant = "snowy"
)

// Game selects one music catalog folder.
type Game struct {
	Title   Title
	Variant Variant
}

// String is the catalog path fragment. PocketCamp has a single folder, so
// any variant attached to it is ignored.
func (g Game) String() string {
	if g.Title == PocketCamp || g.Variant == NoVariant {
		return string(g.Title)
	}
	return string(g.Title) + "-" + string(g.Variant)
}

// variants lists the legal variants per title. Pairs outside this table are
// never produced by ParseGame.
var variants = map[Title][]Variant{
	PopulationGrowing: {NoVariant, Cherry, Rainy, Snowy},
	NewHorizons:       {NoVariant, Rainy, Snowy},
	WildWorld:         {NoVariant, Rainy, Snowy},
	NewLeaf:           {NoVariant, Rainy, Snowy},
	PocketCamp:        {NoVariant},
}

var games = func() map[string]Game {
	m := make(map[string]Game)
	for title, vs := range variants {
		for _, v := range vs {
			g := Game{Title: title, Variant: v}
			m[g.String()] = g
		}
	}
	return m
}()

// ParseGame accepts only the exact serialized forms of the whitelist.
func ParseGame(s string) (Game, error) {
	g, ok := games[s]
	if !ok {
		return Game{}, fmt.Errorf("%w: %q", ErrUnknownGame, s)
	}
	return g, nil
}

// GameNames returns every valid game name, sorted.
func GameNames() []string {
	names := make([]string, 0, len(games))
	for name := range games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

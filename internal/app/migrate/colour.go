package migrate

import (
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

// FallbackColour is used whenever a legacy colour is missing or malformed.
const FallbackColour = "#FFFFFF"

// ValidColour reports whether s looks like #RRGGBB. Only the prefix and
// length are checked; the digits are not parsed.
func ValidColour(s string) bool {
	return len(s) == 7 && s[0] == '#'
}

// CollectColours returns the distinct valid colours in first-seen order,
// followed by FallbackColour when it was not already present.
func CollectColours(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if !ValidColour(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if !seen[FallbackColour] {
		out = append(out, FallbackColour)
	}
	return out
}

// Palette resolves colour strings to persisted palette rows.
type Palette struct {
	byColour map[string]target.Colour
	fallback target.Colour
}

// NewPalette indexes persisted colour rows. The rows must contain FallbackColour.
func NewPalette(rows []target.Colour) (*Palette, error) {
	p := &Palette{byColour: make(map[string]target.Colour, len(rows))}
	for _, r := range rows {
		p.byColour[r.Colour] = r
	}
	fb, ok := p.byColour[FallbackColour]
	if !ok {
		return nil, errMissingFallbackColour
	}
	p.fallback = fb
	return p, nil
}

// Resolve matches colour exactly, defaulting to the fallback row.
func (p *Palette) Resolve(colour string) translate.Resolution[target.Colour] {
	if ValidColour(colour) {
		if c, ok := p.byColour[colour]; ok {
			return translate.Resolution[target.Colour]{Value: c, Outcome: translate.Resolved}
		}
	}
	return translate.Resolution[target.Colour]{Value: p.fallback, Outcome: translate.Defaulted}
}

// Len returns the number of palette rows.
func (p *Palette) Len() int {
	return len(p.byColour)
}

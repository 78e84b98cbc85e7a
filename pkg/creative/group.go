package creative

import (
	"path/filepath"
	"regexp"
	"strings"
)

// CreativeGroup maps a base name (a filename stem minus its size token)
// to the assets representing its size variants. Built by validation;
// immutable once validated.
type CreativeGroup struct {
	// Base is the shared filename stem identifying the group.
	Base string
	// Assets holds the group's size variants in input order.
	Assets []*MediaAsset
}

// AssetForSize returns the group member matching the given size, or nil.
func (g *CreativeGroup) AssetForSize(size Size) *MediaAsset {
	for _, a := range g.Assets {
		if a.Size == size {
			return a
		}
	}
	return nil
}

// MissingSizes returns the required sizes the group lacks.
func (g *CreativeGroup) MissingSizes(required []Size) []Size {
	var missing []Size
	for _, size := range required {
		if g.AssetForSize(size) == nil {
			missing = append(missing, size)
		}
	}
	return missing
}

// AllUploaded reports whether every member asset has a remote handle.
func (g *CreativeGroup) AllUploaded() bool {
	for _, a := range g.Assets {
		if !a.Uploaded() {
			return false
		}
	}
	return true
}

var sizeOrRatioToken = regexp.MustCompile(`(?i)[_\-.](\d{3,4}[xX]\d{3,4}|1x1|16x9|9x16|sq|feed|land|wide|port|story)([_\-.]|$)`)

// GroupBase derives the grouping key for a filename: the stem with its
// size or ratio token removed, so the three size variants of one creative
// collapse to the same base.
func GroupBase(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	base := sizeOrRatioToken.ReplaceAllString(stem, "$2")
	base = strings.Trim(base, "_-.")
	if base == "" {
		return stem
	}
	return base
}

// GroupBySize partitions assets into groups keyed by their base name,
// preserving first-seen order of the bases.
func GroupBySize(assets []*MediaAsset) []*CreativeGroup {
	byBase := make(map[string]*CreativeGroup)
	var order []*CreativeGroup

	for _, a := range assets {
		base := GroupBase(a.Filename)
		g, ok := byBase[base]
		if !ok {
			g = &CreativeGroup{Base: base}
			byBase[base] = g
			order = append(order, g)
		}
		g.Assets = append(g.Assets, a)
	}

	return order
}

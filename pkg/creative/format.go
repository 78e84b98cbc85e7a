// Package creative defines the media data model, ad format rules, and the
// validation and naming logic that gates every network call.
package creative

import (
	"fmt"
	"regexp"
	"strings"
)

// Size is a pixel dimension pair.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// IsZero reports whether the size is unset.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// The three sizes the dynamic formats are built from.
var (
	SizeSquare    = Size{1080, 1080}
	SizeLandscape = Size{1920, 1080}
	SizePortrait  = Size{1080, 1920}
)

// Format identifies an ad format, which determines grouping and size rules.
type Format string

const (
	// FormatSingleVideo is one ad from one video, no size constraint.
	FormatSingleVideo Format = "single-video"
	// FormatDynamicSingleVideo requires complete three-size groups; each
	// complete group becomes one ad.
	FormatDynamicSingleVideo Format = "dynamic-single-video"
	// FormatDynamic1x1 takes up to ten square assets into one ad.
	FormatDynamic1x1 Format = "dynamic-1x1"
	// FormatDynamic16x9 takes up to ten landscape assets into one ad.
	FormatDynamic16x9 Format = "dynamic-16x9"
	// FormatDynamic9x16 takes up to ten portrait assets into one ad.
	FormatDynamic9x16 Format = "dynamic-9x16"
)

// MaxDynamicAssets is the per-ad asset ceiling for the single-size
// dynamic formats.
const MaxDynamicAssets = 10

// MaxTextsPerType is the network ceiling on primary texts and headlines
// per creative.
const MaxTextsPerType = 5

// ParseFormat parses a format name, accepting the flexible alias used in
// older submission files.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single-video", "single_video", "video":
		return FormatSingleVideo, nil
	case "dynamic-single-video", "flexible":
		return FormatDynamicSingleVideo, nil
	case "dynamic-1x1", "dynamic_1x1":
		return FormatDynamic1x1, nil
	case "dynamic-16x9", "dynamic_16x9":
		return FormatDynamic16x9, nil
	case "dynamic-9x16", "dynamic_9x16":
		return FormatDynamic9x16, nil
	default:
		return "", fmt.Errorf("unknown ad format %q", s)
	}
}

// GroupSizes returns the size set every group must contain, or nil when
// the format has no group constraint.
func (f Format) GroupSizes() []Size {
	if f == FormatDynamicSingleVideo {
		return []Size{SizeSquare, SizeLandscape, SizePortrait}
	}
	return nil
}

// SingleSize returns the exact size every asset must match, or a zero
// Size when the format is not single-size.
func (f Format) SingleSize() Size {
	switch f {
	case FormatDynamic1x1:
		return SizeSquare
	case FormatDynamic16x9:
		return SizeLandscape
	case FormatDynamic9x16:
		return SizePortrait
	default:
		return Size{}
	}
}

// NameSuffix returns the Korean orientation suffix appended to derived ad
// names for the single-size dynamic formats.
func (f Format) NameSuffix() string {
	switch f {
	case FormatDynamic1x1:
		return "정방"
	case FormatDynamic16x9:
		return "가로"
	case FormatDynamic9x16:
		return "세로"
	default:
		return ""
	}
}

var (
	dimensionToken = regexp.MustCompile(`(\d{3,4})[xX](\d{3,4})`)

	// Ratio aliases used in filenames when pixel dimensions are absent.
	squareToken    = regexp.MustCompile(`(?i)(?:^|[_\-.])(1x1|sq|feed)(?:[_\-.]|$)`)
	landscapeToken = regexp.MustCompile(`(?i)(?:^|[_\-.])(16x9|land|wide)(?:[_\-.]|$)`)
	portraitToken  = regexp.MustCompile(`(?i)(?:^|[_\-.])(9x16|port|story)(?:[_\-.]|$)`)
)

// InferSize extracts pixel dimensions from filename tokens such as
// 1080x1080 or 1920x1080, falling back to ratio aliases (1x1/sq/feed,
// 16x9/land/wide, 9x16/port/story). Returns a zero Size when nothing
// matches.
func InferSize(filename string) Size {
	for _, m := range dimensionToken.FindAllStringSubmatch(filename, -1) {
		w, h := atoiSafe(m[1]), atoiSafe(m[2])
		// 16x9 and 9x16 also match the dimension pattern; only accept
		// real pixel sizes here
		if w >= 100 && h >= 100 {
			return Size{w, h}
		}
	}

	switch {
	case landscapeToken.MatchString(filename):
		return SizeLandscape
	case portraitToken.MatchString(filename):
		return SizePortrait
	case squareToken.MatchString(filename):
		return SizeSquare
	}
	return Size{}
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

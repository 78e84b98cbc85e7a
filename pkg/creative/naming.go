package creative

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	videoNumberPattern = regexp.MustCompile(`(?i)video(\d+)`)
	gameNamePattern    = regexp.MustCompile(`(?i)video\d+_(.+?)_[a-z]{2}_\d+s_`)
	unsafeNameChars    = regexp.MustCompile(`[^0-9A-Za-z가-힣_\- ]+`)
)

// ExtractVideoNumber pulls the numeric identifier out of a
// video<N>-style filename. Returns -1 when the filename carries none.
func ExtractVideoNumber(filename string) int {
	m := videoNumberPattern.FindStringSubmatch(filename)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

// RangesLabel compresses video numbers into the label used in derived ad
// names. Consecutive numbers collapse into a hyphenated run; the longest
// run (ties broken by smaller start) is placed last, the remaining runs
// come first ordered by start descending. Numbers 481, 483..489 yield
// "video481, video483-489".
func RangesLabel(numbers []int) string {
	if len(numbers) == 0 {
		return ""
	}

	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)

	// Collapse duplicates
	uniq := sorted[:1]
	for _, n := range sorted[1:] {
		if n != uniq[len(uniq)-1] {
			uniq = append(uniq, n)
		}
	}

	type run struct{ start, end int }
	var runs []run
	current := run{uniq[0], uniq[0]}
	for _, n := range uniq[1:] {
		if n == current.end+1 {
			current.end = n
			continue
		}
		runs = append(runs, current)
		current = run{n, n}
	}
	runs = append(runs, current)

	// The longest run closes the label; ties go to the smaller start.
	longest := 0
	for i, r := range runs {
		li, ll := r.end-r.start, runs[longest].end-runs[longest].start
		if li > ll || (li == ll && r.start < runs[longest].start) {
			longest = i
		}
	}
	last := runs[longest]
	rest := append(append([]run(nil), runs[:longest]...), runs[longest+1:]...)
	sort.Slice(rest, func(i, j int) bool { return rest[i].start > rest[j].start })

	label := func(r run) string {
		if r.start == r.end {
			return fmt.Sprintf("video%d", r.start)
		}
		return fmt.Sprintf("video%d-%d", r.start, r.end)
	}

	parts := make([]string, 0, len(runs))
	for _, r := range rest {
		parts = append(parts, label(r))
	}
	parts = append(parts, label(last))
	return strings.Join(parts, ", ")
}

// ExtractGameName derives the game name from filenames of the
// video<N>_<game>_<lang>_<len>s_ shape. The most common match across the
// batch wins; the fallback is returned sanitized when no filename
// matches.
func ExtractGameName(filenames []string, fallback string) string {
	counts := make(map[string]int)
	var order []string
	for _, f := range filenames {
		m := gameNamePattern.FindStringSubmatch(f)
		if m == nil {
			continue
		}
		name := m[1]
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}

	best := ""
	for _, name := range order {
		if best == "" || counts[name] > counts[best] {
			best = name
		}
	}
	if best != "" {
		return SanitizeName(best)
	}
	return SanitizeName(fallback)
}

// SanitizeName strips characters the ad networks reject from name parts.
func SanitizeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "")
	return strings.Trim(s, "_- ")
}

// NamingContext carries the caller-supplied naming settings for one job.
type NamingContext struct {
	// ExplicitName, when set, is used verbatim and derivation is skipped.
	ExplicitName string
	// GameName is the fallback when no filename encodes one.
	GameName string
	// Prefix and Suffix augment the derived name.
	Prefix string
	Suffix string
}

// DeriveName computes the ad name for a set of assets under a format:
// <numeric-ranges>_<gamename>_<orientation-suffix>, with the context's
// prefix/suffix applied around it. An explicit name wins outright.
func DeriveName(assets []*MediaAsset, format Format, nc NamingContext) string {
	if nc.ExplicitName != "" {
		return nc.ExplicitName
	}

	var numbers []int
	filenames := make([]string, 0, len(assets))
	for _, a := range assets {
		filenames = append(filenames, a.Filename)
		if n := ExtractVideoNumber(a.Filename); n >= 0 {
			numbers = append(numbers, n)
		}
	}

	parts := make([]string, 0, 3)
	if label := RangesLabel(numbers); label != "" {
		parts = append(parts, label)
	}
	if game := ExtractGameName(filenames, nc.GameName); game != "" {
		parts = append(parts, game)
	}
	if suffix := format.NameSuffix(); suffix != "" {
		parts = append(parts, suffix)
	}

	name := strings.Join(parts, "_")
	if nc.Prefix != "" {
		name = nc.Prefix + "_" + name
	}
	if nc.Suffix != "" {
		name = name + "_" + nc.Suffix
	}
	return name
}

// GroupName derives the name for one complete dynamic-single-video
// group, which keeps its base name rather than a range label.
func GroupName(g *CreativeGroup, nc NamingContext) string {
	if nc.ExplicitName != "" {
		return nc.ExplicitName
	}
	name := g.Base
	if nc.Prefix != "" {
		name = nc.Prefix + "_" + name
	}
	if nc.Suffix != "" {
		name = name + "_" + nc.Suffix
	}
	return name
}

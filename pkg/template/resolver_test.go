package template

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercrema/adforge/pkg/platform/core"
)

type fakeSource struct {
	summaries []core.CreativeSummary
	err       error
	calls     int
}

func (f *fakeSource) QueryActiveCreatives(ctx context.Context, destinationID string) ([]core.CreativeSummary, error) {
	f.calls++
	return f.summaries, f.err
}

func sequencedSummaries(n int) []core.CreativeSummary {
	var out []core.CreativeSummary
	for i := 1; i <= n; i++ {
		out = append(out, core.CreativeSummary{
			ID:           fmt.Sprintf("cr%d", i),
			Name:         fmt.Sprintf("video%d_puzzlequest_정방", i),
			CreatedAt:    time.Date(2026, 1, i, 0, 0, 0, 0, time.UTC),
			PrimaryTexts: []string{fmt.Sprintf("text of ad %d", i)},
			Headlines:    []string{fmt.Sprintf("headline %d", i)},
			CTA:          "INSTALL_MOBILE_APP",
			StoreURL:     fmt.Sprintf("https://play.example.com/ad%d", i),
		})
	}
	return out
}

func TestResolvePicksHighestSequence(t *testing.T) {
	source := &fakeSource{summaries: sequencedSummaries(5)}
	resolver := NewResolver(time.Minute)

	dest := core.Destination{ID: "adset1", StoreURL: "https://play.example.com/canonical"}
	defaults, err := resolver.Resolve(context.Background(), source, "meta", dest, core.ModeMarketer, false)
	require.NoError(t, err)

	// Ad #5's texts, but the destination-level store URL
	assert.Equal(t, []string{"text of ad 5"}, defaults.PrimaryTexts)
	assert.Equal(t, []string{"headline 5"}, defaults.Headlines)
	assert.Equal(t, "INSTALL_MOBILE_APP", defaults.CTA)
	assert.Equal(t, "https://play.example.com/canonical", defaults.StoreURL)
	assert.Equal(t, 5, defaults.Sequence)
}

func TestResolveFallsBackToInheritedStoreURL(t *testing.T) {
	source := &fakeSource{summaries: sequencedSummaries(3)}
	resolver := NewResolver(time.Minute)

	defaults, err := resolver.Resolve(context.Background(), source, "meta",
		core.Destination{ID: "adset1"}, core.ModeMarketer, false)
	require.NoError(t, err)
	assert.Equal(t, "https://play.example.com/ad3", defaults.StoreURL)
}

func TestResolveSequenceTieBreaksByCreatedTime(t *testing.T) {
	older := core.CreativeSummary{
		Name:         "video7_puzzlequest",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PrimaryTexts: []string{"older"},
	}
	newer := core.CreativeSummary{
		Name:         "video7_puzzlequest_rerun",
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PrimaryTexts: []string{"newer"},
	}
	source := &fakeSource{summaries: []core.CreativeSummary{older, newer}}
	resolver := NewResolver(time.Minute)

	defaults, err := resolver.Resolve(context.Background(), source, "meta",
		core.Destination{ID: "adset1"}, core.ModeMarketer, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer"}, defaults.PrimaryTexts)
}

func TestResolveFiltersPlaceholderHeadline(t *testing.T) {
	source := &fakeSource{summaries: []core.CreativeSummary{{
		Name:      "video1_puzzlequest",
		Headlines: []string{"New Game", "real headline"},
	}}}
	resolver := NewResolver(time.Minute)

	defaults, err := resolver.Resolve(context.Background(), source, "meta",
		core.Destination{ID: "adset1"}, core.ModeMarketer, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"real headline"}, defaults.Headlines)
}

func TestResolveCachesUntilForcedOrInvalidated(t *testing.T) {
	source := &fakeSource{summaries: sequencedSummaries(2)}
	resolver := NewResolver(time.Minute)
	dest := core.Destination{ID: "adset1"}

	_, err := resolver.Resolve(context.Background(), source, "meta", dest, core.ModeMarketer, false)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), source, "meta", dest, core.ModeMarketer, false)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)

	_, err = resolver.Resolve(context.Background(), source, "meta", dest, core.ModeMarketer, true)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	resolver.Invalidate("meta", dest.ID, core.ModeMarketer)
	_, err = resolver.Resolve(context.Background(), source, "meta", dest, core.ModeMarketer, false)
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

func TestResolveNoActiveCreatives(t *testing.T) {
	source := &fakeSource{}
	resolver := NewResolver(time.Minute)

	_, err := resolver.Resolve(context.Background(), source, "meta",
		core.Destination{ID: "adset1"}, core.ModeMarketer, false)
	require.Error(t, err)
}

func TestSanitizeStoreURL(t *testing.T) {
	assert.Equal(t, "https://play.example.com/app",
		SanitizeStoreURL("https://play.example.com/app?utm_source=fb&utm_campaign=x"))
	assert.Equal(t, "https://play.example.com/app?id=com.game",
		SanitizeStoreURL("https://play.example.com/app?id=com.game"))
	assert.Equal(t, "", SanitizeStoreURL("ftp://play.example.com/app"))
	assert.Equal(t, "", SanitizeStoreURL("not a url at all\x7f"))
	assert.Equal(t, "", SanitizeStoreURL(""))
}

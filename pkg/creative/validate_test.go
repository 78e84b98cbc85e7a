package creative

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercrema/adforge/pkg/errors"
)

func squareAsset(n int) *MediaAsset {
	return NewMediaAsset("local", "src",
		fmt.Sprintf("video%d_puzzlequest_en_30s_1080x1080.mp4", n), "")
}

func variantAssets(base string) []*MediaAsset {
	return []*MediaAsset{
		NewMediaAsset("local", "a", base+"_1080x1080.mp4", ""),
		NewMediaAsset("local", "b", base+"_1920x1080.mp4", ""),
		NewMediaAsset("local", "c", base+"_1080x1920.mp4", ""),
	}
}

func TestValidateDynamicSingleVideo(t *testing.T) {
	t.Run("complete groups each become one unit", func(t *testing.T) {
		assets := append(variantAssets("video1_puzzlequest_en_30s"), variantAssets("video2_puzzlequest_en_15s")...)

		result, err := Validate(FormatDynamicSingleVideo, assets, Texts{}, NamingContext{})
		require.NoError(t, err)
		require.Len(t, result.Units, 2)
		assert.Equal(t, "video1_puzzlequest_en_30s", result.Units[0].Name)
		assert.Equal(t, "video2_puzzlequest_en_15s", result.Units[1].Name)
	})

	t.Run("missing size fails naming the group", func(t *testing.T) {
		assets := variantAssets("video1_puzzlequest_en_30s")
		// Drop the portrait variant
		assets = assets[:2]

		_, err := Validate(FormatDynamicSingleVideo, assets, Texts{}, NamingContext{})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		assert.Contains(t, err.Error(), "video1_puzzlequest_en_30s")
		assert.Contains(t, err.Error(), "1080x1920")
	})

	t.Run("one incomplete group fails even when others are complete", func(t *testing.T) {
		assets := append(variantAssets("video1_puzzlequest_en_30s"), variantAssets("video2_puzzlequest_en_15s")[:2]...)

		_, err := Validate(FormatDynamicSingleVideo, assets, Texts{}, NamingContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "video2_puzzlequest_en_15s")
	})
}

func TestValidateDynamicSingleSize(t *testing.T) {
	t.Run("ten correctly sized assets pass", func(t *testing.T) {
		var assets []*MediaAsset
		for i := 1; i <= 10; i++ {
			assets = append(assets, squareAsset(i))
		}

		result, err := Validate(FormatDynamic1x1, assets, Texts{}, NamingContext{})
		require.NoError(t, err)
		require.Len(t, result.Units, 1)
		assert.Equal(t, "video1-10_puzzlequest_정방", result.Units[0].Name)
	})

	t.Run("eleven assets fail the count ceiling", func(t *testing.T) {
		var assets []*MediaAsset
		for i := 1; i <= 11; i++ {
			assets = append(assets, squareAsset(i))
		}

		_, err := Validate(FormatDynamic1x1, assets, Texts{}, NamingContext{})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		assert.Contains(t, err.Error(), "at most 10")
	})

	t.Run("wrong size fails naming the asset", func(t *testing.T) {
		assets := []*MediaAsset{
			squareAsset(1),
			NewMediaAsset("local", "src", "video2_puzzlequest_en_30s_1920x1080.mp4", ""),
		}

		_, err := Validate(FormatDynamic1x1, assets, Texts{}, NamingContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "video2_puzzlequest_en_30s_1920x1080.mp4")
	})

	t.Run("16x9 requires landscape", func(t *testing.T) {
		assets := []*MediaAsset{
			NewMediaAsset("local", "src", "video1_puzzlequest_en_30s_1920x1080.mp4", ""),
		}

		result, err := Validate(FormatDynamic16x9, assets, Texts{}, NamingContext{})
		require.NoError(t, err)
		assert.Equal(t, "video1_puzzlequest_가로", result.Units[0].Name)
	})
}

func TestValidateSingleVideo(t *testing.T) {
	t.Run("exactly one asset", func(t *testing.T) {
		result, err := Validate(FormatSingleVideo, []*MediaAsset{squareAsset(1)}, Texts{}, NamingContext{})
		require.NoError(t, err)
		require.Len(t, result.Units, 1)
	})

	t.Run("two assets rejected", func(t *testing.T) {
		_, err := Validate(FormatSingleVideo, []*MediaAsset{squareAsset(1), squareAsset(2)}, Texts{}, NamingContext{})
		require.Error(t, err)
	})
}

func TestValidateTruncatesTexts(t *testing.T) {
	texts := Texts{
		PrimaryTexts: []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"},
		Headlines:    []string{"h1", "h2", "h3", "h4", "h5", "h6"},
	}

	result, err := Validate(FormatSingleVideo, []*MediaAsset{squareAsset(1)}, texts, NamingContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, result.Texts.PrimaryTexts)
	assert.Equal(t, []string{"h1", "h2", "h3", "h4", "h5"}, result.Texts.Headlines)
}

func TestValidateEmptySubmission(t *testing.T) {
	_, err := Validate(FormatDynamic1x1, nil, Texts{}, NamingContext{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

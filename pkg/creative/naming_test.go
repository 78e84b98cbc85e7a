package creative

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangesLabel(t *testing.T) {
	tests := []struct {
		name    string
		numbers []int
		want    string
	}{
		{
			name:    "single number",
			numbers: []int{481},
			want:    "video481",
		},
		{
			name:    "one contiguous run",
			numbers: []int{483, 484, 485, 486, 487, 488, 489},
			want:    "video483-489",
		},
		{
			name:    "single before run",
			numbers: []int{481, 483, 484, 485, 486, 487, 488, 489},
			want:    "video481, video483-489",
		},
		{
			name:    "unsorted input",
			numbers: []int{489, 481, 485, 483, 487, 484, 488, 486},
			want:    "video481, video483-489",
		},
		{
			name:    "duplicates collapse",
			numbers: []int{481, 481, 483, 483, 484},
			want:    "video481, video483-484",
		},
		{
			name:    "equal-length runs keep the smaller start last",
			numbers: []int{1, 2, 3, 10, 11, 12},
			want:    "video10-12, video1-3",
		},
		{
			name:    "remaining runs ordered by start descending",
			numbers: []int{1, 2, 3, 4, 10, 11, 20},
			want:    "video20, video10-11, video1-4",
		},
		{
			name:    "empty",
			numbers: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RangesLabel(tt.numbers))
		})
	}
}

func TestExtractVideoNumber(t *testing.T) {
	assert.Equal(t, 481, ExtractVideoNumber("video481_puzzlequest_en_30s_1080x1080.mp4"))
	assert.Equal(t, 7, ExtractVideoNumber("Video7_other.mp4"))
	assert.Equal(t, -1, ExtractVideoNumber("intro_clip.mp4"))
}

func TestExtractGameName(t *testing.T) {
	t.Run("most common wins", func(t *testing.T) {
		files := []string{
			"video481_puzzlequest_en_30s_1080x1080.mp4",
			"video482_puzzlequest_en_15s_1920x1080.mp4",
			"video483_otherquest_en_30s_1080x1920.mp4",
		}
		assert.Equal(t, "puzzlequest", ExtractGameName(files, "fallback"))
	})

	t.Run("fallback when no filename matches", func(t *testing.T) {
		files := []string{"clip_one.mp4", "clip_two.mp4"}
		assert.Equal(t, "My Game", ExtractGameName(files, "My Game!"))
	})
}

func TestDeriveName(t *testing.T) {
	assets := []*MediaAsset{
		NewMediaAsset("local", "a", "video481_puzzlequest_en_30s_1080x1080.mp4", ""),
		NewMediaAsset("local", "b", "video483_puzzlequest_en_30s_1080x1080.mp4", ""),
		NewMediaAsset("local", "c", "video484_puzzlequest_en_30s_1080x1080.mp4", ""),
	}

	t.Run("ranges plus game plus orientation suffix", func(t *testing.T) {
		name := DeriveName(assets, FormatDynamic1x1, NamingContext{})
		assert.Equal(t, "video481, video483-484_puzzlequest_정방", name)
	})

	t.Run("landscape and portrait suffixes", func(t *testing.T) {
		assert.Equal(t, "가로", FormatDynamic16x9.NameSuffix())
		assert.Equal(t, "세로", FormatDynamic9x16.NameSuffix())
	})

	t.Run("explicit name wins", func(t *testing.T) {
		name := DeriveName(assets, FormatDynamic1x1, NamingContext{ExplicitName: "my ad"})
		assert.Equal(t, "my ad", name)
	})

	t.Run("prefix and suffix settings", func(t *testing.T) {
		name := DeriveName(assets[:1], FormatSingleVideo, NamingContext{Prefix: "kr", Suffix: "test"})
		assert.Equal(t, "kr_video481_puzzlequest_test", name)
	})
}

func TestInferSize(t *testing.T) {
	tests := []struct {
		filename string
		want     Size
	}{
		{"video1_game_en_30s_1080x1080.mp4", SizeSquare},
		{"video1_game_en_30s_1920x1080.mp4", SizeLandscape},
		{"video1_game_en_30s_1080x1920.mp4", SizePortrait},
		{"video1_game_wide.mp4", SizeLandscape},
		{"video1_game_story.mp4", SizePortrait},
		{"video1_game_sq.mp4", SizeSquare},
		{"video1_game.mp4", Size{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferSize(tt.filename), tt.filename)
	}
}

func TestGroupBase(t *testing.T) {
	assert.Equal(t,
		GroupBase("video481_puzzlequest_en_30s_1080x1080.mp4"),
		GroupBase("video481_puzzlequest_en_30s_1920x1080.mp4"))
	assert.Equal(t, "video481_puzzlequest_en_30s", GroupBase("video481_puzzlequest_en_30s_1080x1920.mp4"))
}

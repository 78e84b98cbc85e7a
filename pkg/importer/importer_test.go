package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercrema/adforge/pkg/clients"
	"github.com/supercrema/adforge/pkg/errors"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestImporter(t *testing.T) *Importer {
	t.Helper()
	return New(t.TempDir(), 4, clients.NoRetryPolicy(), NewLocalFetcher())
}

func TestImportIsolatesFailures(t *testing.T) {
	srcDir := t.TempDir()
	imp := newTestImporter(t)

	locations := []Location{
		{Scheme: "local", Ref: writeSource(t, srcDir, "video1_game_en_30s_1080x1080.mp4", "one")},
		{Scheme: "local", Ref: writeSource(t, srcDir, "video2_game_en_30s_1080x1080.mp4", "two")},
		{Scheme: "local", Ref: filepath.Join(srcDir, "missing.mp4")},
		{Scheme: "local", Ref: writeSource(t, srcDir, "video4_game_en_30s_1080x1080.mp4", "four")},
		{Scheme: "local", Ref: writeSource(t, srcDir, "video5_game_en_30s_1080x1080.mp4", "five")},
	}

	results := imp.Import(context.Background(), locations)
	require.Len(t, results, 5)

	// One typed failure, four successes, batch not aborted
	require.Error(t, results[2].Err)
	assert.True(t, errors.IsType(results[2].Err, errors.ErrorTypeNotFound))
	assert.Len(t, Assets(results), 4)
	assert.Len(t, Failures(results), 1)
}

func TestImportPreservesInputOrder(t *testing.T) {
	srcDir := t.TempDir()
	imp := newTestImporter(t)

	names := []string{"video3.mp4", "video1.mp4", "video2.mp4"}
	var locations []Location
	for _, n := range names {
		locations = append(locations, Location{Scheme: "local", Ref: writeSource(t, srcDir, n, n)})
	}

	results := imp.Import(context.Background(), locations)
	require.Len(t, results, 3)
	for i, n := range names {
		require.NoError(t, results[i].Err)
		assert.Equal(t, n, results[i].Asset.Filename)
		assert.Equal(t, i, results[i].Index)
	}
}

func TestImportDeduplicatesByContentHash(t *testing.T) {
	srcDir := t.TempDir()
	imp := newTestImporter(t)

	locations := []Location{
		{Scheme: "local", Ref: writeSource(t, srcDir, "video1.mp4", "same bytes")},
		{Scheme: "local", Ref: writeSource(t, srcDir, "video1_copy.mp4", "same bytes")},
		{Scheme: "local", Ref: writeSource(t, srcDir, "video2.mp4", "other bytes")},
	}

	results := imp.Import(context.Background(), locations)
	require.Len(t, results, 3)

	assert.False(t, results[0].Duplicate)
	assert.True(t, results[1].Duplicate)
	assert.Same(t, results[0].Asset, results[1].Asset)

	assert.Len(t, Assets(results), 2)
}

func TestImportComputesDigest(t *testing.T) {
	srcDir := t.TempDir()
	imp := newTestImporter(t)

	results := imp.Import(context.Background(), []Location{
		{Scheme: "local", Ref: writeSource(t, srcDir, "video1.mp4", "payload")},
	})
	require.NoError(t, results[0].Err)

	asset := results[0].Asset
	assert.Len(t, asset.Hash, 64)
	assert.Equal(t, int64(len("payload")), asset.Bytes)
	assert.FileExists(t, asset.Path)
}

func TestImportUnknownScheme(t *testing.T) {
	imp := newTestImporter(t)

	results := imp.Import(context.Background(), []Location{{Scheme: "ftp", Ref: "x"}})
	require.Error(t, results[0].Err)
	assert.True(t, errors.IsType(results[0].Err, errors.ErrorTypeConfig))
}

// listlessFetcher serves a scheme with no folder support.
type listlessFetcher struct{}

func (listlessFetcher) Scheme() string { return "flat" }
func (listlessFetcher) Fetch(ctx context.Context, loc Location, destDir string) (string, string, error) {
	return "", "", errors.New(errors.ErrorTypeInternal, "not used")
}

func TestExpandLocalFolder(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "video2_game_en_30s_1080x1080.mp4", "two")
	writeSource(t, srcDir, "video1_game_en_30s_1080x1080.mp4", "one")
	writeSource(t, srcDir, "notes.txt", "not a video")
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "nested"), 0o755))

	imp := newTestImporter(t)
	locations, err := imp.Expand(context.Background(), []Location{
		{Scheme: "local", Ref: srcDir, Folder: true},
	})
	require.NoError(t, err)

	// Videos only, ordered by filename; directories and other files skipped
	require.Len(t, locations, 2)
	assert.Equal(t, "video1_game_en_30s_1080x1080.mp4", locations[0].Name)
	assert.Equal(t, "video2_game_en_30s_1080x1080.mp4", locations[1].Name)
	assert.False(t, locations[0].Folder)
}

func TestExpandedFolderImports(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "video1_game_en_30s_1080x1080.mp4", "one")
	writeSource(t, srcDir, "video2_game_en_30s_1080x1080.mp4", "two")

	imp := newTestImporter(t)
	locations, err := imp.Expand(context.Background(), []Location{
		{Scheme: "local", Ref: srcDir, Folder: true},
	})
	require.NoError(t, err)

	results := imp.Import(context.Background(), locations)
	assert.Len(t, Assets(results), 2)
	assert.Empty(t, Failures(results))
}

func TestExpandPassesFilesThrough(t *testing.T) {
	srcDir := t.TempDir()
	file := writeSource(t, srcDir, "video1.mp4", "one")

	imp := newTestImporter(t)
	locations, err := imp.Expand(context.Background(), []Location{
		{Scheme: "local", Ref: file},
	})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, file, locations[0].Ref)
}

func TestExpandEmptyFolder(t *testing.T) {
	imp := newTestImporter(t)
	_, err := imp.Expand(context.Background(), []Location{
		{Scheme: "local", Ref: t.TempDir(), Folder: true},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestExpandSchemeWithoutListing(t *testing.T) {
	imp := newTestImporter(t)
	imp.Register(listlessFetcher{})

	_, err := imp.Expand(context.Background(), []Location{{Scheme: "flat", Ref: "x", Folder: true}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

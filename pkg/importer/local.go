package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/supercrema/adforge/pkg/errors"
)

// videoExtensions mirrors the video filter the remote listings apply
// through content type.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".avi": true,
}

func isVideoFilename(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// LocalFetcher stages files already present on disk, copying them into
// the stage directory so job cleanup never touches the caller's files.
// Also the source used by tests.
type LocalFetcher struct{}

// NewLocalFetcher creates a local-path fetcher.
func NewLocalFetcher() *LocalFetcher {
	return &LocalFetcher{}
}

// Scheme returns "local".
func (f *LocalFetcher) Scheme() string { return "local" }

// Fetch copies the file at loc.Ref into destDir.
func (f *LocalFetcher) Fetch(ctx context.Context, loc Location, destDir string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	src, err := os.Open(loc.Ref)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", errors.Wrap(err, errors.ErrorTypeNotFound, "source file not found")
		}
		return "", "", errors.Wrap(err, errors.ErrorTypeFile, "open source file")
	}
	defer src.Close()

	filename := loc.Name
	if filename == "" {
		filename = filepath.Base(loc.Ref)
	}

	path := stagedFilename(destDir, uuid.NewString(), filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeFile, "create staged file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeFile, "copy source file")
	}

	return path, filename, nil
}

// List expands a directory into locations for the video files directly
// inside it, ordered by filename.
func (f *LocalFetcher) List(ctx context.Context, loc Location) ([]Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(loc.Ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "source folder not found")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read source folder")
	}

	var locations []Location
	for _, entry := range entries {
		if entry.IsDir() || !isVideoFilename(entry.Name()) {
			continue
		}
		locations = append(locations, Location{
			Scheme: "local",
			Ref:    filepath.Join(loc.Ref, entry.Name()),
			Name:   entry.Name(),
		})
	}
	return locations, nil
}

package importer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/supercrema/adforge/pkg/errors"
)

// DriveFetcher imports media from Google Drive folders shared with the
// team's service account. Shared drives are supported.
type DriveFetcher struct {
	svc *drive.Service
}

// NewDriveFetcher creates a Drive fetcher authenticated with a service
// account key file.
func NewDriveFetcher(ctx context.Context, credentialsFile string) (*DriveFetcher, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "create drive service")
	}
	return &DriveFetcher{svc: svc}, nil
}

// NewDriveFetcherWithToken creates a Drive fetcher from a user OAuth
// access token instead of a service account key. Used when marketers
// grant access to their own Drive folders.
func NewDriveFetcherWithToken(ctx context.Context, accessToken string) (*DriveFetcher, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := drive.NewService(ctx,
		option.WithTokenSource(oauth2.ReuseTokenSource(nil, source)),
		option.WithScopes(drive.DriveReadonlyScope))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "create drive service")
	}
	return &DriveFetcher{svc: svc}, nil
}

// NewDriveFetcherWithService wraps an existing Drive service, used by
// tests pointing the service at a stub server.
func NewDriveFetcherWithService(svc *drive.Service) *DriveFetcher {
	return &DriveFetcher{svc: svc}
}

// Scheme returns "drive".
func (f *DriveFetcher) Scheme() string { return "drive" }

// Fetch downloads the Drive file identified by loc.Ref into destDir.
func (f *DriveFetcher) Fetch(ctx context.Context, loc Location, destDir string) (string, string, error) {
	filename := loc.Name
	if filename == "" {
		meta, err := f.svc.Files.Get(loc.Ref).
			SupportsAllDrives(true).
			Fields("name").
			Context(ctx).Do()
		if err != nil {
			return "", "", wrapDriveError(err, "get file metadata")
		}
		filename = meta.Name
	}

	resp, err := f.svc.Files.Get(loc.Ref).
		SupportsAllDrives(true).
		Context(ctx).Download()
	if err != nil {
		return "", "", wrapDriveError(err, "download file")
	}
	defer resp.Body.Close()

	path := stagedFilename(destDir, uuid.NewString(), filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeFile, "create staged file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeConnection, "read download stream")
	}

	return path, filename, nil
}

// List expands a folder location; loc.Ref is the Drive folder ID.
func (f *DriveFetcher) List(ctx context.Context, loc Location) ([]Location, error) {
	return f.ListFolder(ctx, loc.Ref)
}

// ListFolder pages through a Drive folder and returns locations for its
// video files, ordered by name so batch naming stays deterministic.
func (f *DriveFetcher) ListFolder(ctx context.Context, folderID string) ([]Location, error) {
	var locations []Location

	query := fmt.Sprintf("'%s' in parents and mimeType contains 'video/' and trashed = false", folderID)
	call := f.svc.Files.List().
		Q(query).
		OrderBy("name").
		PageSize(100).
		Fields("nextPageToken, files(id, name, size)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Context(ctx).Do()
		if err != nil {
			return nil, wrapDriveError(err, "list folder")
		}

		for _, file := range page.Files {
			locations = append(locations, Location{
				Scheme: "drive",
				Ref:    file.Id,
				Name:   file.Name,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return locations, nil
}

func wrapDriveError(err error, op string) error {
	// The Drive client already retries most transient statuses; what
	// escapes here is worth one more bounded round in the importer.
	return errors.Wrap(err, errors.ErrorTypeConnection, "drive: "+op)
}

package importer

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/supercrema/adforge/pkg/errors"
)

// GCSFetcher imports media from Google Cloud Storage. Locations use
// bucket/object refs.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher creates a GCS fetcher. An empty credentials file uses
// application default credentials.
func NewGCSFetcher(ctx context.Context, credentialsFile string) (*GCSFetcher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "create gcs client")
	}
	return &GCSFetcher{client: client}, nil
}

// NewGCSFetcherWithClient wraps an existing client, used by tests.
func NewGCSFetcherWithClient(client *storage.Client) *GCSFetcher {
	return &GCSFetcher{client: client}
}

// Scheme returns "gcs".
func (f *GCSFetcher) Scheme() string { return "gcs" }

// Fetch downloads the object at loc.Ref (bucket/object) into destDir.
func (f *GCSFetcher) Fetch(ctx context.Context, loc Location, destDir string) (string, string, error) {
	bucket, object, err := splitBucketRef(loc.Ref)
	if err != nil {
		return "", "", err
	}

	reader, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return "", "", errors.Wrap(err, errors.ErrorTypeNotFound, "gcs object not found")
		}
		return "", "", errors.Wrap(err, errors.ErrorTypeConnection, "open gcs object")
	}
	defer reader.Close()

	filename := loc.Name
	if filename == "" {
		filename = path.Base(object)
	}

	staged := stagedFilename(destDir, uuid.NewString(), filename)
	dst, err := os.Create(staged)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeFile, "create staged file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, reader); err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeConnection, "read gcs object")
	}

	return staged, filename, nil
}

// List expands a prefix location; loc.Ref is bucket or bucket/prefix.
func (f *GCSFetcher) List(ctx context.Context, loc Location) ([]Location, error) {
	bucket, prefix := splitListRef(loc.Ref)
	if bucket == "" {
		return nil, errors.Newf(errors.ErrorTypeValidation, "invalid bucket reference %q", loc.Ref)
	}
	return f.ListPrefix(ctx, bucket, prefix)
}

// ListPrefix returns locations for the objects under bucket/prefix.
func (f *GCSFetcher) ListPrefix(ctx context.Context, bucket, prefix string) ([]Location, error) {
	var locations []Location

	it := f.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "list gcs objects")
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		locations = append(locations, Location{
			Scheme: "gcs",
			Ref:    bucket + "/" + attrs.Name,
			Name:   path.Base(attrs.Name),
		})
	}

	return locations, nil
}

// splitListRef splits a listing reference; unlike object refs the
// prefix part may be empty, meaning the whole bucket.
func splitListRef(ref string) (bucket, prefix string) {
	parts := strings.SplitN(ref, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// splitBucketRef splits a bucket/object reference.
func splitBucketRef(ref string) (bucket, object string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Newf(errors.ErrorTypeValidation, "invalid bucket/object reference %q", ref)
	}
	return parts[0], parts[1], nil
}

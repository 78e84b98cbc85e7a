package importer

import (
	"context"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/supercrema/adforge/pkg/errors"
)

// S3Fetcher imports media from Amazon S3. Locations use bucket/key refs.
type S3Fetcher struct {
	client     *s3.Client
	downloader *manager.Downloader
}

// NewS3Fetcher creates an S3 fetcher using the default AWS credential
// chain. An empty region uses the environment's.
func NewS3Fetcher(ctx context.Context, region string) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "load aws config")
	}

	client := s3.NewFromConfig(cfg)
	return &S3Fetcher{
		client:     client,
		downloader: manager.NewDownloader(client),
	}, nil
}

// NewS3FetcherWithClient wraps an existing client, used by tests.
func NewS3FetcherWithClient(client *s3.Client) *S3Fetcher {
	return &S3Fetcher{
		client:     client,
		downloader: manager.NewDownloader(client),
	}
}

// Scheme returns "s3".
func (f *S3Fetcher) Scheme() string { return "s3" }

// Fetch downloads the object at loc.Ref (bucket/key) into destDir.
func (f *S3Fetcher) Fetch(ctx context.Context, loc Location, destDir string) (string, string, error) {
	bucket, key, err := splitBucketRef(loc.Ref)
	if err != nil {
		return "", "", err
	}

	filename := loc.Name
	if filename == "" {
		filename = path.Base(key)
	}

	staged := stagedFilename(destDir, uuid.NewString(), filename)
	dst, err := os.Create(staged)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeFile, "create staged file")
	}
	defer dst.Close()

	_, err = f.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeConnection, "download s3 object")
	}

	return staged, filename, nil
}

// List expands a prefix location; loc.Ref is bucket or bucket/prefix.
func (f *S3Fetcher) List(ctx context.Context, loc Location) ([]Location, error) {
	bucket, prefix := splitListRef(loc.Ref)
	if bucket == "" {
		return nil, errors.Newf(errors.ErrorTypeValidation, "invalid bucket reference %q", loc.Ref)
	}
	return f.ListPrefix(ctx, bucket, prefix)
}

// ListPrefix returns locations for the objects under bucket/prefix.
func (f *S3Fetcher) ListPrefix(ctx context.Context, bucket, prefix string) ([]Location, error) {
	var locations []Location

	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "list s3 objects")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || key[len(key)-1] == '/' {
				continue
			}
			locations = append(locations, Location{
				Scheme: "s3",
				Ref:    bucket + "/" + key,
				Name:   path.Base(key),
			})
		}
	}

	return locations, nil
}

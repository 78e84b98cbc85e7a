// Package importer retrieves source media from remote storage into staged
// MediaAsset descriptors. A bounded worker pool fetches items in parallel;
// each item gets its own bounded retry, and one item's failure never
// aborts the batch. The report preserves input order because downstream
// naming depends on it.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/supercrema/adforge/pkg/clients"
	"github.com/supercrema/adforge/pkg/creative"
	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/logger"
	"github.com/supercrema/adforge/pkg/metrics"
)

// Location identifies one source media item.
type Location struct {
	// Scheme selects the fetcher: drive, gcs, s3, local.
	Scheme string `yaml:"scheme" json:"scheme"`
	// Ref is the source reference: a Drive file ID, bucket/object path,
	// or local path.
	Ref string `yaml:"ref" json:"ref"`
	// Name is the display filename; derived from Ref when empty.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Folder marks Ref as a folder or bucket prefix whose video files
	// are imported, instead of a single item.
	Folder bool `yaml:"folder,omitempty" json:"folder,omitempty"`
}

// Fetcher retrieves one item from a storage backend into a local file.
type Fetcher interface {
	// Scheme returns the location scheme this fetcher serves.
	Scheme() string
	// Fetch downloads the item into destDir and returns the staged path
	// and the display filename.
	Fetch(ctx context.Context, loc Location, destDir string) (path, filename string, err error)
}

// Lister is implemented by fetchers that can enumerate a folder or
// bucket prefix into the individual items it contains.
type Lister interface {
	List(ctx context.Context, loc Location) ([]Location, error)
}

// ItemResult is the per-item outcome, reported in input order.
type ItemResult struct {
	Index int
	Asset *creative.MediaAsset
	Err   error
	// Duplicate marks an item whose content hash matched an earlier
	// item in the batch; Asset points at the earlier asset.
	Duplicate bool
}

// Importer runs parallel imports over registered fetchers.
type Importer struct {
	workers  int
	retry    *clients.RetryPolicy
	stageDir string
	fetchers map[string]Fetcher
	logger   *zap.Logger
}

// New creates an importer staging files under stageDir with the given
// parallelism. A nil retry policy falls back to the default.
func New(stageDir string, workers int, retry *clients.RetryPolicy, fetchers ...Fetcher) *Importer {
	if workers <= 0 {
		workers = 8
	}
	if retry == nil {
		retry = clients.DefaultRetryPolicy()
	}

	imp := &Importer{
		workers:  workers,
		retry:    retry,
		stageDir: stageDir,
		fetchers: make(map[string]Fetcher),
		logger:   logger.With(zap.String("component", "importer")),
	}
	for _, f := range fetchers {
		imp.fetchers[f.Scheme()] = f
	}
	return imp
}

// Register adds a fetcher, replacing any previous one for the scheme.
func (imp *Importer) Register(f Fetcher) {
	imp.fetchers[f.Scheme()] = f
}

// Expand replaces folder locations with the items they contain, in the
// backend's listing order; plain item locations pass through unchanged.
// An empty folder is an error: a submission pointing at one has nothing
// to upload.
func (imp *Importer) Expand(ctx context.Context, locations []Location) ([]Location, error) {
	expanded := make([]Location, 0, len(locations))
	for _, loc := range locations {
		if !loc.Folder {
			expanded = append(expanded, loc)
			continue
		}

		fetcher, ok := imp.fetchers[loc.Scheme]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "no fetcher registered for scheme %q", loc.Scheme)
		}
		lister, ok := fetcher.(Lister)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "scheme %q cannot expand folders", loc.Scheme)
		}

		items, err := lister.List(ctx, loc)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "folder %s contains no video files", loc.Ref)
		}

		imp.logger.Info("folder expanded",
			zap.String("scheme", loc.Scheme),
			zap.String("ref", loc.Ref),
			zap.Int("items", len(items)))
		expanded = append(expanded, items...)
	}
	return expanded, nil
}

// Import fetches every location and returns one result per input, in
// input order. Items that fail permanently carry a typed error; the
// batch itself never fails. Items whose content hash duplicates an
// earlier item are collapsed onto the earlier asset.
func (imp *Importer) Import(ctx context.Context, locations []Location) []ItemResult {
	results := make([]ItemResult, len(locations))

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < imp.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = imp.importOne(ctx, idx, locations[idx])
			}
		}()
	}

	for idx := range locations {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	imp.dedupe(results)

	for i := range results {
		status := "success"
		if results[i].Err != nil {
			status = "failure"
		}
		metrics.AssetsImported.WithLabelValues(locations[i].Scheme, status).Inc()
	}

	return results
}

// importOne fetches a single item with bounded retry on transient errors.
func (imp *Importer) importOne(ctx context.Context, idx int, loc Location) ItemResult {
	fetcher, ok := imp.fetchers[loc.Scheme]
	if !ok {
		return ItemResult{
			Index: idx,
			Err:   errors.Newf(errors.ErrorTypeConfig, "no fetcher registered for scheme %q", loc.Scheme),
		}
	}

	var path, filename string
	err := imp.retry.ExecuteRetryable(ctx, func() error {
		var ferr error
		path, filename, ferr = fetcher.Fetch(ctx, loc, imp.stageDir)
		return ferr
	})
	if err != nil {
		imp.logger.Warn("import failed",
			zap.String("scheme", loc.Scheme),
			zap.String("ref", loc.Ref),
			zap.Error(err))
		return ItemResult{Index: idx, Err: err}
	}

	asset := creative.NewMediaAsset(loc.Scheme, loc.Ref, filename, path)
	if err := fillDigest(asset); err != nil {
		return ItemResult{Index: idx, Err: err}
	}

	imp.logger.Debug("asset staged",
		zap.String("filename", filename),
		zap.String("hash", asset.Hash),
		zap.Int64("bytes", asset.Bytes))

	return ItemResult{Index: idx, Asset: asset}
}

// dedupe collapses assets with identical content hashes onto the first
// occurrence, in input order.
func (imp *Importer) dedupe(results []ItemResult) {
	seen := make(map[string]*creative.MediaAsset)
	for i := range results {
		r := &results[i]
		if r.Asset == nil || r.Asset.Hash == "" {
			continue
		}
		if first, ok := seen[r.Asset.Hash]; ok {
			imp.logger.Info("duplicate asset collapsed",
				zap.String("filename", r.Asset.Filename),
				zap.String("kept", first.Filename))
			r.Asset = first
			r.Duplicate = true
			continue
		}
		seen[r.Asset.Hash] = r.Asset
	}
}

// fillDigest computes the sha256 and byte size of a staged file.
func fillDigest(asset *creative.MediaAsset) error {
	f, err := os.Open(asset.Path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "open staged file")
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "hash staged file")
	}

	asset.Hash = hex.EncodeToString(h.Sum(nil))
	asset.Bytes = n
	return nil
}

// Assets extracts the successfully imported assets from a report,
// skipping failures and duplicate entries, preserving input order.
func Assets(results []ItemResult) []*creative.MediaAsset {
	var assets []*creative.MediaAsset
	for _, r := range results {
		if r.Err == nil && !r.Duplicate && r.Asset != nil {
			assets = append(assets, r.Asset)
		}
	}
	return assets
}

// Failures extracts the failed items from a report.
func Failures(results []ItemResult) []ItemResult {
	var failed []ItemResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// stagedFilename builds a collision-free staged path for a filename.
func stagedFilename(destDir, id, filename string) string {
	return fmt.Sprintf("%s/%s_%s", destDir, id, filename)
}

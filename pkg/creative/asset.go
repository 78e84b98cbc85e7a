package creative

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AssetStatus tracks a media asset through the upload pipeline.
type AssetStatus string

const (
	// AssetStaged means the asset has been imported and is ready locally.
	AssetStaged AssetStatus = "staged"
	// AssetUploading means a transfer to the ad network is in progress.
	AssetUploading AssetStatus = "uploading"
	// AssetUploaded means the network accepted the asset and assigned a
	// remote handle.
	AssetUploaded AssetStatus = "uploaded"
	// AssetFailed means the asset exhausted its retry budget.
	AssetFailed AssetStatus = "failed"
)

// MediaAsset is one staged media file. Created by the importer, mutated
// only by the importer and the platform adapters. The remote handle is
// set at most once and never reused across jobs.
type MediaAsset struct {
	ID       string
	Origin   string // source scheme: drive, gcs, s3, local
	Source   string // original source reference
	Filename string
	Path     string // staged local path
	Size     Size
	Duration time.Duration
	Bytes    int64
	Hash     string // sha256 of content

	mu           sync.Mutex
	status       AssetStatus
	remoteHandle string
	uploadedAt   time.Time
}

// NewMediaAsset creates a staged asset descriptor. The size is inferred
// from filename tokens when the caller does not supply one.
func NewMediaAsset(origin, source, filename, path string) *MediaAsset {
	return &MediaAsset{
		ID:       uuid.NewString(),
		Origin:   origin,
		Source:   source,
		Filename: filename,
		Path:     path,
		Size:     InferSize(filename),
		status:   AssetStaged,
	}
}

// Status returns the asset's current pipeline status.
func (a *MediaAsset) Status() AssetStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// MarkUploading transitions the asset into the uploading state.
func (a *MediaAsset) MarkUploading() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = AssetUploading
}

// MarkFailed transitions the asset into the failed state.
func (a *MediaAsset) MarkFailed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = AssetFailed
}

// SetRemoteHandle records the network-assigned id and marks the asset
// uploaded. The handle is set-once: a second call with a different
// handle is ignored and reports false.
func (a *MediaAsset) SetRemoteHandle(handle string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.remoteHandle != "" {
		return a.remoteHandle == handle
	}
	a.remoteHandle = handle
	a.status = AssetUploaded
	a.uploadedAt = time.Now()
	return true
}

// RemoteHandle returns the network-assigned id, empty until uploaded.
func (a *MediaAsset) RemoteHandle() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remoteHandle
}

// Uploaded reports whether the asset reached the uploaded state.
func (a *MediaAsset) Uploaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status == AssetUploaded
}

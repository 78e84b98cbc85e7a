// Package adforge provides batch upload orchestration for video ad
// creatives across ad networks (Meta, Unity Ads).
//
// Adforge imports source videos from remote storage (Google Drive, GCS,
// S3, local files) in parallel, validates them against the chosen ad
// format before any network call, uploads them resumably with bounded
// retry and per-account rate limiting, and creates the resulting ads in
// the target destination, inheriting text defaults from the
// destination's most recent active ad.
//
// # Architecture
//
// The pipeline per job is import, validate, resolve, upload, create.
// Jobs are isolated: one job's failure never affects another, and
// within a job the upload stage is all-or-nothing, so a partially
// uploaded group never becomes an ad.
//
// Platform adapters implement a uniform capability interface
// (pkg/platform/core.Adapter) and register themselves by network name:
//
//	import (
//	    "github.com/supercrema/adforge/pkg/config"
//	    "github.com/supercrema/adforge/pkg/platform/registry"
//
//	    _ "github.com/supercrema/adforge/pkg/platform/meta"
//	)
//
//	cfg := config.NewBaseConfig("uploader", "meta")
//	adapter, err := registry.Create("meta", cfg)
//
// Two capability modes gate what a batch may do: operator mode is
// unrestricted, marketer mode can only attach creatives into existing
// destinations and is refused campaign structure creation outright.
//
// # Quick Start
//
//	adforge upload --config config.yaml --batch batch.yaml
//
// See examples/ for configuration and batch submission files.
package adforge

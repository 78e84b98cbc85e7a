// Package core defines the uniform adapter contract the orchestration
// engine drives. One implementation exists per ad network; adapters are
// stateless apart from their authenticated session and shared admission
// control, and every error they surface is normalized into the
// pkg/errors taxonomy.
package core

import (
	"context"
	"time"

	"github.com/supercrema/adforge/pkg/creative"
)

// Mode is the capability mode a job runs under.
type Mode string

const (
	// ModeOperator is unrestricted and may create new campaign/adset
	// structures.
	ModeOperator Mode = "operator"
	// ModeMarketer may only attach creatives into a pre-selected
	// existing destination.
	ModeMarketer Mode = "marketer"
)

// Capability names one adapter operation that can be gated by mode.
type Capability string

const (
	CapabilityUploadVideo     Capability = "upload_video"
	CapabilityCreateCreative  Capability = "create_creative"
	CapabilityCreateStructure Capability = "create_structure"
	CapabilityAttach          Capability = "attach"
	CapabilityQueryActive     Capability = "query_active"
)

// Allows reports whether the mode may invoke the capability. Structure
// creation is the only operator-exclusive capability.
func (m Mode) Allows(c Capability) bool {
	if c == CapabilityCreateStructure {
		return m == ModeOperator
	}
	return true
}

// Credentials carries per-network authentication material.
type Credentials struct {
	// AccessToken is the API token (Meta access token, Unity key).
	AccessToken string
	// AccountID is the ad account (Meta act_ id, Unity organization).
	AccountID string
	// Extra holds network-specific fields such as the Unity title id.
	Extra map[string]string
}

// Session is an authenticated adapter session.
type Session struct {
	Network   string
	AccountID string
	ExpiresAt time.Time
}

// Destination references the pre-existing structure creatives attach to.
type Destination struct {
	// ID is the campaign/adset/ad-group identifier on the network.
	ID string
	// StoreURL is the destination-level promoted-object store URL; when
	// present it overrides any inherited store URL.
	StoreURL string
}

// CreativeSummary is one entry from an active-creatives query.
type CreativeSummary struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	PrimaryTexts []string
	Headlines    []string
	CTA          string
	StoreURL     string
}

// CreativeSpec describes one creative to create once its assets are
// uploaded.
type CreativeSpec struct {
	Name   string
	Format creative.Format
	Group  *creative.CreativeGroup
	Texts  creative.Texts
	// StoreURL is the resolved store URL after precedence rules.
	StoreURL string
	CTA      string
}

// CampaignSpec describes a new campaign/adset structure. Operator-only.
type CampaignSpec struct {
	CampaignName string
	AdSetName    string
	DailyBudget  int64 // minor currency units
	CountryCodes []string
	StoreURL     string
	// Paused creates the structure in paused state.
	Paused bool
}

// RemoteHandle is a network-assigned identifier for an uploaded asset or
// created object.
type RemoteHandle struct {
	ID   string
	Kind string // video, image, creative, ad, campaign, adset, pack
}

// UploadRequest carries one asset transfer.
type UploadRequest struct {
	Asset *creative.MediaAsset
	// Thumbnail is the optional pre-extracted poster frame path for
	// video uploads.
	Thumbnail string
}

// Adapter is the uniform capability interface over one ad network. All
// methods honor context cancellation and return errors from the
// pkg/errors taxonomy: authentication, rate_limit (with retry_after),
// connection/timeout, or rejection.
type Adapter interface {
	// Network returns the adapter's network name (meta, unity).
	Network() string

	// Authenticate validates credentials and opens a session.
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)

	// UploadThumbnail uploads a poster frame for a video asset and
	// returns its handle.
	UploadThumbnail(ctx context.Context, imagePath string) (RemoteHandle, error)

	// UploadVideo transfers an asset resumably, waits for server-side
	// processing, and records the remote handle on the asset.
	UploadVideo(ctx context.Context, req UploadRequest) (RemoteHandle, error)

	// CreateCreative builds one creative from an uploaded group.
	CreateCreative(ctx context.Context, spec CreativeSpec) (RemoteHandle, error)

	// AttachToDestination binds a created creative into an existing
	// destination. The marketer path.
	AttachToDestination(ctx context.Context, dest Destination, creativeHandle RemoteHandle, name string) (RemoteHandle, error)

	// CreateCampaignStructure creates a new campaign and adset and
	// returns the adset as the destination. Operator-only; the engine
	// refuses to call it under marketer mode.
	CreateCampaignStructure(ctx context.Context, spec CampaignSpec) (Destination, error)

	// QueryActiveCreatives lists active creatives in a destination for
	// template inheritance.
	QueryActiveCreatives(ctx context.Context, destinationID string) ([]CreativeSummary, error)

	// FindCreativeByName searches the account for a creative with the
	// exact name. Returns nil when none exists. Used for the
	// search-before-create idempotency check.
	FindCreativeByName(ctx context.Context, name string) (*CreativeSummary, error)

	// Capabilities returns the operations this adapter supports.
	Capabilities() []Capability
}

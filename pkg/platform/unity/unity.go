// Package unity implements the platform adapter for the Unity Ads
// Advertise API. Videos become creatives under an organization's app
// (title), creatives are grouped into creative packs, and attachment
// assigns a pack to a campaign.
package unity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/supercrema/adforge/pkg/clients"
	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/logger"
	"github.com/supercrema/adforge/pkg/metrics"
	"github.com/supercrema/adforge/pkg/platform/core"
)

const (
	// Network is the adapter's registered name.
	Network = "unity"

	defaultBaseURL = "https://services.api.unity.com/advertise/v1"
)

// Adapter talks to one Unity Ads organization and title.
type Adapter struct {
	cfg       *config.BaseConfig
	http      *clients.HTTPClient
	retry     *clients.RetryPolicy
	logger    *zap.Logger
	collector *metrics.Collector

	baseURL string
	apiKey  string
	orgID   string
	titleID string
}

// New creates a Unity adapter from configuration. Credentials: api_key,
// organization_id, title_id.
func New(cfg *config.BaseConfig) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "unity adapter requires configuration")
	}

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
	httpCfg.RateBurst = cfg.Reliability.RateLimitPerSec * 2
	httpCfg.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	httpCfg.InsecureSkipVerify = cfg.Security.TLSSkipVerify

	log := logger.With(zap.String("component", "unity_adapter"))

	a := &Adapter{
		cfg:  cfg,
		http: clients.NewHTTPClient(httpCfg, log),
		retry: &clients.RetryPolicy{
			MaxAttempts:     cfg.Reliability.RetryAttempts,
			InitialDelay:    cfg.Reliability.RetryDelay,
			MaxDelay:        cfg.Reliability.MaxRetryDelay,
			Multiplier:      cfg.Reliability.RetryMultiplier,
			RandomizeFactor: 0.25,
		},
		logger:    log,
		collector: metrics.NewCollector(Network),
		baseURL:   defaultBaseURL,
		apiKey:    cfg.Security.Credential("api_key"),
		orgID:     cfg.Security.Credential("organization_id"),
		titleID:   cfg.Security.Credential("title_id"),
	}

	// Adapter instances for the same organization share one rate budget.
	if limiter := orgLimiter(cfg, a.orgID); limiter != nil {
		a.http.SetRateLimiter(limiter)
	}
	return a, nil
}

var (
	limitersOnce sync.Once
	limiters     *clients.LimiterRegistry
)

func orgLimiter(cfg *config.BaseConfig, org string) clients.RateLimiter {
	limitersOnce.Do(func() {
		rate := cfg.Reliability.RateLimitPerSec
		limiters = clients.NewLimiterRegistry(float64(rate), rate*2)
	})
	return limiters.For(Network, org)
}

// SetBaseURL overrides the API endpoint, used by tests.
func (a *Adapter) SetBaseURL(u string) { a.baseURL = strings.TrimRight(u, "/") }

// Network returns "unity".
func (a *Adapter) Network() string { return Network }

// Capabilities lists the operations Unity supports. Thumbnails are not
// separate objects on Unity; the platform extracts them server-side.
func (a *Adapter) Capabilities() []core.Capability {
	return []core.Capability{
		core.CapabilityUploadVideo,
		core.CapabilityCreateCreative,
		core.CapabilityCreateStructure,
		core.CapabilityAttach,
		core.CapabilityQueryActive,
	}
}

// titlePath is the resource root for the configured organization+title.
func (a *Adapter) titlePath() string {
	return fmt.Sprintf("/organizations/%s/apps/%s", a.orgID, a.titleID)
}

// Authenticate validates the API key by listing the organization's apps.
func (a *Adapter) Authenticate(ctx context.Context, creds core.Credentials) (*core.Session, error) {
	if creds.AccessToken != "" {
		a.apiKey = creds.AccessToken
	}
	if creds.AccountID != "" {
		a.orgID = creds.AccountID
	}
	if titleID, ok := creds.Extra["title_id"]; ok {
		a.titleID = titleID
	}
	if a.apiKey == "" || a.orgID == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "unity api key or organization is not configured")
	}

	var apps struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/organizations/%s/apps?limit=1", a.orgID)
	if err := a.getJSON(ctx, path, &apps); err != nil {
		return nil, err
	}

	a.logger.Info("unity session opened", zap.String("organization", a.orgID))
	return &core.Session{
		Network:   Network,
		AccountID: a.orgID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// UploadThumbnail is not a separate operation on Unity; poster frames
// are derived server-side from the uploaded video.
func (a *Adapter) UploadThumbnail(ctx context.Context, imagePath string) (core.RemoteHandle, error) {
	return core.RemoteHandle{}, errors.New(errors.ErrorTypeCapability, "unity derives thumbnails server-side")
}

// UploadVideo creates a video creative under the title via multipart
// upload and polls until the platform finishes processing it.
func (a *Adapter) UploadVideo(ctx context.Context, req core.UploadRequest) (core.RemoteHandle, error) {
	asset := req.Asset
	asset.MarkUploading()

	data, err := os.ReadFile(asset.Path) //nolint:gosec // G304: staged file path
	if err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeFile, "read staged video")
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	err = a.retry.ExecuteRetryable(ctx, func() error {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		_ = writer.WriteField("name", asset.Filename)

		part, ferr := writer.CreateFormFile("video", asset.Filename)
		if ferr != nil {
			return errors.Wrap(ferr, errors.ErrorTypeInternal, "build upload form")
		}
		if _, ferr := part.Write(data); ferr != nil {
			return errors.Wrap(ferr, errors.ErrorTypeInternal, "write upload form")
		}
		if ferr := writer.Close(); ferr != nil {
			return errors.Wrap(ferr, errors.ErrorTypeInternal, "close upload form")
		}

		resp, perr := a.http.Post(ctx, a.baseURL+a.titlePath()+"/creatives", &body, map[string]string{
			"Authorization": "Basic " + a.apiKey,
			"Content-Type":  writer.FormDataContentType(),
		})
		if perr != nil {
			a.collector.IncRetry("creative_upload")
			return errors.Wrap(perr, errors.ErrorTypeConnection, "creative upload failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return classifyResponse(resp)
		}
		return decodeJSON(resp.Body, &created)
	})
	if err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, err
	}

	if err := a.waitForProcessing(ctx, created.ID); err != nil {
		asset.MarkFailed()
		return core.RemoteHandle{}, err
	}

	asset.SetRemoteHandle(created.ID)
	a.collector.AddUploadBytes(int64(len(data)))
	metrics.AssetsUploaded.WithLabelValues(Network, "success").Inc()
	a.logger.Info("creative uploaded",
		zap.String("creative_id", created.ID),
		zap.String("filename", asset.Filename))

	return core.RemoteHandle{ID: created.ID, Kind: "video"}, nil
}

// waitForProcessing polls a creative until it leaves the processing
// state, with the same growing interval the video networks tolerate.
func (a *Adapter) waitForProcessing(ctx context.Context, creativeID string) error {
	deadline := time.Now().Add(a.cfg.Timeouts.ProcessingWait)
	interval := time.Second

	for {
		var creativeStatus struct {
			Status string `json:"status"`
		}
		err := a.getJSON(ctx, a.titlePath()+"/creatives/"+creativeID, &creativeStatus)
		if err != nil && !errors.IsRetryable(err) {
			return err
		}
		if err == nil {
			switch strings.ToUpper(creativeStatus.Status) {
			case "READY", "AVAILABLE", "ACTIVE":
				return nil
			case "FAILED", "REJECTED":
				return errors.Newf(errors.ErrorTypeRejection, "creative %s failed processing", creativeID)
			}
		}

		if time.Now().After(deadline) {
			return errors.Newf(errors.ErrorTypeTimeout, "creative %s still processing after %s", creativeID, a.cfg.Timeouts.ProcessingWait)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "processing wait cancelled")
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * 1.5)
		if interval > 8*time.Second {
			interval = 8 * time.Second
		}
	}
}

// CreateCreative groups the uploaded creatives into a creative pack.
func (a *Adapter) CreateCreative(ctx context.Context, spec core.CreativeSpec) (core.RemoteHandle, error) {
	ids := make([]string, 0, len(spec.Group.Assets))
	for _, asset := range spec.Group.Assets {
		handle := asset.RemoteHandle()
		if handle == "" {
			return core.RemoteHandle{}, errors.Newf(errors.ErrorTypeInternal, "asset %s has no remote handle", asset.Filename)
		}
		ids = append(ids, handle)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"name":        spec.Name,
		"creativeIds": ids,
	})
	if err != nil {
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeInternal, "encode creative pack")
	}

	var pack struct {
		ID string `json:"id"`
	}
	err = a.retry.ExecuteRetryable(ctx, func() error {
		return a.postJSON(ctx, a.titlePath()+"/creative-packs", payload, &pack)
	})
	if err != nil {
		return core.RemoteHandle{}, err
	}

	a.logger.Info("creative pack created",
		zap.String("pack_id", pack.ID),
		zap.String("name", spec.Name))
	return core.RemoteHandle{ID: pack.ID, Kind: "pack"}, nil
}

// AttachToDestination assigns a creative pack to a campaign.
func (a *Adapter) AttachToDestination(ctx context.Context, dest core.Destination, creativeHandle core.RemoteHandle, name string) (core.RemoteHandle, error) {
	payload, err := json.Marshal(map[string]string{
		"creativePackId": creativeHandle.ID,
	})
	if err != nil {
		return core.RemoteHandle{}, errors.Wrap(err, errors.ErrorTypeInternal, "encode assignment")
	}

	var assigned struct {
		ID string `json:"id"`
	}
	path := a.titlePath() + "/campaigns/" + dest.ID + "/assigned-creative-packs"
	err = a.retry.ExecuteRetryable(ctx, func() error {
		return a.postJSON(ctx, path, payload, &assigned)
	})
	if err != nil {
		return core.RemoteHandle{}, err
	}

	if assigned.ID == "" {
		assigned.ID = creativeHandle.ID
	}
	return core.RemoteHandle{ID: assigned.ID, Kind: "assignment"}, nil
}

// CreateCampaignStructure creates a campaign under the title.
// Operator-only. Unity has no adset layer; the campaign itself is the
// destination.
func (a *Adapter) CreateCampaignStructure(ctx context.Context, spec core.CampaignSpec) (core.Destination, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"name":      spec.CampaignName,
		"goal":      "installs",
		"enabled":   !spec.Paused,
		"countries": spec.CountryCodes,
	})
	if err != nil {
		return core.Destination{}, errors.Wrap(err, errors.ErrorTypeInternal, "encode campaign")
	}

	var campaign struct {
		ID string `json:"id"`
	}
	err = a.retry.ExecuteRetryable(ctx, func() error {
		return a.postJSON(ctx, a.titlePath()+"/campaigns", payload, &campaign)
	})
	if err != nil {
		return core.Destination{}, err
	}

	a.logger.Info("campaign created", zap.String("campaign_id", campaign.ID))
	return core.Destination{ID: campaign.ID, StoreURL: spec.StoreURL}, nil
}

// QueryActiveCreatives lists the packs assigned to a campaign. Unity
// packs carry no inheritable texts, so only names and ids come back.
func (a *Adapter) QueryActiveCreatives(ctx context.Context, destinationID string) ([]core.CreativeSummary, error) {
	var page struct {
		Results []packEntry `json:"results"`
	}
	path := a.titlePath() + "/campaigns/" + destinationID + "/assigned-creative-packs"
	if err := a.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}

	summaries := make([]core.CreativeSummary, 0, len(page.Results))
	for _, pack := range page.Results {
		summaries = append(summaries, pack.summary())
	}
	return summaries, nil
}

// FindCreativeByName searches the title's creative packs for an exact
// name match. Returns nil when none exists.
func (a *Adapter) FindCreativeByName(ctx context.Context, name string) (*core.CreativeSummary, error) {
	var page struct {
		Results []packEntry `json:"results"`
	}
	if err := a.getJSON(ctx, a.titlePath()+"/creative-packs", &page); err != nil {
		return nil, err
	}

	for _, pack := range page.Results {
		if pack.Name == name {
			s := pack.summary()
			return &s, nil
		}
	}
	return nil, nil
}

type packEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created string `json:"created"`
}

func (p packEntry) summary() core.CreativeSummary {
	s := core.CreativeSummary{ID: p.ID, Name: p.Name}
	if t, err := time.Parse(time.RFC3339, p.Created); err == nil {
		s.CreatedAt = t
	}
	return s
}

// getJSON performs an authenticated GET and decodes the response.
func (a *Adapter) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := a.http.Get(ctx, a.baseURL+path, map[string]string{
		"Authorization": "Basic " + a.apiKey,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "unity request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyResponse(resp)
	}
	return decodeJSON(resp.Body, out)
}

// postJSON performs an authenticated JSON POST and decodes the response.
func (a *Adapter) postJSON(ctx context.Context, path string, payload []byte, out interface{}) error {
	resp, err := a.http.Post(ctx, a.baseURL+path, bytes.NewReader(payload), map[string]string{
		"Authorization": "Basic " + a.apiKey,
		"Content-Type":  "application/json",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "unity request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyResponse(resp)
	}
	if out == nil {
		return nil
	}
	return decodeJSON(resp.Body, out)
}

// classifyResponse maps Unity API failures into the error taxonomy by
// status code; 429 carries the platform's Retry-After hint.
func classifyResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var envelope struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &envelope)
	detail := envelope.Detail
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Newf(errors.ErrorTypeAuthentication, "unity auth error: %s", detail)

	case resp.StatusCode == http.StatusNotFound:
		return errors.Newf(errors.ErrorTypeNotFound, "unity resource not found: %s", detail)

	case resp.StatusCode == http.StatusTooManyRequests:
		delay := 30 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		return errors.Newf(errors.ErrorTypeRateLimit, "unity rate limited: %s", detail).
			WithRetryAfter(delay)

	case resp.StatusCode >= 500:
		return errors.Newf(errors.ErrorTypeConnection, "unity server error %d: %s", resp.StatusCode, detail)

	default:
		return errors.Newf(errors.ErrorTypeRejection, "unity rejected request (%d): %s", resp.StatusCode, detail).
			WithDetail("platform_message", detail)
	}
}

func decodeJSON(r io.Reader, out interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r, 4<<20))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "read unity response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "decode unity response")
	}
	return nil
}

var _ core.Adapter = (*Adapter)(nil)

// Package meta implements the platform adapter for the Meta (Facebook)
// Marketing API, Graph v24.0. Video uploads are resumable with
// server-driven offsets, and creative creation supports both
// object-story (single video) and asset-feed (dynamic) payloads.
package meta

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/supercrema/adforge/pkg/clients"
	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/creative"
	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/logger"
	"github.com/supercrema/adforge/pkg/metrics"
	"github.com/supercrema/adforge/pkg/platform/core"
)

const (
	// Network is the adapter's registered name.
	Network = "meta"

	defaultBaseURL = "https://graph.facebook.com/v24.0"

	// contentCategory tags every uploaded video for the gaming vertical.
	contentCategory = "VIDEO_GAMING"
)

// Adapter talks to one Meta ad account.
type Adapter struct {
	cfg         *config.BaseConfig
	http        *clients.HTTPClient
	retry       *clients.RetryPolicy
	uploadRetry *clients.RetryPolicy
	logger      *zap.Logger
	collector   *metrics.Collector

	baseURL   string
	token     string
	accountID string
	pageID    string
}

// New creates a Meta adapter from configuration. Credentials:
// access_token, account_id, page_id (for object-story creatives).
func New(cfg *config.BaseConfig) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "meta adapter requires configuration")
	}

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
	httpCfg.RateBurst = cfg.Reliability.RateLimitPerSec * 2
	httpCfg.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	httpCfg.InsecureSkipVerify = cfg.Security.TLSSkipVerify

	log := logger.With(zap.String("component", "meta_adapter"))

	a := &Adapter{
		cfg:         cfg,
		http:        clients.NewHTTPClient(httpCfg, log),
		retry:       retryFromConfig(cfg),
		uploadRetry: retryFromConfig(cfg).WithMaxAttempts(cfg.Reliability.UploadRetryAttempts),
		logger:      log,
		collector:   metrics.NewCollector(Network),
		baseURL:     defaultBaseURL,
		token:       cfg.Security.Credential("access_token"),
		accountID:   strings.TrimPrefix(cfg.Security.Credential("account_id"), "act_"),
		pageID:      cfg.Security.Credential("page_id"),
	}

	// Adapter instances for the same account share one rate budget.
	if limiter := accountLimiter(cfg, a.accountID); limiter != nil {
		a.http.SetRateLimiter(limiter)
	}
	return a, nil
}

var (
	limitersOnce sync.Once
	limiters     *clients.LimiterRegistry
)

func accountLimiter(cfg *config.BaseConfig, account string) clients.RateLimiter {
	limitersOnce.Do(func() {
		rate := cfg.Reliability.RateLimitPerSec
		limiters = clients.NewLimiterRegistry(float64(rate), rate*2)
	})
	return limiters.For(Network, account)
}

func retryFromConfig(cfg *config.BaseConfig) *clients.RetryPolicy {
	return &clients.RetryPolicy{
		MaxAttempts:     cfg.Reliability.RetryAttempts,
		InitialDelay:    cfg.Reliability.RetryDelay,
		MaxDelay:        cfg.Reliability.MaxRetryDelay,
		Multiplier:      cfg.Reliability.RetryMultiplier,
		RandomizeFactor: 0.25,
	}
}

// SetBaseURL overrides the Graph endpoint, used by tests.
func (a *Adapter) SetBaseURL(u string) { a.baseURL = strings.TrimRight(u, "/") }

// Network returns "meta".
func (a *Adapter) Network() string { return Network }

// Capabilities lists every adapter operation; gating happens in the
// engine, not here.
func (a *Adapter) Capabilities() []core.Capability {
	return []core.Capability{
		core.CapabilityUploadVideo,
		core.CapabilityCreateCreative,
		core.CapabilityCreateStructure,
		core.CapabilityAttach,
		core.CapabilityQueryActive,
	}
}

// Authenticate validates the access token against /me and adopts the
// supplied credentials.
func (a *Adapter) Authenticate(ctx context.Context, creds core.Credentials) (*core.Session, error) {
	if creds.AccessToken != "" {
		a.token = creds.AccessToken
	}
	if creds.AccountID != "" {
		a.accountID = strings.TrimPrefix(creds.AccountID, "act_")
	}
	if p, ok := creds.Extra["page_id"]; ok {
		a.pageID = p
	}
	if a.token == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "meta access token is not configured")
	}

	var me struct {
		ID string `json:"id"`
	}
	if err := a.getJSON(ctx, "/me", url.Values{}, &me); err != nil {
		return nil, err
	}

	a.logger.Info("meta session opened", zap.String("account", a.accountID))
	return &core.Session{
		Network:   Network,
		AccountID: a.accountID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// QueryActiveCreatives lists the active ads in an adset with the fields
// template inheritance needs.
func (a *Adapter) QueryActiveCreatives(ctx context.Context, destinationID string) ([]core.CreativeSummary, error) {
	params := url.Values{}
	params.Set("fields", "id,name,created_time,creative{object_story_spec,asset_feed_spec}")
	params.Set("effective_status", `["ACTIVE"]`)
	params.Set("limit", "100")

	var page struct {
		Data []adEntry `json:"data"`
	}
	if err := a.getJSON(ctx, "/"+destinationID+"/ads", params, &page); err != nil {
		return nil, err
	}

	summaries := make([]core.CreativeSummary, 0, len(page.Data))
	for _, ad := range page.Data {
		summaries = append(summaries, ad.summary())
	}
	return summaries, nil
}

// FindCreativeByName searches the account's ads for an exact name match.
// Returns nil when none exists.
func (a *Adapter) FindCreativeByName(ctx context.Context, name string) (*core.CreativeSummary, error) {
	filter, _ := json.Marshal([]map[string]string{
		{"field": "name", "operator": "EQUAL", "value": name},
	})

	params := url.Values{}
	params.Set("fields", "id,name,created_time")
	params.Set("filtering", string(filter))
	params.Set("limit", "1")

	var page struct {
		Data []adEntry `json:"data"`
	}
	if err := a.getJSON(ctx, "/act_"+a.accountID+"/ads", params, &page); err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, nil
	}

	s := page.Data[0].summary()
	return &s, nil
}

// CreateCreative builds an ad creative from an uploaded group. Dynamic
// formats produce an asset-feed payload; single video an object story.
func (a *Adapter) CreateCreative(ctx context.Context, spec core.CreativeSpec) (core.RemoteHandle, error) {
	form := url.Values{}
	form.Set("name", spec.Name)

	switch spec.Format {
	case creative.FormatSingleVideo:
		story, err := a.objectStorySpec(spec)
		if err != nil {
			return core.RemoteHandle{}, err
		}
		form.Set("object_story_spec", story)

	default:
		feed, err := a.assetFeedSpec(spec)
		if err != nil {
			return core.RemoteHandle{}, err
		}
		form.Set("asset_feed_spec", feed)
		form.Set("object_story_spec", fmt.Sprintf(`{"page_id":%q}`, a.pageID))
	}

	var created struct {
		ID string `json:"id"`
	}
	err := a.retry.ExecuteRetryable(ctx, func() error {
		return a.postForm(ctx, "/act_"+a.accountID+"/adcreatives", form, &created)
	})
	if err != nil {
		return core.RemoteHandle{}, err
	}

	a.logger.Info("creative created",
		zap.String("creative_id", created.ID),
		zap.String("name", spec.Name))
	return core.RemoteHandle{ID: created.ID, Kind: "creative"}, nil
}

// AttachToDestination creates an ad binding the creative into an
// existing adset. The marketer path.
func (a *Adapter) AttachToDestination(ctx context.Context, dest core.Destination, creativeHandle core.RemoteHandle, name string) (core.RemoteHandle, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("adset_id", dest.ID)
	form.Set("creative", fmt.Sprintf(`{"creative_id":%q}`, creativeHandle.ID))
	form.Set("status", "PAUSED")

	var created struct {
		ID string `json:"id"`
	}
	err := a.retry.ExecuteRetryable(ctx, func() error {
		return a.postForm(ctx, "/act_"+a.accountID+"/ads", form, &created)
	})
	if err != nil {
		return core.RemoteHandle{}, err
	}

	return core.RemoteHandle{ID: created.ID, Kind: "ad"}, nil
}

// CreateCampaignStructure creates a paused campaign and adset with the
// promoted object pointing at the store URL. Operator-only.
func (a *Adapter) CreateCampaignStructure(ctx context.Context, spec core.CampaignSpec) (core.Destination, error) {
	status := "ACTIVE"
	if spec.Paused {
		status = "PAUSED"
	}

	campaignForm := url.Values{}
	campaignForm.Set("name", spec.CampaignName)
	campaignForm.Set("objective", "OUTCOME_APP_PROMOTION")
	campaignForm.Set("status", status)
	campaignForm.Set("special_ad_categories", "[]")

	var campaign struct {
		ID string `json:"id"`
	}
	err := a.retry.ExecuteRetryable(ctx, func() error {
		return a.postForm(ctx, "/act_"+a.accountID+"/campaigns", campaignForm, &campaign)
	})
	if err != nil {
		return core.Destination{}, err
	}

	targeting, _ := json.Marshal(map[string]interface{}{
		"geo_locations": map[string]interface{}{"countries": spec.CountryCodes},
	})
	promoted, _ := json.Marshal(map[string]string{
		"object_store_url": spec.StoreURL,
	})

	adsetForm := url.Values{}
	adsetForm.Set("name", spec.AdSetName)
	adsetForm.Set("campaign_id", campaign.ID)
	adsetForm.Set("daily_budget", fmt.Sprintf("%d", spec.DailyBudget))
	adsetForm.Set("billing_event", "IMPRESSIONS")
	adsetForm.Set("optimization_goal", "APP_INSTALLS")
	adsetForm.Set("targeting", string(targeting))
	adsetForm.Set("promoted_object", string(promoted))
	adsetForm.Set("status", status)

	var adset struct {
		ID string `json:"id"`
	}
	err = a.retry.ExecuteRetryable(ctx, func() error {
		return a.postForm(ctx, "/act_"+a.accountID+"/adsets", adsetForm, &adset)
	})
	if err != nil {
		// Roll back the campaign so a resubmission does not strand an
		// empty one per attempt.
		a.deleteObject(ctx, campaign.ID)
		return core.Destination{}, err
	}

	a.logger.Info("campaign structure created",
		zap.String("campaign_id", campaign.ID),
		zap.String("adset_id", adset.ID))
	return core.Destination{ID: adset.ID, StoreURL: spec.StoreURL}, nil
}

// deleteObject removes a Graph object, best effort; failures are logged
// and swallowed because the caller is already on an error path.
func (a *Adapter) deleteObject(ctx context.Context, id string) {
	params := url.Values{}
	params.Set("access_token", a.token)

	resp, err := a.http.Delete(ctx, a.baseURL+"/"+id+"?"+params.Encode(), nil)
	if err != nil {
		a.logger.Warn("rollback delete failed", zap.String("id", id), zap.Error(err))
		return
	}
	resp.Body.Close()
	a.logger.Info("rolled back graph object", zap.String("id", id))
}

// objectStorySpec builds the payload for a single-video creative.
func (a *Adapter) objectStorySpec(spec core.CreativeSpec) (string, error) {
	asset := spec.Group.Assets[0]
	if asset.RemoteHandle() == "" {
		return "", errors.Newf(errors.ErrorTypeInternal, "asset %s has no remote handle", asset.Filename)
	}

	videoData := map[string]interface{}{
		"video_id": asset.RemoteHandle(),
	}
	if len(spec.Texts.PrimaryTexts) > 0 {
		videoData["message"] = spec.Texts.PrimaryTexts[0]
	}
	if len(spec.Texts.Headlines) > 0 {
		videoData["title"] = spec.Texts.Headlines[0]
	}
	if spec.CTA != "" {
		videoData["call_to_action"] = map[string]interface{}{
			"type":  spec.CTA,
			"value": map[string]string{"link": spec.StoreURL},
		}
	}

	story, err := json.Marshal(map[string]interface{}{
		"page_id":    a.pageID,
		"video_data": videoData,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "encode object story spec")
	}
	return string(story), nil
}

// assetFeedSpec builds the payload for the dynamic formats.
func (a *Adapter) assetFeedSpec(spec core.CreativeSpec) (string, error) {
	videos := make([]map[string]string, 0, len(spec.Group.Assets))
	for _, asset := range spec.Group.Assets {
		handle := asset.RemoteHandle()
		if handle == "" {
			return "", errors.Newf(errors.ErrorTypeInternal, "asset %s has no remote handle", asset.Filename)
		}
		videos = append(videos, map[string]string{"video_id": handle})
	}

	bodies := make([]map[string]string, 0, len(spec.Texts.PrimaryTexts))
	for _, t := range spec.Texts.PrimaryTexts {
		bodies = append(bodies, map[string]string{"text": t})
	}
	titles := make([]map[string]string, 0, len(spec.Texts.Headlines))
	for _, h := range spec.Texts.Headlines {
		titles = append(titles, map[string]string{"text": h})
	}

	feed := map[string]interface{}{
		"videos":    videos,
		"bodies":    bodies,
		"titles":    titles,
		"ad_formats": []string{"SINGLE_VIDEO"},
		"link_urls": []map[string]string{
			{"website_url": spec.StoreURL},
		},
	}
	if spec.CTA != "" {
		feed["call_to_action_types"] = []string{spec.CTA}
	}

	encoded, err := json.Marshal(feed)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "encode asset feed spec")
	}
	return string(encoded), nil
}

// adEntry is one ad row from a Graph listing.
type adEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CreatedTime string `json:"created_time"`
	Creative    struct {
		ObjectStorySpec struct {
			VideoData struct {
				Message      string `json:"message"`
				Title        string `json:"title"`
				CallToAction struct {
					Type  string `json:"type"`
					Value struct {
						Link string `json:"link"`
					} `json:"value"`
				} `json:"call_to_action"`
			} `json:"video_data"`
		} `json:"object_story_spec"`
		AssetFeedSpec struct {
			Bodies []struct {
				Text string `json:"text"`
			} `json:"bodies"`
			Titles []struct {
				Text string `json:"text"`
			} `json:"titles"`
			CallToActionTypes []string `json:"call_to_action_types"`
			LinkURLs          []struct {
				WebsiteURL string `json:"website_url"`
			} `json:"link_urls"`
		} `json:"asset_feed_spec"`
	} `json:"creative"`
}

// summary flattens an ad entry into the inheritance snapshot, preferring
// asset-feed fields and falling back to the object story.
func (ad adEntry) summary() core.CreativeSummary {
	s := core.CreativeSummary{ID: ad.ID, Name: ad.Name}
	if t, err := time.Parse("2006-01-02T15:04:05-0700", ad.CreatedTime); err == nil {
		s.CreatedAt = t
	}

	feed := ad.Creative.AssetFeedSpec
	if len(feed.Bodies) > 0 || len(feed.Titles) > 0 {
		for _, b := range feed.Bodies {
			s.PrimaryTexts = append(s.PrimaryTexts, b.Text)
		}
		for _, t := range feed.Titles {
			s.Headlines = append(s.Headlines, t.Text)
		}
		if len(feed.CallToActionTypes) > 0 {
			s.CTA = feed.CallToActionTypes[0]
		}
		if len(feed.LinkURLs) > 0 {
			s.StoreURL = feed.LinkURLs[0].WebsiteURL
		}
		return s
	}

	video := ad.Creative.ObjectStorySpec.VideoData
	if video.Message != "" {
		s.PrimaryTexts = []string{video.Message}
	}
	if video.Title != "" {
		s.Headlines = []string{video.Title}
	}
	s.CTA = video.CallToAction.Type
	s.StoreURL = video.CallToAction.Value.Link
	return s
}

// getJSON performs an authenticated GET and decodes the response.
func (a *Adapter) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("access_token", a.token)

	resp, err := a.http.Get(ctx, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "graph request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyResponse(resp)
	}
	return decodeJSON(resp.Body, out)
}

// postForm performs an authenticated form POST and decodes the response.
func (a *Adapter) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	form.Set("access_token", a.token)

	resp, err := a.http.Post(ctx, a.baseURL+path, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "graph request failed")
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

func decodeJSON(r io.Reader, out interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r, 4<<20))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "read graph response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "decode graph response")
	}
	return nil
}

var _ core.Adapter = (*Adapter)(nil)

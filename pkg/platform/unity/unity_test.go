package unity

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/creative"
	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/platform/core"
)

func testAdapter(t *testing.T, server *httptest.Server) *Adapter {
	t.Helper()

	cfg := config.NewBaseConfig("unity-test", "unity")
	cfg.Reliability.RetryDelay = time.Millisecond
	cfg.Reliability.MaxRetryDelay = 5 * time.Millisecond
	cfg.Timeouts.ProcessingWait = 5 * time.Second
	cfg.Security.Credentials = map[string]string{
		"api_key":         "a2V5OnNlY3JldA==",
		"organization_id": "org1",
		"title_id":        "title1",
	}

	a, err := New(cfg)
	require.NoError(t, err)
	a.SetBaseURL(server.URL)
	return a
}

func stagedVideo(t *testing.T) *creative.MediaAsset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video1_puzzlequest_en_30s_1080x1080.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o644))
	return creative.NewMediaAsset("local", path, filepath.Base(path), path)
}

func TestUploadVideoCreatesCreativeAndPolls(t *testing.T) {
	var polls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/organizations/org1/apps/title1/creatives", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Basic a2V5OnNlY3JldA==", r.Header.Get("Authorization"))

		file, _, err := r.FormFile("video")
		require.NoError(t, err)
		file.Close()

		fmt.Fprint(w, `{"id":"cr1","status":"PROCESSING"}`)
	})
	mux.HandleFunc("/organizations/org1/apps/title1/creatives/cr1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) == 1 {
			fmt.Fprint(w, `{"id":"cr1","status":"PROCESSING"}`)
			return
		}
		fmt.Fprint(w, `{"id":"cr1","status":"READY"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	a := testAdapter(t, server)
	asset := stagedVideo(t)

	handle, err := a.UploadVideo(context.Background(), core.UploadRequest{Asset: asset})
	require.NoError(t, err)
	assert.Equal(t, "cr1", handle.ID)
	assert.Equal(t, "cr1", asset.RemoteHandle())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(2))
}

func TestCreateCreativePack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/org1/apps/title1/creative-packs", r.URL.Path)
		fmt.Fprint(w, `{"id":"pack1"}`)
	}))
	defer server.Close()

	a := testAdapter(t, server)

	asset := stagedVideo(t)
	asset.SetRemoteHandle("cr1")

	handle, err := a.CreateCreative(context.Background(), core.CreativeSpec{
		Name:  "video1_puzzlequest_정방",
		Group: &creative.CreativeGroup{Base: "video1", Assets: []*creative.MediaAsset{asset}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pack1", handle.ID)
	assert.Equal(t, "pack", handle.Kind)
}

func TestAttachAssignsPackToCampaign(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/org1/apps/title1/campaigns/camp1/assigned-creative-packs", r.URL.Path)
		fmt.Fprint(w, `{"id":"assign1"}`)
	}))
	defer server.Close()

	a := testAdapter(t, server)
	handle, err := a.AttachToDestination(context.Background(),
		core.Destination{ID: "camp1"}, core.RemoteHandle{ID: "pack1", Kind: "pack"}, "name")
	require.NoError(t, err)
	assert.Equal(t, "assign1", handle.ID)
}

func TestRateLimitBacksOffWithRetryAfter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"title":"Too Many Requests"}`)
			return
		}
		fmt.Fprint(w, `{"id":"pack1"}`)
	}))
	defer server.Close()

	a := testAdapter(t, server)

	asset := stagedVideo(t)
	asset.SetRemoteHandle("cr1")

	start := time.Now()
	_, err := a.CreateCreative(context.Background(), core.CreativeSpec{
		Name:  "pack",
		Group: &creative.CreativeGroup{Assets: []*creative.MediaAsset{asset}},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	// The platform-suggested delay outranks the tiny configured backoff
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"title":"Unauthorized"}`)
	}))
	defer server.Close()

	a := testAdapter(t, server)

	asset := stagedVideo(t)
	asset.SetRemoteHandle("cr1")

	_, err := a.CreateCreative(context.Background(), core.CreativeSpec{
		Name:  "pack",
		Group: &creative.CreativeGroup{Assets: []*creative.MediaAsset{asset}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFindCreativeByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"id":"pack1","name":"other","created":"2026-08-01T00:00:00Z"},
			{"id":"pack2","name":"video1_puzzlequest_정방","created":"2026-08-02T00:00:00Z"}
		]}`)
	}))
	defer server.Close()

	a := testAdapter(t, server)

	found, err := a.FindCreativeByName(context.Background(), "video1_puzzlequest_정방")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "pack2", found.ID)

	missing, err := a.FindCreativeByName(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

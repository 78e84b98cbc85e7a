package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseConfigDefaults(t *testing.T) {
	cfg := NewBaseConfig("uploader", "meta")

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "uploader", cfg.Name)
	assert.Equal(t, "meta", cfg.Type)
	assert.Equal(t, 8, cfg.Performance.ImportWorkers)
	assert.Equal(t, 6, cfg.Performance.UploadWorkers)
	assert.Equal(t, 3, cfg.Reliability.RetryAttempts)
	assert.Equal(t, 5, cfg.Reliability.UploadRetryAttempts)
	assert.True(t, cfg.Reliability.IsRateLimited())
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.ProcessingWait)
	assert.Equal(t, 10*time.Minute, cfg.Template.CacheTTL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := NewBaseConfig("uploader", "meta")
	cfg.Performance.UploadWorkers = 0
	assert.Error(t, cfg.Validate())

	cfg = NewBaseConfig("", "meta")
	assert.Error(t, cfg.Validate())

	cfg = NewBaseConfig("uploader", "meta")
	cfg.Reliability.RateLimitPerSec = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_META_TOKEN", "tok-123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
name: uploader
type: meta
security:
  credentials:
    access_token: ${TEST_META_TOKEN}
    account_id: act_42
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := NewBaseConfig("uploader", "meta")
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, "tok-123", cfg.Security.Credential("access_token"))
	assert.Equal(t, "act_42", cfg.Security.Credential("account_id"))
	assert.True(t, cfg.Security.HasCredentials())
	// Defaults survive a partial file
	assert.Equal(t, 8, cfg.Performance.ImportWorkers)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := NewBaseConfig("uploader", "unity")
	cfg.Performance.JobWorkers = 4
	require.NoError(t, Save(path, cfg))

	loaded := &BaseConfig{}
	require.NoError(t, Load(path, loaded))
	assert.Equal(t, "unity", loaded.Type)
	assert.Equal(t, 4, loaded.Performance.JobWorkers)
}

func TestCredentialMissingKey(t *testing.T) {
	cfg := &BaseConfig{}
	assert.Empty(t, cfg.Security.Credential("access_token"))
	assert.False(t, cfg.Security.HasCredentials())
}

// Package config provides the unified configuration system for adforge.
// It defines a single BaseConfig structure that the orchestration engine,
// importer, and all platform adapters share, organized into logical
// sections:
//   - Performance: worker pools and concurrency limits
//   - Timeouts: request, upload, and processing-poll timeouts
//   - Reliability: retry logic, circuit breakers, rate limiting
//   - Security: credentials and TLS
//   - Observability: metrics and logging
//   - Template: inherited-defaults caching
package config

import (
	"fmt"
	"runtime"
	"time"
)

// BaseConfig is the single unified configuration structure shared by the
// engine and all adapters. Adapter-specific settings (tokens, account IDs)
// live in Security.Credentials.
type BaseConfig struct {
	// Name identifies the component instance
	Name string `yaml:"name" json:"name"`
	// Type specifies the component type (e.g. "meta", "unity", "engine")
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	Performance   PerformanceConfig   `yaml:"performance" json:"performance"`
	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Template      TemplateConfig      `yaml:"template" json:"template"`
}

// PerformanceConfig contains worker-pool sizing. Job workers bound the
// number of upload jobs in flight; import and upload workers bound the
// per-asset I/O parallelism, independently of the job pool.
type PerformanceConfig struct {
	// JobWorkers defines the number of concurrent upload jobs
	JobWorkers int `yaml:"job_workers" json:"job_workers"`
	// ImportWorkers bounds parallel asset fetches from remote storage
	ImportWorkers int `yaml:"import_workers" json:"import_workers"`
	// UploadWorkers bounds parallel per-asset video uploads within a job
	UploadWorkers int `yaml:"upload_workers" json:"upload_workers"`
	// BufferSize sets the size of internal channels
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Request timeout for individual API calls
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// UploadChunk timeout for a single resumable-upload chunk transfer
	UploadChunk time.Duration `yaml:"upload_chunk" json:"upload_chunk"`
	// ProcessingWait bounds how long to poll for server-side video
	// processing before giving up
	ProcessingWait time.Duration `yaml:"processing_wait" json:"processing_wait"`
}

// ReliabilityConfig contains reliability and error handling settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for failed API calls
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// UploadRetryAttempts sets maximum attempts for chunk transfers
	UploadRetryAttempts int `yaml:"upload_retry_attempts" json:"upload_retry_attempts"`
	// CircuitBreaker enables circuit breaker protection on adapters
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// RateLimitPerSec limits API calls per second per network+account
	// (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// SecurityConfig contains credentials and TLS settings.
type SecurityConfig struct {
	// EnableTLS enables TLS/SSL encryption
	EnableTLS bool `yaml:"enable_tls" json:"enable_tls"`
	// TLSSkipVerify disables certificate verification (insecure)
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	// Credentials stores authentication credentials (use env vars in
	// production via ${VAR} substitution)
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics activates Prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// DiagnosticBufferSize bounds the in-memory diagnostic ring buffer
	DiagnosticBufferSize int `yaml:"diagnostic_buffer_size" json:"diagnostic_buffer_size"`
}

// TemplateConfig controls caching of defaults inherited from active ads.
type TemplateConfig struct {
	// CacheTTL bounds how long resolved defaults are reused before a
	// fresh query
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// NewBaseConfig creates a new BaseConfig with production-ready defaults.
func NewBaseConfig(name, componentType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    componentType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			JobWorkers:    runtime.NumCPU(),
			ImportWorkers: 8,
			UploadWorkers: 6,
			BufferSize:    100,
		},
		Timeouts: TimeoutConfig{
			Request:        30 * time.Second,
			Connection:     10 * time.Second,
			UploadChunk:    3 * time.Minute,
			ProcessingWait: 5 * time.Minute,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:       3,
			RetryDelay:          time.Second,
			RetryMultiplier:     2.0,
			MaxRetryDelay:       30 * time.Second,
			UploadRetryAttempts: 5,
			CircuitBreaker:      true,
			RateLimitPerSec:     10,
		},
		Security: SecurityConfig{
			EnableTLS:     true,
			TLSSkipVerify: false,
			Credentials:   make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics:        true,
			LogLevel:             "info",
			DiagnosticBufferSize: 256,
		},
		Template: TemplateConfig{
			CacheTTL: 10 * time.Minute,
		},
	}
}

// Validate validates the configuration for correctness.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Performance.JobWorkers <= 0 {
		return fmt.Errorf("job_workers must be positive")
	}
	if bc.Performance.ImportWorkers <= 0 {
		return fmt.Errorf("import_workers must be positive")
	}
	if bc.Performance.UploadWorkers <= 0 {
		return fmt.Errorf("upload_workers must be positive")
	}
	if bc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if bc.Reliability.UploadRetryAttempts <= 0 {
		return fmt.Errorf("upload_retry_attempts must be positive")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("rate_limit_per_sec cannot be negative")
	}
	if bc.Template.CacheTTL < 0 {
		return fmt.Errorf("template cache_ttl cannot be negative")
	}
	return nil
}

// GetJobWorkers returns the job worker count, ensuring it's at least 1
func (p *PerformanceConfig) GetJobWorkers() int {
	if p.JobWorkers <= 0 {
		return runtime.NumCPU()
	}
	return p.JobWorkers
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// HasCredentials returns true if credentials are configured
func (s *SecurityConfig) HasCredentials() bool {
	return len(s.Credentials) > 0
}

// Credential returns a credential value, or the empty string when unset.
func (s *SecurityConfig) Credential(key string) string {
	if s.Credentials == nil {
		return ""
	}
	return s.Credentials[key]
}

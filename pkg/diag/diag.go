// Package diag is the error and diagnostics channel. Every failure that
// reaches the controller is classified and recorded into a bounded ring
// buffer; the default path returns only a concise user-safe message,
// while the full structured records require an elevated access token.
package diag

import (
	"crypto/subtle"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/logger"
	"github.com/supercrema/adforge/pkg/metrics"
)

// Record is one structured diagnostic entry.
type Record struct {
	Kind      errors.ErrorType       `json:"kind"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Channel records diagnostics into a bounded ring buffer. Safe for
// concurrent use.
type Channel struct {
	capacity int
	token    string
	logger   *zap.Logger

	mu      sync.Mutex
	records []Record
	next    int
	full    bool
}

// NewChannel creates a diagnostics channel holding at most capacity
// records. The token gates access to full records; an empty token
// disables elevated access entirely.
func NewChannel(capacity int, token string) *Channel {
	if capacity <= 0 {
		capacity = 256
	}
	return &Channel{
		capacity: capacity,
		token:    token,
		logger:   logger.With(zap.String("component", "diag")),
		records:  make([]Record, capacity),
	}
}

// Report classifies an error, records it with context, bumps the metric
// for its category, and returns the concise user-safe message. Internal
// detail never leaks into the returned string.
func (c *Channel) Report(err error, context map[string]interface{}) string {
	if err == nil {
		return ""
	}

	kind := errors.TypeOf(err)

	c.mu.Lock()
	c.records[c.next] = Record{
		Kind:      kind,
		Message:   err.Error(),
		Context:   context,
		Timestamp: time.Now(),
	}
	c.next = (c.next + 1) % c.capacity
	if c.next == 0 {
		c.full = true
	}
	c.mu.Unlock()

	metrics.DiagnosticsReported.WithLabelValues(string(kind)).Inc()
	c.logger.Error("diagnostic recorded",
		zap.String("kind", string(kind)),
		zap.Error(err),
		zap.Any("context", context))

	return UserMessage(kind)
}

// Records returns the full diagnostic records, oldest first, when the
// caller presents the elevated token. Any other token gets nothing.
func (c *Channel) Records(token string) []Record {
	if c.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(c.token)) != 1 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.full {
		out := make([]Record, c.next)
		copy(out, c.records[:c.next])
		return out
	}

	out := make([]Record, 0, c.capacity)
	out = append(out, c.records[c.next:]...)
	out = append(out, c.records[:c.next]...)
	return out
}

// Len returns how many records are currently buffered.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return c.capacity
	}
	return c.next
}

// CanceledMessage is shown when a job stops because the operator
// canceled the batch, not because anything failed.
const CanceledMessage = "작업이 취소되어 업로드가 중단되었습니다."

// UserMessage maps an error category to the concise localized message
// shown to marketers. No platform payloads or stack detail.
func UserMessage(kind errors.ErrorType) string {
	switch kind {
	case errors.ErrorTypeValidation:
		return "업로드 전 검증에 실패했습니다. 파일 구성과 형식을 확인해 주세요."
	case errors.ErrorTypeAuthentication:
		return "계정 인증에 실패했습니다. 액세스 토큰을 확인해 주세요."
	case errors.ErrorTypeRateLimit:
		return "요청이 많아 잠시 후 다시 시도합니다."
	case errors.ErrorTypeConnection, errors.ErrorTypeTimeout:
		return "네트워크 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."
	case errors.ErrorTypeRejection:
		return "광고 플랫폼에서 소재를 거부했습니다. 소재 정책을 확인해 주세요."
	case errors.ErrorTypeCapability:
		return "현재 모드에서는 허용되지 않는 작업입니다."
	case errors.ErrorTypeFile:
		return "파일 처리 중 오류가 발생했습니다."
	default:
		return "처리 중 오류가 발생했습니다. 관리자에게 문의해 주세요."
	}
}

package meta

import (
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/supercrema/adforge/pkg/errors"
)

// graphError is the error envelope the Graph API returns.
type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		UserMessage  string `json:"error_user_msg"`
		IsTransient  bool   `json:"is_transient"`
		TraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

// Rate-limit error codes: request throttling (4, 17, 32), ads API
// throttling (613), business-use-case throttling (80004).
var rateLimitCodes = map[int]bool{
	4: true, 17: true, 32: true, 613: true, 80004: true,
}

// transientSubcodes covers transient upload faults worth resuming, most
// notably the video chunk timeout.
var transientSubcodes = map[int]bool{
	1885252: true,
	2:       true,
}

// classifyResponse turns a non-2xx Graph response into a taxonomy error.
// The response body is consumed.
func classifyResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var ge graphError
	if err := json.Unmarshal(body, &ge); err != nil || ge.Error.Code == 0 && ge.Error.Message == "" {
		return errors.Newf(errors.ErrorTypeConnection, "graph api status %d", resp.StatusCode).
			WithDetail("body", string(body))
	}

	e := ge.Error
	detail := func(base *errors.Error) *errors.Error {
		return base.
			WithDetail("code", e.Code).
			WithDetail("subcode", e.ErrorSubcode).
			WithDetail("trace_id", e.TraceID).
			WithDetail("platform_message", e.Message)
	}

	switch {
	case e.Code == 190:
		return detail(errors.Newf(errors.ErrorTypeAuthentication, "graph auth error: %s", e.Message))

	case rateLimitCodes[e.Code]:
		err := detail(errors.Newf(errors.ErrorTypeRateLimit, "graph rate limit (code %d): %s", e.Code, e.Message))
		return err.WithRetryAfter(retryAfterHint(resp))

	case transientSubcodes[e.ErrorSubcode] || e.IsTransient:
		return detail(errors.Newf(errors.ErrorTypeConnection, "graph transient error (subcode %d): %s", e.ErrorSubcode, e.Message))

	default:
		rej := detail(errors.Newf(errors.ErrorTypeRejection, "graph rejected request (code %d): %s", e.Code, e.Message))
		if e.UserMessage != "" {
			rej = rej.WithDetail("user_message", e.UserMessage)
		}
		return rej
	}
}

// retryAfterHint extracts the suggested delay from a throttled response,
// defaulting to 60 seconds when the platform gives none.
func retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 60 * time.Second
}

package toggl

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed upstream call.
type Kind int

const (
	// HardFailure is any non-2xx other than 402/429, a network fault or a timeout.
	HardFailure Kind = iota
	// RateLimited is a 429 response.
	RateLimited
	// QuotaExhausted is a 402 response.
	QuotaExhausted
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case QuotaExhausted:
		return "quota_exhausted"
	default:
		return "hard_failure"
	}
}

// Response headers Toggl uses to describe limits.
const (
	HeaderRetryAfter     = "Retry-After"
	HeaderQuotaRemaining = "X-Toggl-Quota-Remaining"
	HeaderQuotaResetsIn  = "X-Toggl-Quota-Resets-In"
)

// UpstreamError is the failure outcome of a Toggl call. Header hints are
// carried verbatim and are empty when Toggl did not send them.
type UpstreamError struct {
	Kind           Kind
	StatusCode     int // 0 when no response was received
	RetryAfter     string
	QuotaRemaining string
	QuotaResetsIn  string
	Message        string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("toggl %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("toggl %s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

// HTTPStatus is the status to report to callers when no cached fallback exists.
func (e *UpstreamError) HTTPStatus() int {
	switch e.Kind {
	case RateLimited:
		return http.StatusTooManyRequests
	case QuotaExhausted:
		return http.StatusPaymentRequired
	}
	if e.StatusCode >= 400 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// AsUpstreamError extracts an *UpstreamError from err. Any other non-nil
// error is reported as a HardFailure.
func AsUpstreamError(err error) *UpstreamError {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	return &UpstreamError{Kind: HardFailure, Message: err.Error()}
}

// classifyResponse builds the error for a non-2xx response.
func classifyResponse(resp *http.Response, body []byte) *UpstreamError {
	ue := &UpstreamError{
		StatusCode:     resp.StatusCode,
		RetryAfter:     resp.Header.Get(HeaderRetryAfter),
		QuotaRemaining: resp.Header.Get(HeaderQuotaRemaining),
		QuotaResetsIn:  resp.Header.Get(HeaderQuotaResetsIn),
		Message:        fmt.Sprintf("toggl request failed (%d)", resp.StatusCode),
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		ue.Kind = RateLimited
	case http.StatusPaymentRequired:
		ue.Kind = QuotaExhausted
	default:
		ue.Kind = HardFailure
		if len(body) > 0 {
			ue.Message = fmt.Sprintf("%s: %s", ue.Message, truncate(string(body), 200))
		}
	}
	return ue
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

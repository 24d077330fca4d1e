package dispatcher

import (
	"context"
	"errors"
	"strings"

	"github.com/local/pdfrename/internal/ai"
)

// Error classes used in logs and the provider_requests_total result label.
const (
	ClassOK          = "ok"
	ClassRateLimited = "rate_limited"
	ClassRefused     = "content_refused"
	ClassTimeout     = "timeout"
	ClassTransient   = "transient"
	ClassFatal       = "fatal"
	ClassUnknown     = "unknown"
)

// Classify buckets a provider error. Nothing is retried; the class only
// tells the operator whether re-running the batch is likely to help.
func Classify(err error) string {
	switch {
	case err == nil:
		return ClassOK
	case ai.IsRateLimited(err):
		return ClassRateLimited
	case ai.IsContentRefused(err):
		return ClassRefused
	case isTimeoutError(err):
		return ClassTimeout
	case isFatalError(err):
		return ClassFatal
	case isTransientError(err):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

func isTransientError(err error) bool {
	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		// 5xx server errors are transient
		return httpErr.StatusCode >= 500 && httpErr.StatusCode < 600
	}

	// Network errors (connection issues)
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof")
}

// isFatalError reports errors a re-run will not fix without a config change.
func isFatalError(err error) bool {
	if errors.Is(err, ai.ErrMissingAPIKey) || errors.Is(err, ai.ErrUnknownProvider) {
		return true
	}

	// HTTP 4xx errors (except 429)
	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "invalid request") ||
		strings.Contains(errStr, "bad request")
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

package tmdb

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Error types reported to the limiter.
const (
	ErrorTypeRateLimited = "rate_limited"
	ErrorTypeServer      = "server_error"
	ErrorTypeClient      = "client_error"
	ErrorTypeTimeout     = "timeout"
	ErrorTypeGeneral     = "general"
)

// ErrorType classifies err for the limiter's error log.
func ErrorType(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return ErrorTypeRateLimited
		case apiErr.StatusCode >= 500:
			return ErrorTypeServer
		default:
			return ErrorTypeClient
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}
	return ErrorTypeGeneral
}

// IsUpstreamFailure reports whether err means TMDb is unhealthy or pushing
// back. A 404 or other client error says nothing about upstream health, and
// a caller canceling its own request is not TMDb's fault.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, context.Canceled) {
		return false
	}
	return ErrorType(err) != ErrorTypeClient
}

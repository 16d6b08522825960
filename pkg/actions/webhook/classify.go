package webhook

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/hivecrm/journey/pkg/retry"
)

// classifyStatus maps an HTTP status code to a failure category and retry
// eligibility: 2xx succeeds, 4xx is a client error retried only on 429,
// 5xx is always retryable.
func classifyStatus(code int) (retry.Category, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusTooManyRequests:
		return retry.CategoryRateLimit, true
	case code == http.StatusUnauthorized:
		return retry.CategoryAuthentication, false
	case code == http.StatusForbidden:
		return retry.CategoryAuthorization, false
	case code >= 400 && code < 500:
		return retry.CategoryClientError, false
	default:
		return retry.CategoryServerError, true
	}
}

// classifyTransportError maps network, DNS, TLS and timeout failures. All
// transport failures are retryable.
func classifyTransportError(err error) retry.Category {
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.CategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.CategoryTimeout
	}

	return retry.CategoryNetwork
}

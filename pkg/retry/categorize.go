package retry

import "strings"

// categoryKeywords maps substrings of lower-cased error text to a failure
// category. Earlier entries win, so more specific phrases come first.
var categoryKeywords = []struct {
	keyword  string
	category Category
}{
	{"rate limit", CategoryRateLimit},
	{"too many requests", CategoryRateLimit},
	{"429", CategoryRateLimit},
	{"timeout", CategoryTimeout},
	{"timed out", CategoryTimeout},
	{"deadline exceeded", CategoryTimeout},
	{"unauthorized", CategoryAuthentication},
	{"authentication", CategoryAuthentication},
	{"invalid credentials", CategoryAuthentication},
	{"forbidden", CategoryAuthorization},
	{"permission denied", CategoryAuthorization},
	{"access denied", CategoryAuthorization},
	{"validation", CategoryValidation},
	{"invalid configuration", CategoryValidation},
	{"bad request", CategoryValidation},
	{"connection refused", CategoryNetwork},
	{"connection reset", CategoryNetwork},
	{"no such host", CategoryNetwork},
	{"dns", CategoryNetwork},
	{"network", CategoryNetwork},
	{"tls", CategoryNetwork},
	{"server error", CategoryServerError},
	{"internal server", CategoryServerError},
	{"bad gateway", CategoryServerError},
	{"service unavailable", CategoryServerError},
	{"circuit breaker", CategoryServerError},
}

// Categorize classifies an error by keyword matching over its lower-cased
// text. Errors that match nothing are CategoryUnknown, which the policy
// treats as retryable.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	text := strings.ToLower(err.Error())
	for _, entry := range categoryKeywords {
		if strings.Contains(text, entry.keyword) {
			return entry.category
		}
	}

	return CategoryUnknown
}

package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const maxURLLength = 2048

// URL validation errors.
var (
	ErrURLTooLong       = errors.New("validation: url exceeds maximum length")
	ErrURLScheme        = errors.New("validation: url scheme must be http or https")
	ErrURLForbiddenHost = errors.New("validation: url host is not allowed")
	ErrURLUnresolvable  = errors.New("validation: url host does not resolve")
)

// URLValidator screens webhook targets before dispatch. Loopback,
// link-local (including the cloud metadata service), private-range and
// unspecified addresses are refused, for literal IPs and for every address
// a hostname resolves to.
type URLValidator struct {
	lookup func(ctx context.Context, host string) ([]net.IP, error)

	// allowPrivate disables the address screen so tests can target local
	// listeners.
	allowPrivate bool
}

// NewURLValidator returns a validator using the default DNS resolver.
func NewURLValidator() *URLValidator {
	return &URLValidator{lookup: func(ctx context.Context, host string) ([]net.IP, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		addrs, err := net.DefaultResolver.LookupIPAddr(lookupCtx, host)
		if err != nil {
			return nil, err
		}

		ips := make([]net.IP, len(addrs))
		for i, a := range addrs {
			ips[i] = a.IP
		}

		return ips, nil
	}}
}

// NewURLValidatorWithLookup returns a validator with a custom resolver, for
// tests.
func NewURLValidatorWithLookup(lookup func(ctx context.Context, host string) ([]net.IP, error)) *URLValidator {
	return &URLValidator{lookup: lookup}
}

// Validate checks a webhook URL for scheme, length and target address
// safety. Validation failures are never retried.
func (v *URLValidator) Validate(ctx context.Context, rawURL string) error {
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("%w (%d > %d)", ErrURLTooLong, len(rawURL), maxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("validation: invalid url: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w, got %q", ErrURLScheme, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrURLForbiddenHost)
	}

	if v.allowPrivate {
		return nil
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("%w: %s", ErrURLForbiddenHost, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := screenIP(ip); err != nil {
			return fmt.Errorf("%w: %s", err, host)
		}

		return nil
	}

	ips, err := v.lookup(ctx, host)
	if err != nil || len(ips) == 0 {
		return fmt.Errorf("%w: %s", ErrURLUnresolvable, host)
	}

	for _, ip := range ips {
		if err := screenIP(ip); err != nil {
			return fmt.Errorf("%w: %s resolves to %s", err, host, ip)
		}
	}

	return nil
}

// newPermissiveValidator skips address screening entirely. Test use only.
func newPermissiveValidator() *URLValidator {
	return &URLValidator{allowPrivate: true}
}

// screenIP refuses addresses that should never receive tenant-configured
// webhooks: loopback, link-local (which covers 169.254.169.254), private
// ranges and the unspecified address.
func screenIP(ip net.IP) error {
	switch {
	case ip.IsLoopback(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsPrivate(),
		ip.IsUnspecified():
		return ErrURLForbiddenHost
	default:
		return nil
	}
}

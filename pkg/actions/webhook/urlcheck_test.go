package webhook

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLookup(ips map[string][]string) func(ctx context.Context, host string) ([]net.IP, error) {
	return func(_ context.Context, host string) ([]net.IP, error) {
		addrs, ok := ips[host]
		if !ok {
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		}

		out := make([]net.IP, len(addrs))
		for i, a := range addrs {
			out[i] = net.ParseIP(a)
		}

		return out, nil
	}
}

func TestURLValidator(t *testing.T) {
	v := NewURLValidatorWithLookup(fakeLookup(map[string][]string{
		"api.example.com": {"93.184.216.34"},
		"internal.corp":   {"10.1.2.3"},
		"metadata.sneaky": {"169.254.169.254"},
	}))

	ctx := context.Background()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"valid https", "https://api.example.com/webhook", nil},
		{"valid http", "http://api.example.com/webhook", nil},
		{"loopback ip", "http://127.0.0.1/x", ErrURLForbiddenHost},
		{"metadata service", "http://169.254.169.254/latest/meta-data/", ErrURLForbiddenHost},
		{"localhost name", "http://localhost:8080/hook", ErrURLForbiddenHost},
		{"localhost subdomain", "http://evil.localhost/hook", ErrURLForbiddenHost},
		{"private ip literal", "https://192.168.1.10/hook", ErrURLForbiddenHost},
		{"ten-range literal", "https://10.0.0.5/hook", ErrURLForbiddenHost},
		{"unspecified", "http://0.0.0.0/hook", ErrURLForbiddenHost},
		{"host resolving to private range", "https://internal.corp/hook", ErrURLForbiddenHost},
		{"host resolving to metadata", "https://metadata.sneaky/hook", ErrURLForbiddenHost},
		{"unresolvable host", "https://nope.invalid/hook", ErrURLUnresolvable},
		{"ftp scheme", "ftp://api.example.com/hook", ErrURLScheme},
		{"too long", "https://api.example.com/" + strings.Repeat("a", maxURLLength), ErrURLTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(ctx, tt.url)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

// Package webhook executes outbound webhook calls with merge-field
// interpolation, SSRF screening, per-endpoint circuit breaking and a
// bounded fixed-schedule retry loop.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hivecrm/journey/pkg/breaker"
	"github.com/hivecrm/journey/pkg/retry"
	"github.com/hivecrm/journey/pkg/template"
	retrylib "github.com/sethvargo/go-retry"
)

// Dispatch limits.
const (
	DefaultTimeoutSeconds = 30
	MinTimeoutSeconds     = 1
	MaxTimeoutSeconds     = 120
	MinAttempts           = 1
	MaxAttempts           = 5
	MaxPayloadBytes       = 1 << 20 // 1MB, enforced before the call
	MaxResponseSnapshot   = 10 << 10
	DefaultMaxInflight    = 1000

	TruncationMarker = "...[truncated]"
)

// DefaultSchedule is the fixed retry schedule for webhook attempts. It is
// intentionally distinct from the generic exponential retry policy.
var DefaultSchedule = []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Request is one webhook call after interpolation.
type Request struct {
	Method         string
	URL            string
	Headers        map[string]string
	Body           map[string]any
	TimeoutSeconds int
	MaxAttempts    int

	// FieldMappings extracts values from the JSON response into named
	// outputs: output name -> dotted path into the response body.
	FieldMappings map[string]string
}

// Response is the classified outcome of the final attempt.
type Response struct {
	StatusCode int
	Body       string
	Truncated  bool
	Outputs    map[string]any
	Attempts   int
	DurationMs int64
}

// Client executes webhook requests. One Client is shared process-wide so
// the in-flight semaphore and circuit breaker actually bound global load.
type Client struct {
	httpClient *http.Client
	breaker    *breaker.Breaker
	validator  *URLValidator
	inflight   chan struct{}
	schedule   []time.Duration
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSchedule overrides the fixed retry schedule.
func WithSchedule(schedule []time.Duration) ClientOption {
	return func(c *Client) { c.schedule = schedule }
}

// WithMaxInflight overrides the global concurrent-call cap.
func WithMaxInflight(n int) ClientOption {
	return func(c *Client) { c.inflight = make(chan struct{}, n) }
}

// WithValidator overrides the URL validator, for tests.
func WithValidator(v *URLValidator) ClientOption {
	return func(c *Client) { c.validator = v }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(logger *slog.Logger, brk *breaker.Breaker, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		breaker:    brk,
		validator:  NewURLValidator(),
		inflight:   make(chan struct{}, DefaultMaxInflight),
		schedule:   DefaultSchedule,
		logger:     logger.With("module", "webhook_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do validates, interpolates and dispatches a webhook request, retrying on
// the fixed schedule up to the request's attempt budget. Transport and
// server failures never escape as errors from the retry loop; the final
// classified outcome is returned alongside the response.
func (c *Client) Do(ctx context.Context, req Request, facts map[string]any) (Response, error) {
	interpolated, err := c.prepare(ctx, req, facts)
	if err != nil {
		return Response{}, err
	}

	attempts := req.MaxAttempts
	if attempts < MinAttempts {
		attempts = MinAttempts
	} else if attempts > MaxAttempts {
		attempts = MaxAttempts
	}

	endpoint := endpointKey(interpolated.url)

	var resp Response

	start := time.Now()

	b := retrylib.WithMaxRetries(uint64(attempts-1), scheduleBackoff(c.schedule))

	err = retrylib.Do(ctx, b, func(ctx context.Context) error {
		resp.Attempts++

		if allowErr := c.breaker.Allow(endpoint); allowErr != nil {
			c.logger.WarnContext(ctx, "Circuit open, refusing webhook call",
				"endpoint", endpoint)

			return retrylib.RetryableError(allowErr)
		}

		attemptErr := c.attempt(ctx, interpolated, &resp)
		if attemptErr == nil {
			c.breaker.RecordSuccess(endpoint)

			return nil
		}

		c.breaker.RecordFailure(endpoint)

		category, retryable := classifyAttemptError(attemptErr, resp.StatusCode)
		c.logger.WarnContext(ctx, "Webhook attempt failed",
			"endpoint", endpoint,
			"attempt", resp.Attempts,
			"category", string(category),
			"error", attemptErr)

		if retryable {
			return retrylib.RetryableError(attemptErr)
		}

		return attemptErr
	})

	resp.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		return resp, err
	}

	resp.Outputs = extractOutputs(resp.Body, req.FieldMappings)

	return resp, nil
}

type preparedRequest struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
	timeout time.Duration
}

func (c *Client) prepare(ctx context.Context, req Request, facts map[string]any) (preparedRequest, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	if !allowedMethods[method] {
		return preparedRequest{}, fmt.Errorf("validation: method %q not allowed", req.Method)
	}

	target := template.Interpolate(req.URL, facts)
	if err := c.validator.Validate(ctx, target); err != nil {
		return preparedRequest{}, err
	}

	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = template.Interpolate(v, facts)
	}

	var body []byte
	if req.Body != nil {
		payload, err := json.Marshal(template.InterpolateMap(req.Body, facts))
		if err != nil {
			return preparedRequest{}, fmt.Errorf("validation: body not serializable: %w", err)
		}

		if len(payload) > MaxPayloadBytes {
			return preparedRequest{}, fmt.Errorf("validation: payload %d bytes exceeds %d byte cap", len(payload), MaxPayloadBytes)
		}

		body = payload
	}

	timeoutSec := req.TimeoutSeconds
	if timeoutSec == 0 {
		timeoutSec = DefaultTimeoutSeconds
	}

	if timeoutSec < MinTimeoutSeconds || timeoutSec > MaxTimeoutSeconds {
		return preparedRequest{}, fmt.Errorf("validation: timeout %ds outside [%d,%d]", timeoutSec, MinTimeoutSeconds, MaxTimeoutSeconds)
	}

	return preparedRequest{
		method:  method,
		url:     target,
		headers: headers,
		body:    body,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// attempt performs one HTTP call holding an in-flight permit for its
// duration only; the permit is never held across backoff sleeps.
func (c *Client) attempt(ctx context.Context, req preparedRequest, resp *Response) error {
	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.inflight }()

	callCtx, cancel := context.WithTimeout(ctx, req.timeout)
	defer cancel()

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.method, req.url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		resp.StatusCode = 0

		return fmt.Errorf("%s: %w", classifyTransportError(err), err)
	}
	defer httpResp.Body.Close()

	resp.StatusCode = httpResp.StatusCode
	resp.Body, resp.Truncated = readSnapshot(httpResp.Body)

	if category, _ := classifyStatus(httpResp.StatusCode); category != "" {
		return fmt.Errorf("%s: webhook returned status %d", category, httpResp.StatusCode)
	}

	return nil
}

// readSnapshot reads at most MaxResponseSnapshot bytes of the body and
// appends an explicit marker when the body was longer.
func readSnapshot(r io.Reader) (string, bool) {
	buf, err := io.ReadAll(io.LimitReader(r, MaxResponseSnapshot+1))
	if err != nil {
		return "", false
	}

	if len(buf) > MaxResponseSnapshot {
		return string(buf[:MaxResponseSnapshot]) + TruncationMarker, true
	}

	return string(buf), false
}

// extractOutputs resolves dotted-path field mappings against the JSON
// response body. Paths that do not resolve are simply absent from the
// outputs.
func extractOutputs(body string, mappings map[string]string) map[string]any {
	if len(mappings) == 0 || body == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil
	}

	outputs := make(map[string]any, len(mappings))

	for name, path := range mappings {
		if value, ok := template.Lookup(parsed, path); ok {
			outputs[name] = value
		}
	}

	if len(outputs) == 0 {
		return nil
	}

	return outputs
}

func classifyAttemptError(err error, statusCode int) (retry.Category, bool) {
	if statusCode > 0 {
		return classifyStatus(statusCode)
	}

	category := retry.Categorize(err)
	if category == retry.CategoryUnknown {
		category = retry.CategoryNetwork
	}

	return category, true
}

// scheduleBackoff walks the fixed schedule, repeating the final delay when
// attempts outnumber schedule entries.
func scheduleBackoff(schedule []time.Duration) retrylib.Backoff {
	index := 0

	return retrylib.BackoffFunc(func() (time.Duration, bool) {
		delay := schedule[len(schedule)-1]
		if index < len(schedule) {
			delay = schedule[index]
		}

		index++

		return delay, false
	})
}

func endpointKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	return parsed.Scheme + "://" + parsed.Host
}

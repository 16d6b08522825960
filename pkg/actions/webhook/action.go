package webhook

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
)

const ActionType = "webhook_call"

// Action adapts the webhook client to the action interface. Failures are
// reported through the ExecutionResult with retry hints; they never cross
// the executor boundary as errors.
type Action struct {
	client  *Client
	request Request
}

func newAction(client *Client, config map[string]any) (*Action, error) {
	req := Request{
		Method: stringValue(config["method"]),
		URL:    stringValue(config["url"]),
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		req.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			req.Headers[k] = stringValue(v)
		}
	}

	if body, ok := config["body"].(map[string]any); ok {
		req.Body = body
	}

	if n, ok := numberValue(config["timeout_seconds"]); ok {
		req.TimeoutSeconds = int(n)
	}

	if n, ok := numberValue(config["retry_max_attempts"]); ok {
		req.MaxAttempts = int(n)
	}

	if mappings, ok := config["field_mappings"].(map[string]any); ok {
		req.FieldMappings = make(map[string]string, len(mappings))
		for name, path := range mappings {
			req.FieldMappings[name] = stringValue(path)
		}
	}

	return &Action{client: client, request: req}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (models.ExecutionResult, error) {
	resp, err := a.client.Do(ctx, a.request, actionCtx.Facts)

	data := map[string]any{
		"status_code": resp.StatusCode,
		"body":        resp.Body,
		"attempts":    resp.Attempts,
	}

	if resp.Truncated {
		data["body_truncated"] = true
	}

	for name, value := range resp.Outputs {
		data[name] = value
	}

	if err != nil {
		result := models.FailureResult(err.Error(), isRetryableFailure(err))
		result.Data = data

		return result, nil
	}

	logger.InfoContext(ctx, "Webhook call succeeded",
		"status_code", resp.StatusCode,
		"attempts", resp.Attempts)

	return models.SuccessResult(data), nil
}

// isRetryableFailure reports whether the engine-level retry loop may try
// the whole webhook action again. Validation failures are final; everything
// else already exhausted the inner schedule and stays eligible for the
// outer policy.
func isRetryableFailure(err error) bool {
	return !strings.Contains(strings.ToLower(err.Error()), "validation")
}

type actionFactory struct {
	client *Client
}

// NewFactory builds the webhook_call factory around a shared client.
func NewFactory(client *Client) protocol.ActionFactory {
	return &actionFactory{client: client}
}

func (f *actionFactory) ID() string { return ActionType }

func (f *actionFactory) Create(config map[string]any) (protocol.Action, error) {
	return newAction(f.client, config)
}

func (f *actionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL; merge fields are interpolated before dispatch",
			},
			"headers": map[string]any{"type": "object"},
			"body":    map[string]any{"type": "object"},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"minimum": MinTimeoutSeconds,
				"maximum": MaxTimeoutSeconds,
			},
			"retry_max_attempts": map[string]any{
				"type":    "number",
				"minimum": MinAttempts,
				"maximum": MaxAttempts,
			},
			"field_mappings": map[string]any{
				"type":        "object",
				"description": "Output name to dotted response path",
			},
		},
		"required": []string{"url"},
	}
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}

func numberValue(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	default:
		return 0, false
	}
}

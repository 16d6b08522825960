package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecrm/journey/pkg/conditions"
	"github.com/hivecrm/journey/pkg/contacts"
	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence/memory"
	"github.com/hivecrm/journey/pkg/registry"
	"github.com/hivecrm/journey/pkg/services"
	"github.com/hivecrm/journey/pkg/web"
	"github.com/hivecrm/journey/pkg/workflow"
)

type testEnv struct {
	app   *fiber.App
	store *memory.Persistence
	facts *contacts.MemoryStore
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	factsStore := contacts.NewMemoryStore()

	reg := registry.NewRegistry(logger)
	conditions.RegisterDefaults(reg)

	engine := workflow.NewEngine(logger, store, reg, factsStore)
	journeyService := services.NewJourney(logger, store, engine)
	handlers := web.NewAPIHandlers(journeyService, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return &testEnv{app: app, store: store, facts: factsStore}
}

func (env *testEnv) seedWorkflow(t *testing.T, status models.WorkflowStatus) *models.Workflow {
	t.Helper()

	wf := &models.Workflow{
		ID:        "wf-1",
		AccountID: "acct-1",
		Name:      "Welcome series",
		Status:    status,
		Version:   1,
		Trigger:   models.TriggerConfig{EventType: models.GoalTagAdded},
	}
	require.NoError(t, env.store.SaveWorkflow(context.Background(), wf))

	return wf
}

func (env *testEnv) seedContact(id string) {
	env.facts.Put(&models.ContactFacts{ContactID: id, AccountID: "acct-1", Tags: []string{"lead"}})
}

func (env *testEnv) seedExecution(t *testing.T, id string, status models.ExecutionStatus) {
	t.Helper()

	require.NoError(t, env.store.SaveExecution(context.Background(), &models.Execution{
		ID:         id,
		WorkflowID: "wf-1",
		ContactID:  "c-1",
		AccountID:  "acct-1",
		Status:     status,
		StartedAt:  time.Now().UTC(),
	}))
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	var body []byte
	if str, ok := payload.(string); ok {
		body = []byte(str)
	} else {
		var err error

		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, out))
}

func TestEnrollContact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		workflowStatus models.WorkflowStatus
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "accepted",
			workflowStatus: models.WorkflowStatusActive,
			requestBody:    web.EnrollRequest{WorkflowID: "wf-1", ContactID: "c-1"},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "missing contact id",
			workflowStatus: models.WorkflowStatusActive,
			requestBody:    web.EnrollRequest{WorkflowID: "wf-1"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown workflow",
			workflowStatus: models.WorkflowStatusActive,
			requestBody:    web.EnrollRequest{WorkflowID: "wf-missing", ContactID: "c-1"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "inactive workflow conflicts",
			workflowStatus: models.WorkflowStatusDraft,
			requestBody:    web.EnrollRequest{WorkflowID: "wf-1", ContactID: "c-1"},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "invalid JSON",
			workflowStatus: models.WorkflowStatusActive,
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)
			env.seedWorkflow(t, tt.workflowStatus)
			env.seedContact("c-1")

			resp := postJSON(t, env.app, "/executions/", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusAccepted {
				var execution models.Execution
				decodeBody(t, resp, &execution)
				assert.NotEmpty(t, execution.ID)
				assert.Equal(t, "c-1", execution.ContactID)
			}
		})
	}
}

func TestGetExecution(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seedWorkflow(t, models.WorkflowStatusActive)
	env.seedExecution(t, "exec-1", models.ExecutionStatusCompleted)

	req := httptest.NewRequest(http.MethodGet, "/executions/exec-1", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var execution models.Execution
	decodeBody(t, resp, &execution)
	assert.Equal(t, "exec-1", execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	req = httptest.NewRequest(http.MethodGet, "/executions/exec-missing", nil)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetExecutionLogs(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seedExecution(t, "exec-1", models.ExecutionStatusCompleted)

	require.NoError(t, env.store.AppendExecutionLog(context.Background(), &models.ExecutionLog{
		ID:          "log-1",
		ExecutionID: "exec-1",
		StepID:      "step-1",
		ActionType:  "webhook_call",
		Attempt:     1,
		Status:      models.LogStatusSuccess,
		CreatedAt:   time.Now().UTC(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/executions/exec-1/logs", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		ExecutionID string                 `json:"execution_id"`
		Logs        []*models.ExecutionLog `json:"logs"`
	}
	decodeBody(t, resp, &payload)
	require.Len(t, payload.Logs, 1)
	assert.Equal(t, "step-1", payload.Logs[0].StepID)
}

func TestCancelExecution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         models.ExecutionStatus
		expectedStatus int
	}{
		{name: "waiting cancels", status: models.ExecutionStatusWaiting, expectedStatus: http.StatusOK},
		{name: "queued cancels", status: models.ExecutionStatusQueued, expectedStatus: http.StatusOK},
		{name: "completed conflicts", status: models.ExecutionStatusCompleted, expectedStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)
			env.seedExecution(t, "exec-1", tt.status)

			resp := postJSON(t, env.app, "/executions/exec-1/cancel", web.CancelRequest{Reason: "operator request"})
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var execution models.Execution
				decodeBody(t, resp, &execution)
				assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
			}
		})
	}
}

func TestRetryExecution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         models.ExecutionStatus
		retryCount     int
		expectedStatus int
	}{
		{name: "failed accepted", status: models.ExecutionStatusFailed, expectedStatus: http.StatusAccepted},
		{name: "active conflicts", status: models.ExecutionStatusActive, expectedStatus: http.StatusConflict},
		{name: "budget exhausted", status: models.ExecutionStatusFailed, retryCount: 3, expectedStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)
			env.seedWorkflow(t, models.WorkflowStatusActive)
			env.seedContact("c-1")

			require.NoError(t, env.store.SaveExecution(context.Background(), &models.Execution{
				ID:         "exec-1",
				WorkflowID: "wf-1",
				ContactID:  "c-1",
				AccountID:  "acct-1",
				Status:     tt.status,
				RetryCount: tt.retryCount,
				StartedAt:  time.Now().UTC(),
			}))

			resp := postJSON(t, env.app, "/executions/exec-1/retry", nil)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestGetContactExecutions(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seedExecution(t, "exec-1", models.ExecutionStatusCompleted)

	req := httptest.NewRequest(http.MethodGet, "/contacts/c-1/executions", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		ContactID  string              `json:"contact_id"`
		Executions []*models.Execution `json:"executions"`
	}
	decodeBody(t, resp, &payload)
	require.Len(t, payload.Executions, 1)
	assert.Equal(t, "exec-1", payload.Executions[0].ID)
}

func TestPostContactEvent_WithoutPublisher(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/events", web.ContactEventRequest{
		AccountID: "acct-1",
		ContactID: "c-1",
		EventType: models.GoalTagAdded,
	})

	// No bus wired in this setup; the service rejects the request.
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostContactEvent_ValidationErrors(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/events", web.ContactEventRequest{ContactID: "c-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Status string `json:"status"`
	}
	decodeBody(t, resp, &payload)
	assert.Equal(t, "healthy", payload.Status)
}

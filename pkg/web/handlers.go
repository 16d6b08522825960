// Package web provides the HTTP surface for enrollments and execution
// management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/hivecrm/journey/pkg/services"
)

type APIHandlers struct {
	journeyService *services.Journey
	validator      *validator.Validate
}

func NewAPIHandlers(journeyService *services.Journey, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		journeyService: journeyService,
		validator:      validator,
	}
}

// RegisterRoutes mounts every handler on the app. Shared between the API
// binary and the handler tests.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	executions := app.Group("/executions")
	executions.Post("/", h.EnrollContact)
	executions.Get("/:id", h.GetExecution)
	executions.Get("/:id/logs", h.GetExecutionLogs)
	executions.Post("/:id/cancel", h.CancelExecution)
	executions.Post("/:id/retry", h.RetryExecution)

	app.Get("/contacts/:contactId/executions", h.GetContactExecutions)
	app.Post("/events", h.PostContactEvent)
	app.Get("/health", h.HealthCheck)
}

// EnrollContact starts a new enrollment. The run happens in the background;
// the response carries the queued execution.
func (h *APIHandlers) EnrollContact(c fiber.Ctx) error {
	var req EnrollRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.journeyService.Enroll(c.Context(), services.EnrollRequest{
		WorkflowID: req.WorkflowID,
		ContactID:  req.ContactID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.journeyService.Execution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	logs, err := h.journeyService.ExecutionLogs(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution_id": id,
		"logs":         logs,
	})
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req CancelRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	execution, err := h.journeyService.Cancel(c.Context(), id, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// RetryExecution re-runs a failed execution from its current step. The run
// happens in the background.
func (h *APIHandlers) RetryExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.journeyService.Retry(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) GetContactExecutions(c fiber.Ctx) error {
	contactID := c.Params("contactId")
	if contactID == "" {
		return badRequest(c, "Contact ID is required")
	}

	executions, err := h.journeyService.ExecutionsByContact(c.Context(), contactID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"contact_id": contactID,
		"executions": executions,
	})
}

// PostContactEvent accepts an observed business event and publishes it for
// trigger matching and goal detection.
func (h *APIHandlers) PostContactEvent(c fiber.Ctx) error {
	var req ContactEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	activity, err := h.journeyService.PostContactEvent(c.Context(), services.ContactEventRequest{
		AccountID: req.AccountID,
		ContactID: req.ContactID,
		EventType: req.EventType,
		Data:      req.Data,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id":   activity.ID,
		"event_type": req.EventType,
		"contact_id": req.ContactID,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.journeyService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Journey API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Journey API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

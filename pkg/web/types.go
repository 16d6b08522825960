package web

// EnrollRequest enrolls a contact into a workflow.
type EnrollRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
	ContactID  string `json:"contact_id"  validate:"required"`
}

// CancelRequest carries the operator's reason for cancelling an execution.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ContactEventRequest reports one business event about a contact.
type ContactEventRequest struct {
	AccountID string         `json:"account_id" validate:"required"`
	ContactID string         `json:"contact_id" validate:"required"`
	EventType string         `json:"event_type" validate:"required"`
	Data      map[string]any `json:"data"`
}

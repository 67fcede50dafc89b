package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/internal/validation"
	"github.com/mawazawa/tro-packet-engine/pkg/workflows"
)

// PacketConfig holds the intake flags that decide which optional forms a
// packet needs.
type PacketConfig struct {
	HasChildren           bool `json:"has_children"`
	RequestChildSupport   bool `json:"request_child_support"`
	RequestSpousalSupport bool `json:"request_spousal_support"`
	NeedsMoreSpace        bool `json:"needs_more_space"`
	HasExistingCase       bool `json:"has_existing_case"`
}

// Metadata carries derived progress fields cached on the workflow row.
type Metadata struct {
	CompletionPercentage      int                     `json:"completion_percentage"`
	EstimatedMinutesRemaining int                     `json:"estimated_minutes_remaining"`
	ValidationErrors          []validation.FieldError `json:"validation_errors,omitempty"`
}

// Workflow is the aggregate root for one user's progress through one packet.
type Workflow struct {
	ID           uuid.UUID                           `json:"id"`
	UserID       uuid.UUID                           `json:"user_id"`
	PacketType   forms.PacketType                    `json:"packet_type"`
	CurrentState workflows.WorkflowState             `json:"current_state"`
	FormStatuses map[forms.FormType]forms.FormStatus `json:"form_statuses"`
	PacketConfig PacketConfig                        `json:"packet_config"`
	FormDataRefs map[forms.FormType]uuid.UUID        `json:"form_data_refs"`
	Metadata     Metadata                            `json:"metadata"`
	CreatedAt    time.Time                           `json:"created_at"`
	UpdatedAt    time.Time                           `json:"updated_at"`
}

// clone returns a deep copy so mutations can be staged and only committed
// to the caller's snapshot after a successful persist.
func (w *Workflow) clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.FormStatuses = make(map[forms.FormType]forms.FormStatus, len(w.FormStatuses))
	for k, v := range w.FormStatuses {
		out.FormStatuses[k] = v
	}
	out.FormDataRefs = make(map[forms.FormType]uuid.UUID, len(w.FormDataRefs))
	for k, v := range w.FormDataRefs {
		out.FormDataRefs[k] = v
	}
	if w.Metadata.ValidationErrors != nil {
		out.Metadata.ValidationErrors = append([]validation.FieldError(nil), w.Metadata.ValidationErrors...)
	}
	return &out
}

// Store is the workflow persistence surface.
type Store interface {
	Get(ctx context.Context, id, userID uuid.UUID) (*Workflow, error)
	Insert(ctx context.Context, wf *Workflow) error
	Update(ctx context.Context, wf *Workflow) error
}

// Step is one entry in the ordered packet walkthrough shown to the UI.
type Step struct {
	Form         forms.FormType   `json:"form"`
	Title        string           `json:"title"`
	Status       forms.FormStatus `json:"status"`
	Required     bool             `json:"required"`
	Dependencies []forms.FormType `json:"dependencies,omitempty"`
}

// AutofillOutcome reports how many fields an autofill pass filled and where
// the values came from.
type AutofillOutcome struct {
	FieldsFilled int    `json:"fields_filled"`
	Source       string `json:"source"`
}

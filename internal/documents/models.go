package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// Document holds the field values and layout metadata for exactly one form
// instance. Rows live in the legal_documents table; workflows reference them
// through their form-data refs.
type Document struct {
	ID             uuid.UUID             `json:"id" db:"id"`
	Title          string                `json:"title" db:"title"`
	FormType       forms.FormType        `json:"form_type" db:"form_type"`
	WorkflowID     uuid.UUID             `json:"workflow_id" db:"workflow_id"`
	UserID         uuid.UUID             `json:"user_id" db:"user_id"`
	Content        map[string]any        `json:"content" db:"-"`
	FieldPositions []forms.FieldPosition `json:"field_positions" db:"-"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" db:"updated_at"`
}

// InsertRequest carries the fields needed to create a document.
type InsertRequest struct {
	Title          string
	FormType       forms.FormType
	WorkflowID     uuid.UUID
	UserID         uuid.UUID
	Content        map[string]any
	FieldPositions []forms.FieldPosition
}

// UpdatePatch carries a partial document update. Nil fields are left as-is.
type UpdatePatch struct {
	Content        map[string]any
	FieldPositions []forms.FieldPosition
	UpdatedAt      time.Time
}

package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/internal/validation"
)

// ErrorCode categorizes workflow failures.
type ErrorCode string

const (
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeMissingDependency ErrorCode = "MISSING_DEPENDENCY"
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeSaveFailed        ErrorCode = "SAVE_FAILED"
	CodeLoadFailed        ErrorCode = "LOAD_FAILED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
)

// WorkflowError is the single structured error type every mutating operation
// returns. The in-memory workflow is untouched whenever one is returned.
type WorkflowError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Context   map[string]string

	// Unmet names the blocking forms for MISSING_DEPENDENCY errors.
	Unmet []forms.FormType
	// Validation carries field errors for VALIDATION_FAILED errors.
	Validation []validation.FieldError

	cause error
}

func (e *WorkflowError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WorkflowError) Unwrap() error {
	return e.cause
}

func invalidTransition(from, to string) *WorkflowError {
	return &WorkflowError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Context: map[string]string{"from": from, "to": to},
	}
}

func missingDependency(form forms.FormType, unmet []forms.FormType) *WorkflowError {
	names := make([]string, len(unmet))
	for i, f := range unmet {
		names[i] = string(f)
	}
	return &WorkflowError{
		Code:    CodeMissingDependency,
		Message: fmt.Sprintf("%s requires %s to be completed first", form, strings.Join(names, ", ")),
		Context: map[string]string{"form": string(form), "unmet_forms": strings.Join(names, ",")},
		Unmet:   unmet,
	}
}

func validationFailed(message string, fieldErrors []validation.FieldError) *WorkflowError {
	return &WorkflowError{
		Code:       CodeValidationFailed,
		Message:    message,
		Validation: fieldErrors,
	}
}

func saveFailed(err error) *WorkflowError {
	return &WorkflowError{
		Code:      CodeSaveFailed,
		Message:   "failed to persist workflow",
		Retryable: true,
		cause:     err,
	}
}

func loadFailed(err error) *WorkflowError {
	return &WorkflowError{
		Code:    CodeLoadFailed,
		Message: "failed to load workflow",
		cause:   err,
	}
}

func notFound(what string) *WorkflowError {
	return &WorkflowError{
		Code:    CodeNotFound,
		Message: what + " not found",
	}
}

// AsWorkflowError extracts a *WorkflowError from an error chain.
func AsWorkflowError(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	ok := errors.As(err, &we)
	return we, ok
}

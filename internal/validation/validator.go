package validation

import (
	"fmt"
	"regexp"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// FieldError represents a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result contains the outcome of a validation pass. It is a plain value so
// callers can branch without exception-style handling.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (r *Result) addError(field, code, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, Message: message})
}

// FieldKind is the expected shape of one form field's value.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindDate   FieldKind = "date"
	KindBool   FieldKind = "bool"
	KindNumber FieldKind = "number"
	KindPhone  FieldKind = "phone"
)

// FieldRule describes one field in a form schema.
type FieldRule struct {
	Required  bool
	Kind      FieldKind
	MaxLength int
}

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-().+]{7,20}$`)
)

// formSchemas covers the fields the engine itself cares about. Presentation
// fields beyond these pass through unvalidated.
var formSchemas = map[forms.FormType]map[string]FieldRule{
	forms.FormDV100: {
		"petitioner_name":   {Required: true, Kind: KindText, MaxLength: 120},
		"respondent_name":   {Required: true, Kind: KindText, MaxLength: 120},
		"county":            {Required: true, Kind: KindText, MaxLength: 60},
		"case_number":       {Kind: KindText, MaxLength: 40},
		"relationship":      {Required: true, Kind: KindText, MaxLength: 80},
		"abuse_description": {Kind: KindText, MaxLength: 4000},
		"incident_date":     {Kind: KindDate},
		"phone":             {Kind: KindPhone},
	},
	forms.FormCLETS: {
		"petitioner_name":       {Required: true, Kind: KindText, MaxLength: 120},
		"respondent_name":       {Required: true, Kind: KindText, MaxLength: 120},
		"respondent_dob":        {Kind: KindDate},
		"respondent_height_in":  {Kind: KindNumber},
		"respondent_weight_lbs": {Kind: KindNumber},
	},
	forms.FormDV105: {
		"petitioner_name": {Required: true, Kind: KindText, MaxLength: 120},
		"children_count":  {Required: true, Kind: KindNumber},
		"custody_request": {Kind: KindText, MaxLength: 2000},
	},
	forms.FormDV101: {
		"petitioner_name": {Required: true, Kind: KindText, MaxLength: 120},
		"continued_from":  {Kind: KindText, MaxLength: 40},
		"abuse_continued": {Required: true, Kind: KindText, MaxLength: 8000},
	},
	forms.FormFL150: {
		"petitioner_name":  {Required: true, Kind: KindText, MaxLength: 120},
		"monthly_income":   {Required: true, Kind: KindNumber},
		"monthly_expenses": {Kind: KindNumber},
		"employer_name":    {Kind: KindText, MaxLength: 120},
		"is_self_employed": {Kind: KindBool},
	},
	forms.FormDV120: {
		"respondent_name": {Required: true, Kind: KindText, MaxLength: 120},
		"case_number":     {Required: true, Kind: KindText, MaxLength: 40},
		"agrees_to_order": {Kind: KindBool},
		"response_reason": {Kind: KindText, MaxLength: 4000},
	},
	forms.FormFL320: {
		"respondent_name": {Required: true, Kind: KindText, MaxLength: 120},
		"case_number":     {Required: true, Kind: KindText, MaxLength: 40},
		"hearing_date":    {Kind: KindDate},
		"consent":         {Kind: KindBool},
	},
}

// ValidateFormData checks one form's field values against its schema.
// An unknown form type fails with a single form-level error.
func ValidateFormData(form forms.FormType, content map[string]any) *Result {
	result := &Result{}

	schema, ok := formSchemas[form]
	if !ok {
		result.addError("form", "unknown_form", fmt.Sprintf("No schema for form %s", form))
		result.Valid = false
		return result
	}

	for field, rule := range schema {
		value, present := content[field]
		if !present || value == nil || value == "" {
			if rule.Required {
				result.addError(field, "required", fmt.Sprintf("%s is required", field))
			}
			continue
		}
		validateKind(field, rule, value, result)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func validateKind(field string, rule FieldRule, value any, result *Result) {
	switch rule.Kind {
	case KindText:
		s, ok := value.(string)
		if !ok {
			result.addError(field, "type", fmt.Sprintf("%s must be text", field))
			return
		}
		if rule.MaxLength > 0 && len(s) > rule.MaxLength {
			result.addError(field, "max_length", fmt.Sprintf("%s exceeds %d characters", field, rule.MaxLength))
		}
	case KindDate:
		s, ok := value.(string)
		if !ok || !datePattern.MatchString(s) {
			result.addError(field, "format", fmt.Sprintf("%s must be a YYYY-MM-DD date", field))
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			result.addError(field, "type", fmt.Sprintf("%s must be true or false", field))
		}
	case KindNumber:
		switch value.(type) {
		case int, int64, float64:
		default:
			result.addError(field, "type", fmt.Sprintf("%s must be a number", field))
		}
	case KindPhone:
		s, ok := value.(string)
		if !ok || !phonePattern.MatchString(s) {
			result.addError(field, "format", fmt.Sprintf("%s must be a phone number", field))
		}
	}
}

// ValidateFieldPositions checks layout metadata: every entry must name a
// field, sit on a positive page, and have non-negative geometry.
func ValidateFieldPositions(positions []forms.FieldPosition) *Result {
	result := &Result{}

	for i, pos := range positions {
		path := fmt.Sprintf("fieldPositions[%d]", i)
		if pos.Field == "" {
			result.addError(path+".field", "required", "Field name is required")
		}
		if pos.Page < 1 {
			result.addError(path+".page", "range", "Page must be 1 or greater")
		}
		if pos.X < 0 || pos.Y < 0 {
			result.addError(path, "range", "Coordinates must be non-negative")
		}
		if pos.Width < 0 || pos.Height < 0 {
			result.addError(path, "range", "Dimensions must be non-negative")
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// HasSchema reports whether a form type has a registered schema.
func HasSchema(form forms.FormType) bool {
	_, ok := formSchemas[form]
	return ok
}

package autofill

import (
	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// Patch is a sparse set of fields to pre-populate on a target form.
type Patch struct {
	Fields       map[string]any `json:"fields"`
	Source       string         `json:"source"`
	FieldsFilled int            `json:"fields_filled"`
}

// Sources reported on a Patch.
const (
	SourcePreviousForms = "previous_forms"
	SourceVault         = "vault"
)

// sharedFields are copied between any two forms when present on the source.
// The DV packet repeats party and case identification on every form.
var sharedFields = []string{
	"petitioner_name",
	"respondent_name",
	"case_number",
	"county",
}

// vaultMappings maps vault keys to form fields.
var vaultMappings = map[string]string{
	"full_name":     "petitioner_name",
	"county":        "county",
	"phone":         "phone",
	"case_number":   "case_number",
	"employer_name": "employer_name",
}

// MapFromForms computes a patch for the target form from previously
// completed forms' contents. Later sources in iteration never overwrite
// fields already chosen, and populated target fields are left alone.
func MapFromForms(target map[string]any, sources map[forms.FormType]map[string]any) Patch {
	patch := Patch{Fields: map[string]any{}, Source: SourcePreviousForms}

	// Walk forms in a fixed order so the patch is deterministic; lead forms
	// are the most authoritative source of party information.
	order := []forms.FormType{
		forms.FormDV100, forms.FormDV120, forms.FormCLETS,
		forms.FormDV105, forms.FormDV101, forms.FormFL150, forms.FormFL320,
	}
	for _, form := range order {
		content, ok := sources[form]
		if !ok {
			continue
		}
		for _, field := range sharedFields {
			if _, chosen := patch.Fields[field]; chosen {
				continue
			}
			if populated(target[field]) {
				continue
			}
			if value, ok := content[field]; ok && populated(value) {
				patch.Fields[field] = value
			}
		}
	}

	patch.FieldsFilled = len(patch.Fields)
	return patch
}

// MapFromVault computes a patch for the target form from the user's stored
// personal-data vault. Populated target fields are never overwritten.
func MapFromVault(target map[string]any, vault map[string]any) Patch {
	patch := Patch{Fields: map[string]any{}, Source: SourceVault}

	for vaultKey, field := range vaultMappings {
		if populated(target[field]) {
			continue
		}
		if value, ok := vault[vaultKey]; ok && populated(value) {
			patch.Fields[field] = value
		}
	}

	patch.FieldsFilled = len(patch.Fields)
	return patch
}

func populated(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

package forms

// Dependency is a static prerequisite fact: Dependent cannot be started or
// jumped to until Required is complete or validated.
type Dependency struct {
	Dependent FormType
	Required  FormType
}

// formDependencies is the full prerequisite table for all known forms. The
// identifying information gathered on the lead petition/response form feeds
// every follow-on form, so everything hangs off DV-100 or DV-120.
var formDependencies = []Dependency{
	{Dependent: FormCLETS, Required: FormDV100},
	{Dependent: FormDV105, Required: FormDV100},
	{Dependent: FormDV101, Required: FormDV100},
	{Dependent: FormFL150, Required: FormDV100},
	{Dependent: FormFL320, Required: FormDV120},
}

// AllDependencies returns a copy of the full dependency table.
func AllDependencies() []Dependency {
	out := make([]Dependency, len(formDependencies))
	copy(out, formDependencies)
	return out
}

// Dependencies returns the forms that must be completed before the given form.
func Dependencies(form FormType) []FormType {
	var required []FormType
	for _, dep := range formDependencies {
		if dep.Dependent == form {
			required = append(required, dep.Required)
		}
	}
	return required
}

// AreDependenciesMet reports whether every prerequisite of the form is
// complete or validated in the given status map.
func AreDependenciesMet(form FormType, statuses map[FormType]FormStatus) bool {
	return len(UnmetDependencies(form, statuses)) == 0
}

// UnmetDependencies returns the prerequisites of the form that are not yet
// complete or validated. A form absent from the status map counts as unmet.
func UnmetDependencies(form FormType, statuses map[FormType]FormStatus) []FormType {
	var unmet []FormType
	for _, required := range Dependencies(form) {
		if !statuses[required].Satisfied() {
			unmet = append(unmet, required)
		}
	}
	return unmet
}

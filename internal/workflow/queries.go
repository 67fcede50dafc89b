package workflow

import (
	"math"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/pkg/workflows"
)

// Pure queries derived from the workflow snapshot. All are nil-safe and
// return zero values when no workflow is loaded.

// OrderedForms returns the packet type's canonical form order.
func (w *Workflow) OrderedForms() []forms.FormType {
	if w == nil {
		return nil
	}
	def, ok := forms.Definition(w.PacketType)
	if !ok {
		return nil
	}
	out := make([]forms.FormType, 0, len(def.Order))
	for _, entry := range def.Order {
		out = append(out, entry.Form)
	}
	return out
}

// ActiveForms returns the ordered forms that are not skipped.
func (w *Workflow) ActiveForms() []forms.FormType {
	var active []forms.FormType
	for _, form := range w.OrderedForms() {
		if w.FormStatuses[form] != forms.StatusSkipped {
			active = append(active, form)
		}
	}
	return active
}

// RequiredForms returns the packet type's required form list.
func (w *Workflow) RequiredForms() []forms.FormType {
	if w == nil {
		return nil
	}
	def, ok := forms.Definition(w.PacketType)
	if !ok {
		return nil
	}
	return append([]forms.FormType(nil), def.Required...)
}

// OptionalForms returns the packet type's optional form list.
func (w *Workflow) OptionalForms() []forms.FormType {
	if w == nil {
		return nil
	}
	def, ok := forms.Definition(w.PacketType)
	if !ok {
		return nil
	}
	return append([]forms.FormType(nil), def.Optional...)
}

// CurrentForm returns the form the current state maps to, or false for
// states with no form (selection, review, terminal states).
func (w *Workflow) CurrentForm() (forms.FormType, bool) {
	if w == nil {
		return "", false
	}
	return workflows.FormForState(w.CurrentState)
}

// NextForm returns the next non-skipped form after the current one. From a
// formless state before review it returns the first active form.
func (w *Workflow) NextForm() (forms.FormType, bool) {
	if w == nil {
		return "", false
	}
	if w.CurrentState == workflows.StateReviewInProgress ||
		w.CurrentState == workflows.StateReadyToFile ||
		w.CurrentState == workflows.StateFiled {
		return "", false
	}

	active := w.ActiveForms()
	current, ok := w.CurrentForm()
	if !ok {
		if len(active) == 0 {
			return "", false
		}
		return active[0], true
	}
	for i, form := range active {
		if form == current && i+1 < len(active) {
			return active[i+1], true
		}
	}
	return "", false
}

// PreviousForm returns the nearest non-skipped form before the current one.
// From review it returns the last active form.
func (w *Workflow) PreviousForm() (forms.FormType, bool) {
	if w == nil {
		return "", false
	}
	active := w.ActiveForms()
	if w.CurrentState == workflows.StateReviewInProgress {
		if len(active) == 0 {
			return "", false
		}
		return active[len(active)-1], true
	}
	current, ok := w.CurrentForm()
	if !ok {
		return "", false
	}
	for i, form := range active {
		if form == current && i > 0 {
			return active[i-1], true
		}
	}
	return "", false
}

// FormCompletion returns a single form's completion percentage.
func (w *Workflow) FormCompletion(form forms.FormType) int {
	if w == nil {
		return 0
	}
	switch w.FormStatuses[form] {
	case forms.StatusComplete, forms.StatusValidated:
		return 100
	case forms.StatusInProgress:
		return 50
	default:
		return 0
	}
}

// CompletionPercentage returns the rounded mean completion across all
// non-skipped forms. An empty form set yields 0.
func (w *Workflow) CompletionPercentage() int {
	active := w.ActiveForms()
	if len(active) == 0 {
		return 0
	}
	total := 0
	for _, form := range active {
		total += w.FormCompletion(form)
	}
	return int(math.Round(float64(total) / float64(len(active))))
}

// EstimatedMinutesRemaining sums the time estimates of every non-skipped
// form that is not yet complete or validated. A workflow parked before
// packet selection has no intake underway, so its estimate is zero.
func (w *Workflow) EstimatedMinutesRemaining() int {
	if w == nil {
		return 0
	}
	if w.CurrentState == workflows.StateNotStarted ||
		w.CurrentState == workflows.StatePacketTypeSelection {
		return 0
	}
	minutes := 0
	for _, form := range w.ActiveForms() {
		if !w.FormStatuses[form].Satisfied() {
			minutes += forms.EstimatedMinutes(form)
		}
	}
	return minutes
}

// Steps returns the ordered walkthrough of the packet with each form's
// status and prerequisites.
func (w *Workflow) Steps() []Step {
	if w == nil {
		return nil
	}
	def, ok := forms.Definition(w.PacketType)
	if !ok {
		return nil
	}
	steps := make([]Step, 0, len(def.Order))
	for _, entry := range def.Order {
		steps = append(steps, Step{
			Form:         entry.Form,
			Title:        forms.DisplayName(entry.Form),
			Status:       w.FormStatuses[entry.Form],
			Required:     entry.Required,
			Dependencies: forms.Dependencies(entry.Form),
		})
	}
	return steps
}

// GetDependencies returns the prerequisite forms for the given form.
func (w *Workflow) GetDependencies(form forms.FormType) []forms.FormType {
	return forms.Dependencies(form)
}

// AreDependenciesMet reports whether the form's prerequisites are satisfied
// by the current statuses.
func (w *Workflow) AreDependenciesMet(form forms.FormType) bool {
	if w == nil {
		return false
	}
	return forms.AreDependenciesMet(form, w.FormStatuses)
}

// GetUnmetDependencies returns the form's unsatisfied prerequisites.
func (w *Workflow) GetUnmetDependencies(form forms.FormType) []forms.FormType {
	if w == nil {
		return forms.Dependencies(form)
	}
	return forms.UnmetDependencies(form, w.FormStatuses)
}

// InPacket reports whether a form belongs to this workflow's packet type.
func (w *Workflow) InPacket(form forms.FormType) bool {
	for _, f := range w.OrderedForms() {
		if f == form {
			return true
		}
	}
	return false
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/pkg/workflows"
)

func childrenWorkflowAt(state workflows.WorkflowState) *Workflow {
	return &Workflow{
		PacketType:   forms.PacketInitialRequestChildren,
		CurrentState: state,
		FormStatuses: map[forms.FormType]forms.FormStatus{
			forms.FormDV100: forms.StatusComplete,
			forms.FormDV101: forms.StatusSkipped,
			forms.FormDV105: forms.StatusInProgress,
			forms.FormFL150: forms.StatusSkipped,
			forms.FormCLETS: forms.StatusNotStarted,
		},
	}
}

func TestNextFormSkipsSkipped(t *testing.T) {
	wf := childrenWorkflowAt(workflows.StateDV100Complete)

	// Canonical order is DV-100, DV-101, DV-105, FL-150, CLETS-001; with
	// DV-101 skipped the next form after DV-100 is DV-105.
	next, ok := wf.NextForm()
	assert.True(t, ok)
	assert.Equal(t, forms.FormDV105, next)

	wf.CurrentState = workflows.StateDV105InProgress
	next, ok = wf.NextForm()
	assert.True(t, ok)
	assert.Equal(t, forms.FormCLETS, next)

	wf.CurrentState = workflows.StateCLETSInProgress
	_, ok = wf.NextForm()
	assert.False(t, ok)
}

func TestPreviousFormWalksBack(t *testing.T) {
	wf := childrenWorkflowAt(workflows.StateDV105InProgress)

	previous, ok := wf.PreviousForm()
	assert.True(t, ok)
	assert.Equal(t, forms.FormDV100, previous)

	wf.CurrentState = workflows.StateDV100InProgress
	_, ok = wf.PreviousForm()
	assert.False(t, ok)

	wf.CurrentState = workflows.StateReviewInProgress
	previous, ok = wf.PreviousForm()
	assert.True(t, ok)
	assert.Equal(t, forms.FormCLETS, previous)
}

func TestCompletionPercentage(t *testing.T) {
	wf := childrenWorkflowAt(workflows.StateDV105InProgress)

	// Active: DV-100 (100), DV-105 (50), CLETS (0) -> mean 50.
	assert.Equal(t, 50, wf.CompletionPercentage())

	wf.FormStatuses[forms.FormDV105] = forms.StatusValidated
	wf.FormStatuses[forms.FormCLETS] = forms.StatusComplete
	assert.Equal(t, 100, wf.CompletionPercentage())

	empty := &Workflow{PacketType: forms.PacketInitialRequest, FormStatuses: map[forms.FormType]forms.FormStatus{
		forms.FormDV100: forms.StatusSkipped,
		forms.FormCLETS: forms.StatusSkipped,
	}}
	assert.Equal(t, 0, empty.CompletionPercentage())
}

func TestEstimatedMinutesRemaining(t *testing.T) {
	wf := childrenWorkflowAt(workflows.StateDV105InProgress)

	// DV-100 done; DV-105 and CLETS still owe their full estimates.
	expected := forms.EstimatedMinutes(forms.FormDV105) + forms.EstimatedMinutes(forms.FormCLETS)
	assert.Equal(t, expected, wf.EstimatedMinutesRemaining())
}

func TestEstimatedMinutesZeroBeforePacketSelection(t *testing.T) {
	wf := &Workflow{
		PacketType:   forms.PacketInitialRequestChildren,
		CurrentState: workflows.StatePacketTypeSelection,
		FormStatuses: map[forms.FormType]forms.FormStatus{},
	}
	assert.Zero(t, wf.EstimatedMinutesRemaining())
}

func TestStepsCarryDependenciesAndStatus(t *testing.T) {
	wf := childrenWorkflowAt(workflows.StateDV105InProgress)

	steps := wf.Steps()
	assert.Len(t, steps, 5)
	assert.Equal(t, forms.FormDV100, steps[0].Form)
	assert.True(t, steps[0].Required)
	assert.Empty(t, steps[0].Dependencies)

	var dv105 Step
	for _, step := range steps {
		if step.Form == forms.FormDV105 {
			dv105 = step
		}
	}
	assert.Equal(t, forms.StatusInProgress, dv105.Status)
	assert.Equal(t, []forms.FormType{forms.FormDV100}, dv105.Dependencies)
}

func TestCurrentFormMapping(t *testing.T) {
	wf := childrenWorkflowAt(workflows.StateDV105InProgress)

	current, ok := wf.CurrentForm()
	assert.True(t, ok)
	assert.Equal(t, forms.FormDV105, current)

	wf.CurrentState = workflows.StateReviewInProgress
	_, ok = wf.CurrentForm()
	assert.False(t, ok)

	_, ok = wf.NextForm()
	assert.False(t, ok)
}

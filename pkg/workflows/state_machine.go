package workflows

import "github.com/mawazawa/tro-packet-engine/internal/forms"

// WorkflowState is one node in the packet preparation state graph.
type WorkflowState string

const (
	StateNotStarted          WorkflowState = "not_started"
	StatePacketTypeSelection WorkflowState = "packet_type_selection"
	StateDV100InProgress     WorkflowState = "dv100_in_progress"
	StateDV100Complete       WorkflowState = "dv100_complete"
	StateCLETSInProgress     WorkflowState = "clets_in_progress"
	StateCLETSComplete       WorkflowState = "clets_complete"
	StateDV105InProgress     WorkflowState = "dv105_in_progress"
	StateDV105Complete       WorkflowState = "dv105_complete"
	StateDV101InProgress     WorkflowState = "dv101_in_progress"
	StateDV101Complete       WorkflowState = "dv101_complete"
	StateFL150InProgress     WorkflowState = "fl150_in_progress"
	StateFL150Complete       WorkflowState = "fl150_complete"
	StateDV120InProgress     WorkflowState = "dv120_in_progress"
	StateDV120Complete       WorkflowState = "dv120_complete"
	StateFL320InProgress     WorkflowState = "fl320_in_progress"
	StateFL320Complete       WorkflowState = "fl320_complete"
	StateReviewInProgress    WorkflowState = "review_in_progress"
	StateReadyToFile         WorkflowState = "ready_to_file"
	StateFiled               WorkflowState = "filed"
)

// formStates maps each form to its in-progress/complete state pair.
var formStates = map[forms.FormType][2]WorkflowState{
	forms.FormDV100: {StateDV100InProgress, StateDV100Complete},
	forms.FormCLETS: {StateCLETSInProgress, StateCLETSComplete},
	forms.FormDV105: {StateDV105InProgress, StateDV105Complete},
	forms.FormDV101: {StateDV101InProgress, StateDV101Complete},
	forms.FormFL150: {StateFL150InProgress, StateFL150Complete},
	forms.FormDV120: {StateDV120InProgress, StateDV120Complete},
	forms.FormFL320: {StateFL320InProgress, StateFL320Complete},
}

// InProgressState returns the editing state for a form.
func InProgressState(form forms.FormType) (WorkflowState, bool) {
	pair, ok := formStates[form]
	if !ok {
		return "", false
	}
	return pair[0], true
}

// CompleteState returns the completed state for a form.
func CompleteState(form forms.FormType) (WorkflowState, bool) {
	pair, ok := formStates[form]
	if !ok {
		return "", false
	}
	return pair[1], true
}

// FormForState returns the form a state corresponds to. Selection, review
// and terminal states map to no form.
func FormForState(state WorkflowState) (forms.FormType, bool) {
	for form, pair := range formStates {
		if pair[0] == state || pair[1] == state {
			return form, true
		}
	}
	return "", false
}

// StateMachine enforces workflow state transitions against a static
// adjacency table.
type StateMachine struct {
	allowedTransitions map[WorkflowState][]WorkflowState
}

// NewTROStateMachine builds the state machine for TRO packet preparation.
// Form states are fully cross-linked (a user may move between any two forms,
// subject to the dependency gate enforced above this layer); review and
// filing states form a short tail.
func NewTROStateMachine() *StateMachine {
	transitions := map[WorkflowState][]WorkflowState{
		StateNotStarted:          {StatePacketTypeSelection},
		StatePacketTypeSelection: {},
		StateReviewInProgress:    {StateReadyToFile},
		StateReadyToFile:         {StateFiled, StateReviewInProgress},
		StateFiled:               {},
	}

	for _, pair := range formStates {
		inProgress, complete := pair[0], pair[1]
		transitions[StatePacketTypeSelection] = append(transitions[StatePacketTypeSelection], inProgress)
		transitions[inProgress] = []WorkflowState{complete, StateReviewInProgress}
		transitions[complete] = []WorkflowState{StateReviewInProgress}
		transitions[StateReviewInProgress] = append(transitions[StateReviewInProgress], inProgress)

		for _, other := range formStates {
			if other[0] == inProgress {
				continue
			}
			transitions[inProgress] = append(transitions[inProgress], other[0])
			transitions[complete] = append(transitions[complete], other[0])
		}
	}

	return &StateMachine{allowedTransitions: transitions}
}

// CanTransition checks if a state transition is allowed.
func (sm *StateMachine) CanTransition(from, to WorkflowState) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the allowed next states for a given state.
func (sm *StateMachine) AllowedTransitions(from WorkflowState) []WorkflowState {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []WorkflowState{}
	}
	out := make([]WorkflowState, len(allowed))
	copy(out, allowed)
	return out
}

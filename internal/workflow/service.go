package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mawazawa/tro-packet-engine/internal/autofill"
	"github.com/mawazawa/tro-packet-engine/internal/documents"
	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/internal/validation"
	"github.com/mawazawa/tro-packet-engine/pkg/workflows"
)

// Service is the workflow state machine engine. Mutating operations stage
// changes on a copy, persist, and only then expose the new snapshot, so a
// store failure never leaves a half-mutated workflow behind.
type Service struct {
	store   Store
	docs    documents.Store
	sm      *workflows.StateMachine
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService creates a workflow service. A zero timeout defaults to 10s.
func NewService(store Store, docs documents.Store, logger *zap.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		store:   store,
		docs:    docs,
		sm:      workflows.NewTROStateMachine(),
		logger:  logger,
		timeout: timeout,
		locks:   map[uuid.UUID]*sync.Mutex{},
	}
}

// lockFor returns the single-flight mutation lock for a workflow id. Two
// concurrent transitions against the same workflow must not both apply.
func (s *Service) lockFor(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// ConfigPatch is a partial packet-config update; nil fields are unchanged.
type ConfigPatch struct {
	HasChildren           *bool `json:"has_children,omitempty"`
	RequestChildSupport   *bool `json:"request_child_support,omitempty"`
	RequestSpousalSupport *bool `json:"request_spousal_support,omitempty"`
	NeedsMoreSpace        *bool `json:"needs_more_space,omitempty"`
	HasExistingCase       *bool `json:"has_existing_case,omitempty"`
}

// =====================================================
// Lifecycle
// =====================================================

// StartWorkflow creates a new workflow for the given packet type. Required
// forms start at not_started; optional forms start skipped unless the config
// enables them. The entry state is the packet type's entry form.
func (s *Service) StartWorkflow(ctx context.Context, userID uuid.UUID, packetType forms.PacketType, config PacketConfig) (*Workflow, error) {
	def, ok := forms.Definition(packetType)
	if !ok {
		return nil, validationFailed(fmt.Sprintf("unknown packet type %s", packetType), nil)
	}

	statuses := map[forms.FormType]forms.FormStatus{}
	for _, form := range def.Required {
		statuses[form] = forms.StatusNotStarted
	}
	for _, form := range def.Optional {
		if configEnables(form, config) {
			statuses[form] = forms.StatusNotStarted
		} else {
			statuses[form] = forms.StatusSkipped
		}
	}

	entryState, _ := workflows.InProgressState(def.EntryForm)
	statuses[def.EntryForm] = forms.StatusInProgress

	wf := &Workflow{
		ID:           uuid.New(),
		UserID:       userID,
		PacketType:   packetType,
		CurrentState: entryState,
		FormStatuses: statuses,
		PacketConfig: config,
		FormDataRefs: map[forms.FormType]uuid.UUID{},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	wf.Metadata.CompletionPercentage = wf.CompletionPercentage()
	wf.Metadata.EstimatedMinutesRemaining = wf.EstimatedMinutesRemaining()

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.store.Insert(callCtx, wf); err != nil {
		s.logger.Error("workflow insert failed",
			zap.String("packet_type", string(packetType)), zap.Error(err))
		return nil, saveFailed(err)
	}

	s.logger.Info("workflow started",
		zap.String("workflow_id", wf.ID.String()),
		zap.String("packet_type", string(packetType)),
		zap.String("state", string(wf.CurrentState)))
	return wf, nil
}

// Load fetches a workflow snapshot.
func (s *Service) Load(ctx context.Context, id, userID uuid.UUID) (*Workflow, error) {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	wf, err := s.store.Get(callCtx, id, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound("workflow")
	}
	if err != nil {
		return nil, loadFailed(err)
	}
	return wf, nil
}

// mutate runs fn against a staged copy of the workflow under the workflow's
// single-flight lock, recomputes derived metadata, and persists. The caller
// sees either the committed snapshot or an error with no state change.
func (s *Service) mutate(ctx context.Context, id, userID uuid.UUID, fn func(wf *Workflow) error) (*Workflow, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	wf, err := s.Load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	staged := wf.clone()
	if err := fn(staged); err != nil {
		return nil, err
	}
	staged.Metadata.CompletionPercentage = staged.CompletionPercentage()
	staged.Metadata.EstimatedMinutesRemaining = staged.EstimatedMinutesRemaining()
	staged.UpdatedAt = time.Now()

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.store.Update(callCtx, staged); err != nil {
		s.logger.Error("workflow update failed",
			zap.String("workflow_id", id.String()), zap.Error(err))
		return nil, saveFailed(err)
	}
	return staged, nil
}

// =====================================================
// Status and configuration
// =====================================================

// UpdateFormStatus merges one form status into the workflow and persists.
func (s *Service) UpdateFormStatus(ctx context.Context, id, userID uuid.UUID, form forms.FormType, status forms.FormStatus) (*Workflow, error) {
	return s.mutate(ctx, id, userID, func(wf *Workflow) error {
		wf.FormStatuses[form] = status
		return nil
	})
}

// UpdatePacketConfig merges a partial config and re-derives optional form
// statuses. Forms already complete or validated are never downgraded; only
// forms still at not_started or skipped flip between those two states.
func (s *Service) UpdatePacketConfig(ctx context.Context, id, userID uuid.UUID, patch ConfigPatch) (*Workflow, error) {
	return s.mutate(ctx, id, userID, func(wf *Workflow) error {
		applyConfigPatch(&wf.PacketConfig, patch)

		def, ok := forms.Definition(wf.PacketType)
		if !ok {
			return nil
		}
		for _, form := range def.Optional {
			current := wf.FormStatuses[form]
			if current != forms.StatusNotStarted && current != forms.StatusSkipped {
				continue
			}
			if configEnables(form, wf.PacketConfig) {
				wf.FormStatuses[form] = forms.StatusNotStarted
			} else {
				wf.FormStatuses[form] = forms.StatusSkipped
			}
		}
		return nil
	})
}

func applyConfigPatch(config *PacketConfig, patch ConfigPatch) {
	if patch.HasChildren != nil {
		config.HasChildren = *patch.HasChildren
	}
	if patch.RequestChildSupport != nil {
		config.RequestChildSupport = *patch.RequestChildSupport
	}
	if patch.RequestSpousalSupport != nil {
		config.RequestSpousalSupport = *patch.RequestSpousalSupport
	}
	if patch.NeedsMoreSpace != nil {
		config.NeedsMoreSpace = *patch.NeedsMoreSpace
	}
	if patch.HasExistingCase != nil {
		config.HasExistingCase = *patch.HasExistingCase
	}
}

// configEnables reports whether the intake flags opt an optional form into
// the packet.
func configEnables(form forms.FormType, config PacketConfig) bool {
	switch form {
	case forms.FormDV105:
		return config.HasChildren
	case forms.FormFL150, forms.FormFL320:
		return config.RequestChildSupport || config.RequestSpousalSupport
	case forms.FormDV101:
		return config.NeedsMoreSpace
	default:
		return false
	}
}

// =====================================================
// Transitions
// =====================================================

func (s *Service) transitionTo(wf *Workflow, target workflows.WorkflowState) error {
	if !s.sm.CanTransition(wf.CurrentState, target) {
		return invalidTransition(string(wf.CurrentState), string(target))
	}
	wf.CurrentState = target
	return nil
}

// TransitionToNextForm advances to the next non-skipped form in the packet
// order, or to review when none remain.
func (s *Service) TransitionToNextForm(ctx context.Context, id, userID uuid.UUID) (*Workflow, error) {
	return s.mutate(ctx, id, userID, func(wf *Workflow) error {
		next, ok := wf.NextForm()
		if !ok {
			return s.transitionTo(wf, workflows.StateReviewInProgress)
		}
		target, _ := workflows.InProgressState(next)
		if err := s.transitionTo(wf, target); err != nil {
			return err
		}
		if wf.FormStatuses[next] == forms.StatusNotStarted {
			wf.FormStatuses[next] = forms.StatusInProgress
		}
		return nil
	})
}

// TransitionToPreviousForm walks back to the nearest non-skipped form. It is
// a no-op when there is nothing before the current position.
func (s *Service) TransitionToPreviousForm(ctx context.Context, id, userID uuid.UUID) (*Workflow, error) {
	return s.mutate(ctx, id, userID, func(wf *Workflow) error {
		previous, ok := wf.PreviousForm()
		if !ok {
			return nil
		}
		target, _ := workflows.InProgressState(previous)
		return s.transitionTo(wf, target)
	})
}

// JumpToForm transitions directly to a form's editing state, gated by the
// dependency table.
func (s *Service) JumpToForm(ctx context.Context, id, userID uuid.UUID, form forms.FormType) (*Workflow, error) {
	return s.mutate(ctx, id, userID, func(wf *Workflow) error {
		if !wf.InPacket(form) {
			return invalidTransition(string(wf.CurrentState), string(form))
		}
		if unmet := wf.GetUnmetDependencies(form); len(unmet) > 0 {
			return missingDependency(form, unmet)
		}
		target, ok := workflows.InProgressState(form)
		if !ok {
			return invalidTransition(string(wf.CurrentState), string(form))
		}
		if err := s.transitionTo(wf, target); err != nil {
			return err
		}
		if wf.FormStatuses[form] == forms.StatusNotStarted {
			wf.FormStatuses[form] = forms.StatusInProgress
		}
		return nil
	})
}

// CompleteWorkflow validates the full packet and, if valid, transitions to
// ready_to_file with completion pinned at 100%.
func (s *Service) CompleteWorkflow(ctx context.Context, id, userID uuid.UUID) (*Workflow, error) {
	wf, err := s.Load(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	result := s.validatePacketOf(ctx, wf)
	if !result.Valid {
		return nil, validationFailed("packet validation failed", result.Errors)
	}

	return s.mutate(ctx, id, userID, func(wf *Workflow) error {
		if err := s.transitionTo(wf, workflows.StateReadyToFile); err != nil {
			return err
		}
		// Every active form just passed schema validation; promote them so
		// completion lands at 100%.
		for _, form := range wf.ActiveForms() {
			wf.FormStatuses[form] = forms.StatusValidated
		}
		return nil
	})
}

// ResetWorkflow returns the workflow to packet type selection, clearing form
// statuses and derived metadata. Calling it twice yields the same state.
func (s *Service) ResetWorkflow(ctx context.Context, id, userID uuid.UUID) (*Workflow, error) {
	return s.mutate(ctx, id, userID, func(wf *Workflow) error {
		wf.CurrentState = workflows.StatePacketTypeSelection
		wf.FormStatuses = map[forms.FormType]forms.FormStatus{}
		wf.Metadata = Metadata{}
		return nil
	})
}

// =====================================================
// Validation
// =====================================================

// ValidateForm validates one form's stored data. A missing backing document
// is reported as a validation error, not a failure.
func (s *Service) ValidateForm(ctx context.Context, wf *Workflow, form forms.FormType) *validation.Result {
	if wf == nil {
		return &validation.Result{Valid: false, Errors: []validation.FieldError{
			{Field: "workflow", Code: "not_loaded", Message: "No workflow loaded"},
		}}
	}

	docID, ok := wf.FormDataRefs[form]
	if !ok {
		return &validation.Result{Valid: false, Errors: []validation.FieldError{
			{Field: string(form), Code: "not_found", Message: fmt.Sprintf("No saved data for %s", form)},
		}}
	}

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	doc, err := s.docs.Get(callCtx, docID)
	if err != nil {
		return &validation.Result{Valid: false, Errors: []validation.FieldError{
			{Field: string(form), Code: "not_found", Message: fmt.Sprintf("Could not load data for %s", form)},
		}}
	}
	return validation.ValidateFormData(form, doc.Content)
}

// ValidateCurrentForm validates the form the current state maps to.
func (s *Service) ValidateCurrentForm(ctx context.Context, wf *Workflow) *validation.Result {
	form, ok := wf.CurrentForm()
	if !ok {
		return &validation.Result{Valid: true}
	}
	return s.ValidateForm(ctx, wf, form)
}

// ValidatePacket validates every non-skipped form in the packet.
func (s *Service) ValidatePacket(ctx context.Context, id, userID uuid.UUID) (*validation.Result, error) {
	wf, err := s.Load(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.validatePacketOf(ctx, wf), nil
}

func (s *Service) validatePacketOf(ctx context.Context, wf *Workflow) *validation.Result {
	combined := &validation.Result{Valid: true}
	for _, form := range wf.ActiveForms() {
		result := s.ValidateForm(ctx, wf, form)
		combined.Errors = append(combined.Errors, result.Errors...)
	}
	combined.Valid = len(combined.Errors) == 0
	return combined
}

// =====================================================
// Form data and autofill
// =====================================================

// GetFormData reads a form's stored field values through its data ref.
func (s *Service) GetFormData(ctx context.Context, wf *Workflow, form forms.FormType) (map[string]any, error) {
	if wf == nil {
		return nil, notFound("workflow")
	}
	docID, ok := wf.FormDataRefs[form]
	if !ok {
		return nil, notFound("form data")
	}

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	doc, err := s.docs.Get(callCtx, docID)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, notFound("form data")
	}
	if err != nil {
		return nil, loadFailed(err)
	}
	return doc.Content, nil
}

// SaveFormData writes a form's field values, creating the backing document
// on first save and registering its id in the workflow's data refs.
func (s *Service) SaveFormData(ctx context.Context, id, userID uuid.UUID, form forms.FormType, content map[string]any) (*Workflow, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	wf, err := s.Load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if docID, ok := wf.FormDataRefs[form]; ok {
		callCtx, cancel := s.callCtx(ctx)
		defer cancel()
		if err := s.docs.Update(callCtx, docID, documents.UpdatePatch{
			Content:   content,
			UpdatedAt: time.Now(),
		}); err != nil {
			return nil, saveFailed(err)
		}
		return wf, nil
	}

	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	doc, err := s.docs.Insert(callCtx, documents.InsertRequest{
		Title:      forms.DisplayName(form),
		FormType:   form,
		WorkflowID: wf.ID,
		UserID:     userID,
		Content:    content,
	})
	if err != nil {
		return nil, saveFailed(err)
	}

	staged := wf.clone()
	staged.FormDataRefs[form] = doc.ID
	staged.UpdatedAt = time.Now()
	if err := s.store.Update(callCtx, staged); err != nil {
		return nil, saveFailed(err)
	}
	s.logger.Info("form data ref registered",
		zap.String("workflow_id", wf.ID.String()),
		zap.String("form_type", string(form)),
		zap.String("document_id", doc.ID.String()))
	return staged, nil
}

// AutofillFromPrevious pre-populates the target form from forms already
// complete or validated in this workflow.
func (s *Service) AutofillFromPrevious(ctx context.Context, wf *Workflow, target forms.FormType) (*AutofillOutcome, error) {
	if wf == nil {
		return nil, notFound("workflow")
	}

	sources := map[forms.FormType]map[string]any{}
	for form, status := range wf.FormStatuses {
		if form == target || !status.Satisfied() {
			continue
		}
		content, err := s.GetFormData(ctx, wf, form)
		if err != nil {
			continue
		}
		sources[form] = content
	}

	targetContent, err := s.GetFormData(ctx, wf, target)
	if err != nil {
		targetContent = map[string]any{}
	}

	patch := autofill.MapFromForms(targetContent, sources)
	if patch.FieldsFilled > 0 {
		if err := s.applyPatch(ctx, wf, target, targetContent, patch); err != nil {
			return nil, err
		}
	}
	return &AutofillOutcome{FieldsFilled: patch.FieldsFilled, Source: patch.Source}, nil
}

// AutofillFromVault pre-populates the target form from the user's vault.
func (s *Service) AutofillFromVault(ctx context.Context, wf *Workflow, target forms.FormType, vault map[string]any) (*AutofillOutcome, error) {
	if wf == nil {
		return nil, notFound("workflow")
	}

	targetContent, err := s.GetFormData(ctx, wf, target)
	if err != nil {
		targetContent = map[string]any{}
	}

	patch := autofill.MapFromVault(targetContent, vault)
	if patch.FieldsFilled > 0 {
		if err := s.applyPatch(ctx, wf, target, targetContent, patch); err != nil {
			return nil, err
		}
	}
	return &AutofillOutcome{FieldsFilled: patch.FieldsFilled, Source: patch.Source}, nil
}

func (s *Service) applyPatch(ctx context.Context, wf *Workflow, target forms.FormType, targetContent map[string]any, patch autofill.Patch) error {
	merged := make(map[string]any, len(targetContent)+len(patch.Fields))
	for k, v := range targetContent {
		merged[k] = v
	}
	for k, v := range patch.Fields {
		merged[k] = v
	}

	_, err := s.SaveFormData(ctx, wf.ID, wf.UserID, target, merged)
	return err
}

package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mawazawa/tro-packet-engine/internal/documents"
	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/pkg/workflows"
)

// fakeStore is an in-memory workflow store with injectable failures.
type fakeStore struct {
	rows       map[uuid.UUID]*Workflow
	failInsert error
	failUpdate error
	updates    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uuid.UUID]*Workflow{}}
}

func (s *fakeStore) Get(ctx context.Context, id, userID uuid.UUID) (*Workflow, error) {
	wf, ok := s.rows[id]
	if !ok || wf.UserID != userID {
		return nil, ErrNotFound
	}
	return wf.clone(), nil
}

func (s *fakeStore) Insert(ctx context.Context, wf *Workflow) error {
	if s.failInsert != nil {
		return s.failInsert
	}
	s.rows[wf.ID] = wf.clone()
	return nil
}

func (s *fakeStore) Update(ctx context.Context, wf *Workflow) error {
	if s.failUpdate != nil {
		return s.failUpdate
	}
	if _, ok := s.rows[wf.ID]; !ok {
		return ErrNotFound
	}
	s.rows[wf.ID] = wf.clone()
	s.updates++
	return nil
}

// fakeDocStore is an in-memory document store.
type fakeDocStore struct {
	docs       map[uuid.UUID]*documents.Document
	failInsert error
	failUpdate error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: map[uuid.UUID]*documents.Document{}}
}

func (s *fakeDocStore) Get(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	return doc, nil
}

func (s *fakeDocStore) Insert(ctx context.Context, req documents.InsertRequest) (*documents.Document, error) {
	if s.failInsert != nil {
		return nil, s.failInsert
	}
	doc := &documents.Document{
		ID:         uuid.New(),
		Title:      req.Title,
		FormType:   req.FormType,
		WorkflowID: req.WorkflowID,
		UserID:     req.UserID,
		Content:    req.Content,
	}
	s.docs[doc.ID] = doc
	return doc, nil
}

func (s *fakeDocStore) Update(ctx context.Context, id uuid.UUID, patch documents.UpdatePatch) error {
	if s.failUpdate != nil {
		return s.failUpdate
	}
	doc, ok := s.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	if patch.Content != nil {
		doc.Content = patch.Content
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeDocStore) {
	t.Helper()
	store := newFakeStore()
	docs := newFakeDocStore()
	return NewService(store, docs, zap.NewNop(), 0), store, docs
}

func startChildrenWorkflow(t *testing.T, s *Service) *Workflow {
	t.Helper()
	wf, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketInitialRequestChildren, PacketConfig{HasChildren: true})
	require.NoError(t, err)
	return wf
}

func TestStartWorkflowInitializesStatuses(t *testing.T) {
	s, _, _ := newTestService(t)

	wf, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketInitialRequest, PacketConfig{})
	require.NoError(t, err)

	assert.Equal(t, workflows.StateDV100InProgress, wf.CurrentState)
	assert.Equal(t, forms.StatusInProgress, wf.FormStatuses[forms.FormDV100])
	assert.Equal(t, forms.StatusNotStarted, wf.FormStatuses[forms.FormCLETS])
	assert.Equal(t, forms.StatusSkipped, wf.FormStatuses[forms.FormDV101])
	assert.Equal(t, forms.StatusSkipped, wf.FormStatuses[forms.FormFL150])

	// Both active forms are still unfinished, so both count in full.
	assert.Equal(t, forms.EstimatedMinutes(forms.FormDV100)+forms.EstimatedMinutes(forms.FormCLETS),
		wf.Metadata.EstimatedMinutesRemaining)
}

func TestStartWorkflowConfigEnablesOptionalForms(t *testing.T) {
	s, _, _ := newTestService(t)

	wf, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketInitialRequestChildren,
		PacketConfig{HasChildren: true, RequestChildSupport: true, NeedsMoreSpace: true})
	require.NoError(t, err)

	assert.Equal(t, forms.StatusNotStarted, wf.FormStatuses[forms.FormDV105])
	assert.Equal(t, forms.StatusNotStarted, wf.FormStatuses[forms.FormFL150])
	assert.Equal(t, forms.StatusNotStarted, wf.FormStatuses[forms.FormDV101])
}

func TestStartWorkflowResponsePacketEntersAtResponseForm(t *testing.T) {
	s, _, _ := newTestService(t)

	wf, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketResponse, PacketConfig{})
	require.NoError(t, err)

	assert.Equal(t, workflows.StateDV120InProgress, wf.CurrentState)
	assert.Equal(t, forms.StatusSkipped, wf.FormStatuses[forms.FormFL320])
}

func TestStartWorkflowUnknownPacketType(t *testing.T) {
	s, _, _ := newTestService(t)

	_, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketType("BOGUS"), PacketConfig{})
	we, ok := AsWorkflowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidationFailed, we.Code)
}

func TestStartWorkflowPersistenceFailure(t *testing.T) {
	s, store, _ := newTestService(t)
	store.failInsert = errors.New("connection refused")

	_, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketInitialRequest, PacketConfig{})
	we, ok := AsWorkflowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeSaveFailed, we.Code)
	assert.True(t, we.Retryable)
}

func TestUpdatePacketConfigFlipsOptionalForms(t *testing.T) {
	s, _, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)
	assert.Equal(t, forms.StatusSkipped, wf.FormStatuses[forms.FormFL150])

	yes := true
	updated, err := s.UpdatePacketConfig(context.Background(), wf.ID, wf.UserID,
		ConfigPatch{RequestSpousalSupport: &yes})
	require.NoError(t, err)
	assert.Equal(t, forms.StatusNotStarted, updated.FormStatuses[forms.FormFL150])

	no := false
	updated, err = s.UpdatePacketConfig(context.Background(), wf.ID, wf.UserID,
		ConfigPatch{RequestSpousalSupport: &no})
	require.NoError(t, err)
	assert.Equal(t, forms.StatusSkipped, updated.FormStatuses[forms.FormFL150])
}

func TestUpdatePacketConfigNeverDowngradesCompletedForms(t *testing.T) {
	s, _, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	yes := true
	_, err := s.UpdatePacketConfig(context.Background(), wf.ID, wf.UserID, ConfigPatch{NeedsMoreSpace: &yes})
	require.NoError(t, err)
	_, err = s.UpdateFormStatus(context.Background(), wf.ID, wf.UserID, forms.FormDV101, forms.StatusComplete)
	require.NoError(t, err)

	no := false
	updated, err := s.UpdatePacketConfig(context.Background(), wf.ID, wf.UserID, ConfigPatch{NeedsMoreSpace: &no})
	require.NoError(t, err)
	assert.Equal(t, forms.StatusComplete, updated.FormStatuses[forms.FormDV101])
}

func TestJumpToFormDependencyGate(t *testing.T) {
	s, _, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	_, err := s.JumpToForm(context.Background(), wf.ID, wf.UserID, forms.FormDV105)
	we, ok := AsWorkflowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeMissingDependency, we.Code)
	assert.Equal(t, []forms.FormType{forms.FormDV100}, we.Unmet)

	_, err = s.UpdateFormStatus(context.Background(), wf.ID, wf.UserID, forms.FormDV100, forms.StatusComplete)
	require.NoError(t, err)

	updated, err := s.JumpToForm(context.Background(), wf.ID, wf.UserID, forms.FormDV105)
	require.NoError(t, err)
	assert.Equal(t, workflows.StateDV105InProgress, updated.CurrentState)
	assert.Equal(t, forms.StatusInProgress, updated.FormStatuses[forms.FormDV105])
}

func TestJumpToFormOutsidePacket(t *testing.T) {
	s, _, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	_, err := s.JumpToForm(context.Background(), wf.ID, wf.UserID, forms.FormDV120)
	we, ok := AsWorkflowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidTransition, we.Code)
}

func TestTransitionToNextFormSkipsSkippedForms(t *testing.T) {
	s, _, _ := newTestService(t)
	// No children config: DV-105, DV-101, FL-150 all skipped.
	wf, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketInitialRequest, PacketConfig{})
	require.NoError(t, err)

	updated, err := s.TransitionToNextForm(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	assert.Equal(t, workflows.StateCLETSInProgress, updated.CurrentState)
	assert.Equal(t, forms.StatusInProgress, updated.FormStatuses[forms.FormCLETS])

	// CLETS is the last active form; the next step is review.
	updated, err = s.TransitionToNextForm(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	assert.Equal(t, workflows.StateReviewInProgress, updated.CurrentState)
}

func TestTransitionToPreviousFormIsNoOpAtFirstForm(t *testing.T) {
	s, store, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	updated, err := s.TransitionToPreviousForm(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	assert.Equal(t, workflows.StateDV100InProgress, updated.CurrentState)
	assert.Equal(t, 1, store.updates)
}

func TestCompleteWorkflowValidationGate(t *testing.T) {
	s, _, _ := newTestService(t)
	wf, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketInitialRequest, PacketConfig{})
	require.NoError(t, err)

	// No form data saved yet: completion must be rejected.
	_, err = s.CompleteWorkflow(context.Background(), wf.ID, wf.UserID)
	we, ok := AsWorkflowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidationFailed, we.Code)
	assert.NotEmpty(t, we.Validation)
}

func TestCompleteWorkflowHappyPath(t *testing.T) {
	s, _, _ := newTestService(t)
	wf, err := s.StartWorkflow(context.Background(), uuid.New(), forms.PacketInitialRequest, PacketConfig{})
	require.NoError(t, err)

	dv100 := map[string]any{
		"petitioner_name": "Jane Doe",
		"respondent_name": "John Doe",
		"county":          "Alameda",
		"relationship":    "spouse",
	}
	clets := map[string]any{
		"petitioner_name": "Jane Doe",
		"respondent_name": "John Doe",
	}
	_, err = s.SaveFormData(context.Background(), wf.ID, wf.UserID, forms.FormDV100, dv100)
	require.NoError(t, err)
	_, err = s.SaveFormData(context.Background(), wf.ID, wf.UserID, forms.FormCLETS, clets)
	require.NoError(t, err)

	_, err = s.UpdateFormStatus(context.Background(), wf.ID, wf.UserID, forms.FormDV100, forms.StatusComplete)
	require.NoError(t, err)
	_, err = s.UpdateFormStatus(context.Background(), wf.ID, wf.UserID, forms.FormCLETS, forms.StatusComplete)
	require.NoError(t, err)

	// Walk to review, then complete.
	_, err = s.TransitionToNextForm(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	_, err = s.TransitionToNextForm(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)

	updated, err := s.CompleteWorkflow(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	assert.Equal(t, workflows.StateReadyToFile, updated.CurrentState)
	assert.Equal(t, 100, updated.Metadata.CompletionPercentage)
	assert.Equal(t, forms.StatusValidated, updated.FormStatuses[forms.FormDV100])
}

func TestResetWorkflowIsIdempotent(t *testing.T) {
	s, _, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	first, err := s.ResetWorkflow(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	assert.Equal(t, workflows.StatePacketTypeSelection, first.CurrentState)
	assert.Empty(t, first.FormStatuses)
	assert.Zero(t, first.Metadata.CompletionPercentage)
	assert.Zero(t, first.Metadata.EstimatedMinutesRemaining)

	second, err := s.ResetWorkflow(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	assert.Equal(t, first.CurrentState, second.CurrentState)
	assert.Empty(t, second.FormStatuses)
}

func TestMutationFailureLeavesStoredStateUntouched(t *testing.T) {
	s, store, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	store.failUpdate = errors.New("disk full")
	_, err := s.UpdateFormStatus(context.Background(), wf.ID, wf.UserID, forms.FormDV100, forms.StatusComplete)
	we, ok := AsWorkflowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeSaveFailed, we.Code)

	store.failUpdate = nil
	reloaded, err := s.Load(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	assert.Equal(t, forms.StatusInProgress, reloaded.FormStatuses[forms.FormDV100])
}

func TestSaveFormDataCreatesBackingDocumentOnFirstWrite(t *testing.T) {
	s, _, docs := newTestService(t)
	wf := startChildrenWorkflow(t, s)
	assert.Empty(t, wf.FormDataRefs)

	updated, err := s.SaveFormData(context.Background(), wf.ID, wf.UserID, forms.FormDV100,
		map[string]any{"petitioner_name": "Jane Doe"})
	require.NoError(t, err)

	docID, ok := updated.FormDataRefs[forms.FormDV100]
	require.True(t, ok)
	stored, err := docs.Get(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.Content["petitioner_name"])

	// Second write updates the same document.
	again, err := s.SaveFormData(context.Background(), wf.ID, wf.UserID, forms.FormDV100,
		map[string]any{"petitioner_name": "Jane Q. Doe"})
	require.NoError(t, err)
	assert.Equal(t, docID, again.FormDataRefs[forms.FormDV100])
	stored, _ = docs.Get(context.Background(), docID)
	assert.Equal(t, "Jane Q. Doe", stored.Content["petitioner_name"])
	assert.Len(t, docs.docs, 1)
}

func TestAutofillFromPreviousForms(t *testing.T) {
	s, _, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	_, err := s.SaveFormData(context.Background(), wf.ID, wf.UserID, forms.FormDV100, map[string]any{
		"petitioner_name": "Jane Doe",
		"respondent_name": "John Doe",
		"county":          "Alameda",
		"relationship":    "spouse",
	})
	require.NoError(t, err)
	_, err = s.UpdateFormStatus(context.Background(), wf.ID, wf.UserID, forms.FormDV100, forms.StatusComplete)
	require.NoError(t, err)

	loaded, err := s.Load(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	outcome, err := s.AutofillFromPrevious(context.Background(), loaded, forms.FormCLETS)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.FieldsFilled)
	assert.Equal(t, "previous_forms", outcome.Source)

	loaded, err = s.Load(context.Background(), wf.ID, wf.UserID)
	require.NoError(t, err)
	content, err := s.GetFormData(context.Background(), loaded, forms.FormCLETS)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", content["petitioner_name"])
}

func TestAutofillFromVault(t *testing.T) {
	s, _, _ := newTestService(t)
	wf := startChildrenWorkflow(t, s)

	outcome, err := s.AutofillFromVault(context.Background(), wf, forms.FormDV100, map[string]any{
		"full_name": "Jane Doe",
		"county":    "Alameda",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.FieldsFilled)
	assert.Equal(t, "vault", outcome.Source)
}

func TestQueriesAreNilSafe(t *testing.T) {
	var wf *Workflow

	_, ok := wf.CurrentForm()
	assert.False(t, ok)
	_, ok = wf.NextForm()
	assert.False(t, ok)
	_, ok = wf.PreviousForm()
	assert.False(t, ok)
	assert.Nil(t, wf.RequiredForms())
	assert.Nil(t, wf.OptionalForms())
	assert.Nil(t, wf.Steps())
	assert.Zero(t, wf.CompletionPercentage())
	assert.Zero(t, wf.EstimatedMinutesRemaining())
	assert.False(t, wf.AreDependenciesMet(forms.FormCLETS))
}

package autosave

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mawazawa/tro-packet-engine/internal/documents"
	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/internal/offline"
	"github.com/mawazawa/tro-packet-engine/internal/validation"
)

// ValidationError aborts a save without retrying; the data itself is wrong
// and only the user can fix it.
type ValidationError struct {
	Result *validation.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form data failed validation with %d errors", len(e.Result.Errors))
}

// ErrRetriesExhausted is returned once every retry attempt has failed.
var ErrRetriesExhausted = errors.New("save retries exhausted")

// snapshot is one captured (formData, fieldPositions) pair.
type snapshot struct {
	content   map[string]any
	positions []forms.FieldPosition
}

// Options configures an Engine.
type Options struct {
	Debounce     time.Duration
	Retry        RetryPolicy
	Clock        Clock
	Connectivity offline.Connectivity
	Logger       *zap.Logger
}

// Engine keeps the document store eventually consistent with local edits to
// one form document. Rapid edits coalesce into a single debounced save;
// persistence failures retry with bounded backoff; network failures route
// to the offline queue. Saves against one engine are strictly serialized.
type Engine struct {
	docID    uuid.UUID
	formType forms.FormType
	store    documents.Store
	queue    offline.Queue

	debounce     time.Duration
	policy       RetryPolicy
	clock        Clock
	connectivity offline.Connectivity
	logger       *zap.Logger

	mu        sync.Mutex
	enabled   bool
	closed    bool
	dirty     bool
	saving    bool
	pending   snapshot
	lastSaved snapshot
	lastErr   error
	timer     Timer
}

// NewEngine binds an auto-save engine to one document. A nil document id
// (uuid.Nil) disables all operation.
func NewEngine(docID uuid.UUID, formType forms.FormType, store documents.Store, queue offline.Queue, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.Connectivity == nil {
		opts.Connectivity = offline.AlwaysOnline{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		docID:        docID,
		formType:     formType,
		store:        store,
		queue:        queue,
		debounce:     opts.Debounce,
		policy:       opts.Retry,
		clock:        opts.Clock,
		connectivity: opts.Connectivity,
		logger:       opts.Logger,
		enabled:      docID != uuid.Nil,
	}
}

// SetEnabled toggles automatic saving. Disabling cancels any pending
// debounce but keeps local state; re-enabling with unsaved changes starts
// the debounce so edits made while disabled still reach the store.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	was := e.enabled
	e.enabled = enabled && e.docID != uuid.Nil && !e.closed
	if !e.enabled {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		return
	}
	if !was && e.dirty {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.timer = e.clock.AfterFunc(e.debounce, func() {
			_ = e.save(context.Background())
		})
	}
}

// HasUnsavedChanges reports whether local state differs from the last
// successful save.
func (e *Engine) HasUnsavedChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// IsSaving reports whether a save (including waits between retry attempts)
// is in flight.
func (e *Engine) IsSaving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Err returns the last terminal save failure, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Update records a local edit. Identical state is ignored; a real change
// marks the engine dirty and (re)starts the debounce timer, so a burst of
// edits produces exactly one save of the final state.
func (e *Engine) Update(content map[string]any, positions []forms.FieldPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.docID == uuid.Nil {
		return
	}

	next := snapshot{content: content, positions: positions}
	if !e.dirty && snapshotsEqual(next, e.lastSaved) {
		return
	}

	e.pending = next
	e.dirty = true

	if !e.enabled {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = e.clock.AfterFunc(e.debounce, func() {
		_ = e.save(context.Background())
	})
}

// SaveNow cancels any pending debounce and saves immediately. It is a
// no-op without a document id or unsaved changes.
func (e *Engine) SaveNow(ctx context.Context) error {
	e.mu.Lock()
	if e.docID == uuid.Nil || !e.dirty {
		e.mu.Unlock()
		return nil
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
	return e.save(ctx)
}

// Close tears the engine down: the debounce timer is canceled and, if dirty,
// one best-effort save is attempted. An already in-flight save is not
// canceled.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	dirty := e.dirty && !e.saving
	e.mu.Unlock()

	if dirty {
		// Fire and forget: teardown must not block on retries.
		e.attemptOnce(ctx)
	}
}

// save runs one full save sequence: validate, route offline if needed, or
// write with bounded backoff. Only one sequence runs at a time.
func (e *Engine) save(ctx context.Context) error {
	e.mu.Lock()
	if e.saving || !e.dirty {
		e.mu.Unlock()
		return nil
	}
	snap := e.pending
	e.saving = true
	e.mu.Unlock()

	err := e.run(ctx, snap)

	e.mu.Lock()
	e.saving = false
	if err == nil {
		e.lastSaved = snap
		e.lastErr = nil
		if snapshotsEqual(e.pending, snap) {
			e.dirty = false
		} else if e.enabled && !e.closed {
			// Edits arrived mid-save; schedule the next round.
			if e.timer != nil {
				e.timer.Stop()
			}
			e.timer = e.clock.AfterFunc(e.debounce, func() {
				_ = e.save(context.Background())
			})
		}
	} else {
		e.lastErr = err
	}
	e.mu.Unlock()
	return err
}

func (e *Engine) run(ctx context.Context, snap snapshot) error {
	if result := validation.ValidateFormData(e.formType, snap.content); !result.Valid {
		e.logger.Warn("auto-save rejected invalid form data",
			zap.String("document_id", e.docID.String()),
			zap.Int("errors", len(result.Errors)))
		return &ValidationError{Result: result}
	}
	if result := validation.ValidateFieldPositions(snap.positions); !result.Valid {
		return &ValidationError{Result: result}
	}

	if !e.connectivity.Online() {
		return e.enqueue(ctx, snap)
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		err := e.store.Update(ctx, e.docID, documents.UpdatePatch{
			Content:        snap.content,
			FieldPositions: snap.positions,
			UpdatedAt:      e.clock.Now(),
		})
		if err == nil {
			return nil
		}
		if documents.IsNetworkError(err) {
			return e.enqueue(ctx, snap)
		}

		lastErr = err
		e.logger.Warn("auto-save attempt failed",
			zap.String("document_id", e.docID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < e.policy.MaxAttempts {
			if err := e.clock.Sleep(ctx, e.policy.DelayFor(attempt)); err != nil {
				return err
			}
		}
	}

	e.logger.Error("auto-save gave up",
		zap.String("document_id", e.docID.String()),
		zap.Int("attempts", e.policy.MaxAttempts),
		zap.Error(lastErr))
	return fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// enqueue routes the snapshot to the offline queue and clears dirty state
// optimistically; replay delivers it when connectivity returns.
func (e *Engine) enqueue(ctx context.Context, snap snapshot) error {
	err := e.queue.Enqueue(ctx, offline.PendingUpdate{
		DocumentID:     e.docID,
		FormData:       snap.content,
		FieldPositions: snap.positions,
		QueuedAt:       e.clock.Now(),
	})
	if err != nil {
		return err
	}
	e.logger.Info("auto-save queued for offline sync",
		zap.String("document_id", e.docID.String()))
	return nil
}

// attemptOnce makes a single non-retrying write for teardown.
func (e *Engine) attemptOnce(ctx context.Context) {
	e.mu.Lock()
	snap := e.pending
	e.mu.Unlock()

	if result := validation.ValidateFormData(e.formType, snap.content); !result.Valid {
		return
	}
	if !e.connectivity.Online() {
		_ = e.enqueue(ctx, snap)
		return
	}
	err := e.store.Update(ctx, e.docID, documents.UpdatePatch{
		Content:        snap.content,
		FieldPositions: snap.positions,
		UpdatedAt:      e.clock.Now(),
	})
	if documents.IsNetworkError(err) {
		_ = e.enqueue(ctx, snap)
	}
}

func snapshotsEqual(a, b snapshot) bool {
	return reflect.DeepEqual(a.content, b.content) && reflect.DeepEqual(a.positions, b.positions)
}

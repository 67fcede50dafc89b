package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// Store is the document persistence surface consumed by auto-save and the
// workflow engine.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	Insert(ctx context.Context, req InsertRequest) (*Document, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) error
}

type postgresStore struct {
	db *sqlx.DB
}

// NewRepository creates a Postgres-backed document store.
func NewRepository(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// documentRow is the raw table shape; content and field positions are JSONB.
type documentRow struct {
	ID             uuid.UUID `db:"id"`
	Title          string    `db:"title"`
	FormType       string    `db:"form_type"`
	WorkflowID     uuid.UUID `db:"workflow_id"`
	UserID         uuid.UUID `db:"user_id"`
	Content        []byte    `db:"content"`
	FieldPositions []byte    `db:"field_positions"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *postgresStore) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	var row documentRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM legal_documents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return row.toDocument()
}

func (r *postgresStore) Insert(ctx context.Context, req InsertRequest) (*Document, error) {
	doc := &Document{
		ID:             uuid.New(),
		Title:          req.Title,
		FormType:       req.FormType,
		WorkflowID:     req.WorkflowID,
		UserID:         req.UserID,
		Content:        req.Content,
		FieldPositions: req.FieldPositions,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	content, err := json.Marshal(doc.Content)
	if err != nil {
		return nil, err
	}
	positions, err := json.Marshal(doc.FieldPositions)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO legal_documents (
			id, title, form_type, workflow_id, user_id, content, field_positions, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.FormType, doc.WorkflowID, doc.UserID,
		content, positions, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return doc, nil
}

func (r *postgresStore) Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) error {
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := "UPDATE legal_documents SET updated_at = $1"
	args := []interface{}{updatedAt}
	argCount := 2

	if patch.Content != nil {
		content, err := json.Marshal(patch.Content)
		if err != nil {
			return err
		}
		query += fmt.Sprintf(", content = $%d", argCount)
		args = append(args, content)
		argCount++
	}
	if patch.FieldPositions != nil {
		positions, err := json.Marshal(patch.FieldPositions)
		if err != nil {
			return err
		}
		query += fmt.Sprintf(", field_positions = $%d", argCount)
		args = append(args, positions)
		argCount++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argCount)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (row *documentRow) toDocument() (*Document, error) {
	doc := &Document{
		ID:         row.ID,
		Title:      row.Title,
		FormType:   forms.FormType(row.FormType),
		WorkflowID: row.WorkflowID,
		UserID:     row.UserID,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if len(row.Content) > 0 {
		if err := json.Unmarshal(row.Content, &doc.Content); err != nil {
			return nil, err
		}
	}
	if len(row.FieldPositions) > 0 {
		if err := json.Unmarshal(row.FieldPositions, &doc.FieldPositions); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// classify wraps connection-level failures so callers can branch on
// IsNetworkError without inspecting driver internals.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsNetworkError(err) {
		return &NetworkError{Err: err}
	}
	return err
}

package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mawazawa/tro-packet-engine/internal/documents"
	"github.com/mawazawa/tro-packet-engine/internal/forms"
	"github.com/mawazawa/tro-packet-engine/pkg/workflows"
)

// ErrNotFound is returned when a workflow id does not exist for the user.
var ErrNotFound = errors.New("workflow not found")

type postgresStore struct {
	db *sqlx.DB
}

// NewRepository creates a Postgres-backed workflow store.
func NewRepository(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

type workflowRow struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	PacketType   string    `db:"packet_type"`
	CurrentState string    `db:"current_state"`
	FormStatuses []byte    `db:"form_statuses"`
	PacketConfig []byte    `db:"packet_config"`
	FormDataRefs []byte    `db:"form_data_refs"`
	Metadata     []byte    `db:"metadata"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *postgresStore) Get(ctx context.Context, id, userID uuid.UUID) (*Workflow, error) {
	var row workflowRow
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM tro_workflows WHERE id = $1 AND user_id = $2", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if documents.IsNetworkError(err) {
			return nil, &documents.NetworkError{Err: err}
		}
		return nil, err
	}
	return row.toWorkflow()
}

func (r *postgresStore) Insert(ctx context.Context, wf *Workflow) error {
	row, err := toRow(wf)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tro_workflows (
			id, user_id, packet_type, current_state, form_statuses,
			packet_config, form_data_refs, metadata, created_at, updated_at
		) VALUES (
			:id, :user_id, :packet_type, :current_state, :form_statuses,
			:packet_config, :form_data_refs, :metadata, :created_at, :updated_at
		)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *postgresStore) Update(ctx context.Context, wf *Workflow) error {
	row, err := toRow(wf)
	if err != nil {
		return err
	}
	query := `
		UPDATE tro_workflows SET
			current_state = :current_state,
			form_statuses = :form_statuses,
			packet_config = :packet_config,
			form_data_refs = :form_data_refs,
			metadata = :metadata,
			updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func toRow(wf *Workflow) (*workflowRow, error) {
	statuses, err := json.Marshal(wf.FormStatuses)
	if err != nil {
		return nil, err
	}
	config, err := json.Marshal(wf.PacketConfig)
	if err != nil {
		return nil, err
	}
	refs, err := json.Marshal(wf.FormDataRefs)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(wf.Metadata)
	if err != nil {
		return nil, err
	}
	updatedAt := wf.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return &workflowRow{
		ID:           wf.ID,
		UserID:       wf.UserID,
		PacketType:   string(wf.PacketType),
		CurrentState: string(wf.CurrentState),
		FormStatuses: statuses,
		PacketConfig: config,
		FormDataRefs: refs,
		Metadata:     meta,
		CreatedAt:    wf.CreatedAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func (row *workflowRow) toWorkflow() (*Workflow, error) {
	wf := &Workflow{
		ID:           row.ID,
		UserID:       row.UserID,
		PacketType:   forms.PacketType(row.PacketType),
		CurrentState: workflows.WorkflowState(row.CurrentState),
		FormStatuses: map[forms.FormType]forms.FormStatus{},
		FormDataRefs: map[forms.FormType]uuid.UUID{},
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.FormStatuses) > 0 {
		if err := json.Unmarshal(row.FormStatuses, &wf.FormStatuses); err != nil {
			return nil, err
		}
	}
	if len(row.PacketConfig) > 0 {
		if err := json.Unmarshal(row.PacketConfig, &wf.PacketConfig); err != nil {
			return nil, err
		}
	}
	if len(row.FormDataRefs) > 0 {
		if err := json.Unmarshal(row.FormDataRefs, &wf.FormDataRefs); err != nil {
			return nil, err
		}
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &wf.Metadata); err != nil {
			return nil, err
		}
	}
	return wf, nil
}

package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// PendingUpdate is one document write captured while the client was offline.
type PendingUpdate struct {
	ID             uuid.UUID             `json:"id"`
	DocumentID     uuid.UUID             `json:"document_id"`
	FormData       map[string]any        `json:"form_data"`
	FieldPositions []forms.FieldPosition `json:"field_positions"`
	QueuedAt       time.Time             `json:"queued_at"`
	Attempts       int                   `json:"attempts"`
}

// Queue accepts writes that could not reach the document store. Delivery is
// at-least-once: replay may retry an update that already landed.
type Queue interface {
	Enqueue(ctx context.Context, update PendingUpdate) error
}

// Connectivity reports the client's network state.
type Connectivity interface {
	Online() bool
	OnRestore(fn func())
}

// AlwaysOnline is the connectivity signal for server-side deployments that
// have no offline mode.
type AlwaysOnline struct{}

func (AlwaysOnline) Online() bool     { return true }
func (AlwaysOnline) OnRestore(func()) {}

type postgresQueue struct {
	db *sqlx.DB
}

// NewRepository creates a Postgres-backed offline queue.
func NewRepository(db *sqlx.DB) Queue {
	return &postgresQueue{db: db}
}

type queueRow struct {
	ID             uuid.UUID    `db:"id"`
	DocumentID     uuid.UUID    `db:"document_id"`
	FormData       []byte       `db:"form_data"`
	FieldPositions []byte       `db:"field_positions"`
	QueuedAt       time.Time    `db:"queued_at"`
	Attempts       int          `db:"attempts"`
	DeliveredAt    sql.NullTime `db:"delivered_at"`
}

func (q *postgresQueue) Enqueue(ctx context.Context, update PendingUpdate) error {
	if update.ID == uuid.Nil {
		update.ID = uuid.New()
	}
	if update.QueuedAt.IsZero() {
		update.QueuedAt = time.Now()
	}

	formData, err := json.Marshal(update.FormData)
	if err != nil {
		return err
	}
	positions, err := json.Marshal(update.FieldPositions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO offline_queue (id, document_id, form_data, field_positions, queued_at, attempts)
		VALUES ($1, $2, $3, $4, $5, 0)`
	_, err = q.db.ExecContext(ctx, query, update.ID, update.DocumentID, formData, positions, update.QueuedAt)
	return err
}

func (q *postgresQueue) pending(ctx context.Context, limit int) ([]PendingUpdate, error) {
	var rows []queueRow
	err := q.db.SelectContext(ctx, &rows, `
		SELECT * FROM offline_queue
		WHERE delivered_at IS NULL
		ORDER BY queued_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	updates := make([]PendingUpdate, 0, len(rows))
	for _, row := range rows {
		update := PendingUpdate{
			ID:         row.ID,
			DocumentID: row.DocumentID,
			QueuedAt:   row.QueuedAt,
			Attempts:   row.Attempts,
		}
		if len(row.FormData) > 0 {
			if err := json.Unmarshal(row.FormData, &update.FormData); err != nil {
				return nil, err
			}
		}
		if len(row.FieldPositions) > 0 {
			if err := json.Unmarshal(row.FieldPositions, &update.FieldPositions); err != nil {
				return nil, err
			}
		}
		updates = append(updates, update)
	}
	return updates, nil
}

func (q *postgresQueue) markDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE offline_queue SET delivered_at = $1 WHERE id = $2", time.Now(), id)
	return err
}

func (q *postgresQueue) markAttempted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE offline_queue SET attempts = attempts + 1 WHERE id = $1", id)
	return err
}

// errNotReplayable guards Replayer against queue implementations that do not
// expose the pending/mark surface.
var errNotReplayable = errors.New("queue does not support replay")

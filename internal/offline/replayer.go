package offline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mawazawa/tro-packet-engine/internal/documents"
)

// replayableQueue is the full surface a queue needs for draining.
type replayableQueue interface {
	Queue
	pending(ctx context.Context, limit int) ([]PendingUpdate, error)
	markDelivered(ctx context.Context, id uuid.UUID) error
	markAttempted(ctx context.Context, id uuid.UUID) error
}

// Replayer drains the offline queue into the document store. It fires when
// connectivity returns and on a periodic sweep, so updates queued just
// before a crash still land.
type Replayer struct {
	queue        replayableQueue
	store        documents.Store
	connectivity Connectivity
	logger       *zap.Logger
	cron         *cron.Cron
	batchSize    int
}

// NewReplayer wires a replayer over a Postgres-backed queue.
func NewReplayer(queue Queue, store documents.Store, connectivity Connectivity, logger *zap.Logger) (*Replayer, error) {
	rq, ok := queue.(replayableQueue)
	if !ok {
		return nil, errNotReplayable
	}
	return &Replayer{
		queue:        rq,
		store:        store,
		connectivity: connectivity,
		logger:       logger,
		batchSize:    50,
	}, nil
}

// Start registers the connectivity-restored trigger and the periodic sweep.
func (r *Replayer) Start(spec string) error {
	if spec == "" {
		spec = "@every 1m"
	}

	r.connectivity.OnRestore(func() {
		r.Drain(context.Background())
	})

	r.cron = cron.New()
	_, err := r.cron.AddFunc(spec, func() {
		if r.connectivity.Online() {
			r.Drain(context.Background())
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the periodic sweep.
func (r *Replayer) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Drain replays pending updates oldest-first. A failed update stays queued
// for the next sweep; delivery is at-least-once.
func (r *Replayer) Drain(ctx context.Context) {
	updates, err := r.queue.pending(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("offline queue read failed", zap.Error(err))
		return
	}
	if len(updates) == 0 {
		return
	}

	r.logger.Info("replaying offline updates", zap.Int("count", len(updates)))
	for _, update := range updates {
		if err := r.queue.markAttempted(ctx, update.ID); err != nil {
			r.logger.Warn("offline queue attempt mark failed", zap.Error(err))
		}

		err := r.store.Update(ctx, update.DocumentID, documents.UpdatePatch{
			Content:        update.FormData,
			FieldPositions: update.FieldPositions,
			UpdatedAt:      time.Now(),
		})
		if errors.Is(err, documents.ErrNotFound) {
			// The document is gone; keeping the update would wedge the queue.
			r.logger.Warn("dropping offline update for missing document",
				zap.String("document_id", update.DocumentID.String()))
			err = nil
		}
		if err != nil {
			r.logger.Warn("offline replay failed",
				zap.String("document_id", update.DocumentID.String()),
				zap.Int("attempts", update.Attempts+1),
				zap.Error(err))
			continue
		}
		if err := r.queue.markDelivered(ctx, update.ID); err != nil {
			r.logger.Warn("offline queue delivery mark failed", zap.Error(err))
		}
	}
}

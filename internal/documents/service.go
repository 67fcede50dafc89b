package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service fronts the document store with logging and per-call timeouts so
// hung store calls fail deterministically instead of blocking retries.
type Service struct {
	store   Store
	logger  *zap.Logger
	timeout time.Duration
}

// NewService creates a document service. A zero timeout defaults to 10s.
func NewService(store Store, logger *zap.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{store: store, logger: logger, timeout: timeout}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Get(ctx, id)
}

func (s *Service) Insert(ctx context.Context, req InsertRequest) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.store.Insert(ctx, req)
	if err != nil {
		s.logger.Error("document insert failed",
			zap.String("form_type", string(req.FormType)),
			zap.String("workflow_id", req.WorkflowID.String()),
			zap.Error(err))
		return nil, err
	}
	s.logger.Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("form_type", string(doc.FormType)))
	return doc, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Update(ctx, id, patch); err != nil {
		s.logger.Warn("document update failed",
			zap.String("document_id", id.String()),
			zap.Bool("network", IsNetworkError(err)),
			zap.Error(err))
		return err
	}
	return nil
}

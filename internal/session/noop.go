package session

import (
	"context"

	"go.uber.org/zap"
)

// NoopStore accepts every write and never finds anything
type NoopStore struct {
	logger *zap.Logger
}

var _ Store = (*NoopStore)(nil)

func NewNoopStore(logger *zap.Logger) *NoopStore {
	return &NoopStore{logger: logger.Named("session.store.noop")}
}

func (s *NoopStore) Init(context.Context) error {
	s.logger.Debug("noop session store ready")
	return nil
}

func (s *NoopStore) Create(context.Context, *Snapshot) error { return nil }

func (s *NoopStore) Read(context.Context, string) (*Record, error) {
	return nil, ErrSessionNotFound
}

func (s *NoopStore) Update(context.Context, *Snapshot) error { return nil }

func (s *NoopStore) Delete(context.Context, string) error { return nil }

func (s *NoopStore) Close() error { return nil }

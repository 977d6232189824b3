package api

import (
	"context"

	"segue/internal/queue"
)

// SessionReader abstracts store reads needed for API queries.
type SessionReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Session, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Session, error)
	GetByUUID(ctx context.Context, uuid string) (*queue.Session, error)
}

// SessionService exposes read-only session queries returning API DTOs.
type SessionService struct {
	store SessionReader
}

// NewSessionService constructs a SessionService around the provided reader.
func NewSessionService(store SessionReader) *SessionService {
	if store == nil {
		return nil
	}
	return &SessionService{store: store}
}

// List returns sessions filtered by status.
func (s *SessionService) List(ctx context.Context, statuses ...queue.Status) ([]Session, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	sessions, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromSessions(sessions), nil
}

// Stats returns session counts keyed by status string.
func (s *SessionService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeSessionStats(stats), nil
}

// Describe fetches a single session by numeric id or UUID.
func (s *SessionService) Describe(ctx context.Context, ref string, id int64) (*Session, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	var (
		session *queue.Session
		err     error
	)
	if id > 0 {
		session, err = s.store.GetByID(ctx, id)
	} else {
		session, err = s.store.GetByUUID(ctx, ref)
	}
	if err != nil || session == nil {
		return nil, err
	}
	dto := FromSession(session)
	return &dto, nil
}

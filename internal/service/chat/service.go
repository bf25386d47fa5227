package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
)

// DefaultHistoryLimit caps how many turns a session keeps.
const DefaultHistoryLimit = 20

// Service encapsulates conversation state management on top of a Store.
type Service struct {
	store Store
	limit int
	now   func() time.Time
}

// NewService wraps store. A non-positive limit falls back to DefaultHistoryLimit.
func NewService(store Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Service{
		store: store,
		limit: limit,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Resume returns the session for sessionID, provisioning a new anonymous one when
// the id is empty or unknown. created reports whether a new session was made.
func (s *Service) Resume(ctx context.Context, sessionID string) (session chat.Session, created bool, err error) {
	if sessionID != "" {
		session, err = s.store.GetSession(ctx, sessionID)
		if err == nil {
			return session, false, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return chat.Session{}, false, err
		}
	}

	session = chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return chat.Session{}, false, err
	}
	return session, true, nil
}

// Record appends turns to the session history, trimming it to the configured limit.
func (s *Service) Record(ctx context.Context, sessionID string, turns ...chat.Turn) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	now := s.now()
	stamped := make([]chat.Turn, len(turns))
	for i, turn := range turns {
		turn.ID = uuid.NewString()
		turn.SessionID = sessionID
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		stamped[i] = turn
	}
	return s.store.AppendTurns(ctx, sessionID, s.limit, stamped...)
}

// History returns up to the last n turns, oldest first. n <= 0 returns everything kept.
func (s *Service) History(ctx context.Context, sessionID string, n int) ([]chat.Turn, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	turns, err := s.store.LoadTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// Reset forgets the session. Unknown or empty ids are not an error.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

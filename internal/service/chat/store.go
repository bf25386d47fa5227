package chat

import (
	"context"
	"errors"

	"github.com/zhouzirui/careline/backend/internal/model/chat"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Store persists sessions and their recent turns.
type Store interface {
	CreateSession(ctx context.Context, session chat.Session) error
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	// AppendTurns adds turns and keeps only the newest limit entries (limit <= 0 keeps all).
	AppendTurns(ctx context.Context, sessionID string, limit int, turns ...chat.Turn) error
	LoadTurns(ctx context.Context, sessionID string) ([]chat.Turn, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

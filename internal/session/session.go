package session

import (
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/research/core"
)

// Store manages paused research sessions. A session holds the
// conversation turns while the pipeline waits for the user to answer a
// clarifying question.
type Store interface {
	EnsureSession(id string, ttl time.Duration) (Session, error)
	GetSession(id string) (Session, error)
}

// Session is one resumable conversation.
type Session interface {
	ID() string
	Expire(ttl time.Duration)
	AppendTurn(turn core.Turn) error
	Turns() ([]core.Turn, error)
}

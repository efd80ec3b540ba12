package store

import (
	"context"
	"errors"
	"time"

	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/domain/session"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store persists coaching sessions. Credentials are never part of what it
// stores.
type Store interface {
	SaveSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error

	// SaveAnswer upserts one graded answer at position and clears the
	// session's report.
	SaveAnswer(ctx context.Context, sessionID string, position int, item coach.AnsweredQuestion) error
	SaveReport(ctx context.Context, sessionID string, report *coach.SessionReport) error

	SaveTip(ctx context.Context, sessionID string, questionID int, tip string) error
	GetTip(ctx context.Context, sessionID string, questionID int) (string, error)

	Close() error
}

// SessionSummary is a listing row.
type SessionSummary struct {
	ID         string    `json:"id"`
	Backend    string    `json:"backend"`
	Model      string    `json:"model"`
	Mode       string    `json:"mode"`
	TargetRole string    `json:"target_role"`
	Answered   int       `json:"answered"`
	HasReport  bool      `json:"has_report"`
	CreatedAt  time.Time `json:"created_at"`
}

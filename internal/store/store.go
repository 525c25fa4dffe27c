package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"bridgeai/internal/profile"
	"bridgeai/internal/session"
)

type CandidateStatus string

const (
	CandidatePending     CandidateStatus = "pending"
	CandidateReady       CandidateStatus = "ready"
	CandidateUnavailable CandidateStatus = "unavailable"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrCandidateNotFound = errors.New("candidate not found")
)

// Candidate is a submitted profile as a recruiter sees it. Anonymized is
// only meaningful when Status is ready. Epoch is the session epoch of the
// submission that queued the current shield task.
type Candidate struct {
	ID          uuid.UUID        `json:"id"`
	Original    string           `json:"original"`
	Anonymized  string           `json:"anonymized,omitempty"`
	Status      CandidateStatus  `json:"status"`
	FailureKind string           `json:"failure_kind,omitempty"`
	Epoch       int              `json:"epoch"`
	Profile     *profile.Profile `json:"profile,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Store defines persistence contract; an external DB implementation can replace this.
type Store interface {
	CreateSession(ctx context.Context, s session.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (session.Session, error)
	UpdateSession(ctx context.Context, s session.Session) error
	SaveCandidate(ctx context.Context, c Candidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (Candidate, error)
	Close() error
}

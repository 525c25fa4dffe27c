// Package shield produces the anonymized candidate view shown to recruiters.
package shield

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"bridgeai/internal/cache"
	"bridgeai/internal/coach"
	"bridgeai/internal/llm"
	"bridgeai/internal/queue"
	"bridgeai/internal/session"
	"bridgeai/internal/store"
)

// FailureStale marks a candidate whose session was restarted before the
// shield worker reached it.
const FailureStale = "stale"

// DemoID addresses the built-in demo candidate.
const DemoID = "demo"

// Anonymizer rewrites text without demographic identifiers.
type Anonymizer interface {
	Anonymize(ctx context.Context, text string) (string, error)
}

// Result is the outcome of one anonymization. Text is empty unless Status
// is ready.
type Result struct {
	Text        string
	Status      store.CandidateStatus
	FailureKind coach.Kind
	Cached      bool
}

// TaskPayload is the body of a shield queue task.
type TaskPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Epoch     int       `json:"epoch"`
}

type Service struct {
	anonymizer Anonymizer
	cache      cache.Cache
	store      store.Store
	version    string
	ttl        time.Duration
	demo       string
	log        *slog.Logger

	group singleflight.Group
}

type Options struct {
	PromptVersion string
	CacheTTL      time.Duration
	DemoProfile   string
}

func New(a Anonymizer, c cache.Cache, st store.Store, opts Options, log *slog.Logger) *Service {
	return &Service{
		anonymizer: a,
		cache:      c,
		store:      st,
		version:    opts.PromptVersion,
		ttl:        opts.CacheTTL,
		demo:       opts.DemoProfile,
		log:        log,
	}
}

// Anonymize returns a cached rewrite when one exists; otherwise it asks the
// model once per distinct text in flight. Failures are never cached.
func (s *Service) Anonymize(ctx context.Context, text string) (Result, error) {
	key := cache.Key(s.version, text)
	if out, ok, err := s.cache.GetAnonymized(ctx, key); err != nil {
		s.log.Warn("anonymize cache lookup failed", "err", err)
	} else if ok {
		return Result{Text: out, Status: store.CandidateReady, Cached: true}, nil
	}

	// The shared call outlives any one caller; the coach still bounds it
	// with the model timeout.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		out, err := s.anonymizer.Anonymize(shared, text)
		if err != nil {
			return "", err
		}
		if err := s.cache.SetAnonymized(shared, key, out, s.ttl); err != nil {
			s.log.Warn("anonymize cache store failed", "err", err)
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return Result{Status: store.CandidateUnavailable, FailureKind: coach.KindTransport},
			&coach.Failure{Op: llm.TaskAnonymize, Kind: coach.KindTransport, Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			kind, _ := coach.KindOf(r.Err)
			return Result{Status: store.CandidateUnavailable, FailureKind: kind}, r.Err
		}
		return Result{Text: r.Val.(string), Status: store.CandidateReady}, nil
	}
}

// NewTask builds the queue task that anonymizes a submitted session.
func NewTask(sess session.Session) (queue.Task, error) {
	payload, err := json.Marshal(TaskPayload{SessionID: sess.ID, Epoch: sess.Epoch})
	if err != nil {
		return queue.Task{}, err
	}
	return queue.Task{ID: uuid.New(), Type: queue.TaskTypeShield, Payload: payload, MaxAttempts: 3}, nil
}

// Process is the queue handler for shield tasks. Only store errors are
// returned for redelivery; a failed model call marks the candidate
// unavailable.
func (s *Service) Process(ctx context.Context, task queue.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		s.log.Error("invalid shield payload", "task_id", task.ID, "err", err)
		return nil
	}

	sess, err := s.store.GetSession(ctx, p.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.log.Warn("shield task for missing session", "session_id", p.SessionID)
			return nil
		}
		return fmt.Errorf("load session %s: %w", p.SessionID, err)
	}
	if sess.Epoch != p.Epoch || sess.State != session.StateResult || sess.Profile == nil {
		s.log.Info("discarding stale shield task", "session_id", p.SessionID, "epoch", p.Epoch, "current_epoch", sess.Epoch)
		return s.abandon(ctx, p)
	}

	c := store.Candidate{
		ID:        sess.ID,
		Original:  sess.Narrative(),
		Status:    store.CandidatePending,
		Profile:   sess.Profile,
		Epoch:     p.Epoch,
		UpdatedAt: time.Now().UTC(),
	}
	if existing, err := s.store.GetCandidate(ctx, sess.ID); err == nil && existing.Status == store.CandidateReady && existing.Original == c.Original {
		return nil
	}
	if err := s.store.SaveCandidate(ctx, c); err != nil {
		return fmt.Errorf("save pending candidate: %w", err)
	}

	res, anonErr := s.Anonymize(ctx, c.Original)
	c.Status = res.Status
	c.Anonymized = res.Text
	c.FailureKind = string(res.FailureKind)
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveCandidate(ctx, c); err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}

	if anonErr != nil {
		// Model failures are final; resubmitting the session queues a new task.
		s.log.Warn("candidate anonymization failed", "session_id", sess.ID, "kind", res.FailureKind)
		return nil
	}
	s.log.Info("candidate anonymized", "session_id", sess.ID, "cached", res.Cached)
	return nil
}

// abandon marks the candidate left pending by a stale task unavailable so
// the recruiter view stops waiting for it. A candidate resubmitted under a
// newer epoch belongs to another task and is left alone.
func (s *Service) abandon(ctx context.Context, p TaskPayload) error {
	c, err := s.store.GetCandidate(ctx, p.SessionID)
	if errors.Is(err, store.ErrCandidateNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load candidate %s: %w", p.SessionID, err)
	}
	if c.Status != store.CandidatePending || c.Epoch != p.Epoch {
		return nil
	}
	c.Status = store.CandidateUnavailable
	c.FailureKind = FailureStale
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveCandidate(ctx, c); err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}
	return nil
}

// Candidate loads a submitted candidate. The demo id anonymizes the built-in
// demo profile on request.
func (s *Service) Candidate(ctx context.Context, id string) (store.Candidate, error) {
	if id == DemoID {
		return s.demoCandidate(ctx), nil
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return store.Candidate{}, store.ErrCandidateNotFound
	}
	return s.store.GetCandidate(ctx, uid)
}

func (s *Service) demoCandidate(ctx context.Context) store.Candidate {
	c := store.Candidate{Original: s.demo, UpdatedAt: time.Now().UTC()}
	res, err := s.Anonymize(ctx, s.demo)
	if err != nil {
		s.log.Warn("demo anonymization failed", "kind", res.FailureKind)
	}
	c.Status = res.Status
	c.Anonymized = res.Text
	c.FailureKind = string(res.FailureKind)
	return c
}

// Package intake runs session actions: it applies state-machine transitions,
// issues at most one coach call per action and applies the fallback policy
// for failed calls.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"bridgeai/internal/blob"
	"bridgeai/internal/catalog"
	"bridgeai/internal/coach"
	"bridgeai/internal/document"
	"bridgeai/internal/profile"
	"bridgeai/internal/prompts"
	"bridgeai/internal/queue"
	"bridgeai/internal/session"
	"bridgeai/internal/shield"
	"bridgeai/internal/store"
)

var (
	ErrBusy             = errors.New("a model call is already in progress for this session")
	ErrUnknownLanguage  = errors.New("unknown language")
	ErrNotSubmittable   = errors.New("session has no profile to submit")
	ErrQueueUnavailable = errors.New("task queue unavailable")
	ErrTextTooLong      = errors.New("text is too long")
)

// Coach is the subset of coach.Coach the intake flows call.
// MaxTextLength bounds, in characters, any single piece of user text:
// typed turns, transcripts and text extracted from uploads.
const MaxTextLength = 20000

type Coach interface {
	ExtractProfile(ctx context.Context, narrative string) (profile.Profile, error)
	FollowUp(ctx context.Context, narrative string) (string, error)
}

type OutcomeKind string

const (
	OutcomeFollowUp OutcomeKind = "follow_up"
	OutcomeProfile  OutcomeKind = "profile"
	OutcomeFailed   OutcomeKind = "failed"
	OutcomeStale    OutcomeKind = "stale"
)

// Outcome reports what the coach call of one action produced.
// FailureKind is set whenever the call failed, including when a fallback
// follow-up question was shown instead.
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	FailureKind string      `json:"failure_kind,omitempty"`
}

type Result struct {
	Session session.Session `json:"session"`
	Outcome Outcome         `json:"outcome"`
}

type Options struct {
	TurnThreshold   int
	EnqueueAttempts int
	EnqueueBackoff  time.Duration
}

type Service struct {
	store   store.Store
	coach   Coach
	prompts *prompts.Catalog
	content *catalog.Catalog
	queue   queue.Queue
	archive blob.Archive
	opts    Options
	log     *slog.Logger
	now     func() time.Time

	// mu guards load-modify-save sections; coach calls run outside it.
	mu sync.Mutex
}

func New(st store.Store, c Coach, p *prompts.Catalog, content *catalog.Catalog, q queue.Queue, archive blob.Archive, opts Options, log *slog.Logger) *Service {
	if opts.TurnThreshold <= 0 {
		opts.TurnThreshold = session.DefaultProfileTurnThreshold
	}
	if opts.EnqueueAttempts <= 0 {
		opts.EnqueueAttempts = 3
	}
	if opts.EnqueueBackoff <= 0 {
		opts.EnqueueBackoff = 100 * time.Millisecond
	}
	if archive == nil {
		archive = blob.Noop{}
	}
	return &Service{
		store:   st,
		coach:   c,
		prompts: p,
		content: content,
		queue:   q,
		archive: archive,
		opts:    opts,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, flow session.Flow) (session.Session, error) {
	sess, err := session.New(flow, s.prompts.Conversation.Greeting, s.now())
	if err != nil {
		return session.Session{}, err
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("session created", "session_id", sess.ID, "flow", flow)
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return s.store.GetSession(ctx, id)
}

// SendMessage appends a conversation turn, then asks either for a follow-up
// question or, at the turn threshold, for the profile.
func (s *Service) SendMessage(ctx context.Context, id uuid.UUID, text string) (Result, error) {
	if err := checkLength(text); err != nil {
		return Result{}, err
	}
	var step session.Step
	sess, err := s.begin(ctx, id, func(sess *session.Session) error {
		var err error
		step, err = sess.AddUserTurn(text, s.opts.TurnThreshold)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	narrative := sess.Narrative()
	if step == session.StepFollowUp {
		question, err := s.coach.FollowUp(ctx, narrative)
		return s.finish(ctx, sess, func(sess *session.Session) Outcome {
			if err != nil {
				f := failureOf(err)
				sess.LastFailure = &f
				sess.AddCoachMessage(s.prompts.FollowUp.Fallback)
				return Outcome{Kind: OutcomeFollowUp, FailureKind: f.Kind}
			}
			sess.AddCoachMessage(question)
			return Outcome{Kind: OutcomeFollowUp}
		})
	}

	p, err := s.coach.ExtractProfile(ctx, narrative)
	return s.finish(ctx, sess, func(sess *session.Session) Outcome {
		out := s.applyExtraction(sess, p, err)
		if out.Kind == OutcomeProfile {
			sess.AddCoachMessage(s.prompts.Conversation.Completion)
		} else {
			sess.AddCoachMessage(s.prompts.Conversation.ExtractionFailed)
		}
		return out
	})
}

// SelectLanguage moves a guided session to capture. The code must be one
// the content catalog offers.
func (s *Service) SelectLanguage(ctx context.Context, id uuid.UUID, code string) (session.Session, error) {
	if _, ok := s.content.Language(code); !ok {
		return session.Session{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return s.update(ctx, id, func(sess *session.Session) error {
		return sess.SelectLanguage(code)
	})
}

// SubmitTranscript captures the guided narrative and extracts the profile.
func (s *Service) SubmitTranscript(ctx context.Context, id uuid.UUID, text string) (Result, error) {
	if err := checkLength(text); err != nil {
		return Result{}, err
	}
	sess, err := s.begin(ctx, id, func(sess *session.Session) error {
		return sess.Capture(text)
	})
	if err != nil {
		return Result{}, err
	}
	return s.extractGuided(ctx, sess)
}

// SimulateRecording submits the sample transcript of the selected language.
func (s *Service) SimulateRecording(ctx context.Context, id uuid.UUID) (Result, error) {
	sess, err := s.begin(ctx, id, func(sess *session.Session) error {
		return sess.Capture(s.content.SampleTranscript(sess.Language))
	})
	if err != nil {
		return Result{}, err
	}
	return s.extractGuided(ctx, sess)
}

// AddDocument extracts text from an uploaded file and submits it as a
// conversation turn or the guided transcript. The file is archived only
// once the session accepted it.
func (s *Service) AddDocument(ctx context.Context, id uuid.UUID, filename, contentType string, data []byte) (Result, error) {
	text, err := document.ExtractText(filename, contentType, data)
	if err != nil {
		return Result{}, err
	}
	if err := checkLength(text); err != nil {
		return Result{}, fmt.Errorf("%s: %w", filename, err)
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if sess.Flow == session.FlowConversation {
		res, err = s.SendMessage(ctx, id, text)
	} else {
		res, err = s.SubmitTranscript(ctx, id, text)
	}
	if err != nil {
		return Result{}, err
	}

	if key, err := s.archive.Put(ctx, id, filename, document.DetectType(filename, contentType), data); err != nil {
		s.log.Warn("failed to archive upload", "session_id", id, "err", err)
	} else if key != "" {
		s.log.Info("upload archived", "session_id", id, "key", key)
	}
	return res, nil
}

// Retry re-runs extraction for a guided session whose last call failed.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (Result, error) {
	sess, err := s.begin(ctx, id, func(sess *session.Session) error {
		if !sess.CanRetry() {
			return fmt.Errorf("%w: nothing to retry in %s %s session", session.ErrInvalidTransition, sess.State, sess.Flow)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return s.extractGuided(ctx, sess)
}

// StartOver resets the session from any state, including while a call is
// in flight; that call's result is then discarded.
func (s *Service) StartOver(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		return sess.StartOver(s.prompts.Conversation.Greeting)
	})
}

// Submit hands a finished profile to the bias shield worker.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (store.Candidate, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return store.Candidate{}, err
	}
	if sess.State != session.StateResult || sess.Profile == nil {
		return store.Candidate{}, ErrNotSubmittable
	}

	c := store.Candidate{
		ID:        sess.ID,
		Original:  sess.Narrative(),
		Status:    store.CandidatePending,
		Profile:   sess.Profile,
		Epoch:     sess.Epoch,
		UpdatedAt: s.now(),
	}
	if existing, err := s.store.GetCandidate(ctx, id); err == nil && alreadySubmitted(existing, c) {
		return existing, nil
	}
	if err := s.store.SaveCandidate(ctx, c); err != nil {
		return store.Candidate{}, fmt.Errorf("save candidate: %w", err)
	}

	task, err := shield.NewTask(sess)
	if err != nil {
		return store.Candidate{}, err
	}
	if err := queue.EnqueueWithRetry(ctx, s.queue, task, s.opts.EnqueueAttempts, s.opts.EnqueueBackoff); err != nil {
		s.log.Error("failed to enqueue shield task", "session_id", id, "err", err)
		c.Status = store.CandidateUnavailable
		c.FailureKind = failureQueue
		if serr := s.store.SaveCandidate(context.WithoutCancel(ctx), c); serr != nil {
			s.log.Error("failed to mark candidate unavailable", "session_id", id, "err", serr)
		}
		return store.Candidate{}, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	s.log.Info("session submitted", "session_id", id, "task_id", task.ID)
	return c, nil
}

func checkLength(text string) error {
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return fmt.Errorf("%w: %d characters, limit %d", ErrTextTooLong, n, MaxTextLength)
	}
	return nil
}

// alreadySubmitted reports whether existing needs no new shield task: it is
// ready for the same text, or pending on a task queued for this epoch.
func alreadySubmitted(existing, c store.Candidate) bool {
	if existing.Original != c.Original {
		return false
	}
	switch existing.Status {
	case store.CandidateReady:
		return true
	case store.CandidatePending:
		return existing.Epoch == c.Epoch
	default:
		return false
	}
}

func (s *Service) extractGuided(ctx context.Context, sess session.Session) (Result, error) {
	p, err := s.coach.ExtractProfile(ctx, sess.Narrative())
	return s.finish(ctx, sess, func(sess *session.Session) Outcome {
		return s.applyExtraction(sess, p, err)
	})
}

func (s *Service) applyExtraction(sess *session.Session, p profile.Profile, err error) Outcome {
	if err != nil {
		f := failureOf(err)
		if ferr := sess.Fail(f); ferr != nil {
			s.log.Error("failed to record extraction failure", "session_id", sess.ID, "err", ferr)
		}
		return Outcome{Kind: OutcomeFailed, FailureKind: f.Kind}
	}
	if rerr := sess.Resolve(p); rerr != nil {
		s.log.Error("failed to resolve session", "session_id", sess.ID, "err", rerr)
		return Outcome{Kind: OutcomeFailed, FailureKind: failureInternal}
	}
	return Outcome{Kind: OutcomeProfile}
}

// begin loads the session, rejects it if a call is pending, applies mutate
// and persists it with the pending flag set.
func (s *Service) begin(ctx context.Context, id uuid.UUID, mutate func(*session.Session) error) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if sess.Pending {
		return session.Session{}, ErrBusy
	}
	if err := mutate(&sess); err != nil {
		return session.Session{}, err
	}
	sess.Pending = true
	sess.UpdatedAt = s.now()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// finish applies a call result to the stored session unless it was started
// over since began was called.
func (s *Service) finish(ctx context.Context, began session.Session, apply func(*session.Session) Outcome) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The request context may already be cancelled; the result still has
	// to be recorded and the pending flag cleared.
	ctx = context.WithoutCancel(ctx)

	sess, err := s.store.GetSession(ctx, began.ID)
	if err != nil {
		return Result{}, err
	}
	if sess.Epoch != began.Epoch || !sess.Pending {
		s.log.Info("discarding stale model result", "session_id", sess.ID, "epoch", began.Epoch, "current_epoch", sess.Epoch)
		return Result{Session: sess, Outcome: Outcome{Kind: OutcomeStale}}, nil
	}

	out := apply(&sess)
	sess.Pending = false
	sess.UpdatedAt = s.now()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("save session: %w", err)
	}
	return Result{Session: sess, Outcome: out}, nil
}

// update is a load-modify-save section without a coach call.
func (s *Service) update(ctx context.Context, id uuid.UUID, mutate func(*session.Session) error) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if err := mutate(&sess); err != nil {
		return session.Session{}, err
	}
	sess.UpdatedAt = s.now()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

const (
	failureInternal = "internal"
	failureQueue    = "queue"
)

var failureMessages = map[string]string{
	string(coach.KindTransport):  "The coaching service could not be reached.",
	string(coach.KindParse):      "The coaching service returned a reply that could not be used.",
	string(coach.KindCredential): "The coaching service is not configured.",
	failureInternal:              "Something went wrong while processing your story.",
}

func failureOf(err error) session.Failure {
	kind := failureInternal
	if k, ok := coach.KindOf(err); ok {
		kind = string(k)
	}
	return session.Failure{Kind: kind, Message: failureMessages[kind]}
}

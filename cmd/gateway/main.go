package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bridgeai/internal/app"
	"bridgeai/internal/document"
	"bridgeai/internal/httputil"
	"bridgeai/internal/intake"
	"bridgeai/internal/queue"
	"bridgeai/internal/session"
	"bridgeai/internal/shield"
	"bridgeai/internal/store"
)

type createSessionRequest struct {
	Flow string `json:"flow" validate:"required,oneof=conversation guided"`
}

// The max tag matches intake.MaxTextLength.
type textRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

type languageRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	c := deps.Coach()
	shieldSvc := deps.Shield(c)
	intakeSvc := deps.Intake(c)
	r := newRouter(deps, intakeSvc, shieldSvc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httputil.Serve(ctx, deps.Log, fmt.Sprintf(":%d", deps.Config.Port), r, "gateway")
	})
	// The in-process queue has no separate consumer, so the gateway drains it.
	if deps.Config.QueueProvider == "local" || deps.Config.QueueProvider == "" {
		g.Go(func() error {
			return deps.Queue.Worker(ctx, queue.TaskTypeShield, shieldSvc.Process)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		deps.Log.Error("gateway stopped", "err", err)
		return
	}
	deps.Log.Info("gateway stopped")
}

func newRouter(deps app.Deps, in *intake.Service, sh *shield.Service) http.Handler {
	r := httputil.NewRouter(deps.Log, deps.Config.LLMTimeout)

	r.Get("/healthz", httputil.HealthHandler(deps))
	r.Get("/api/languages", languagesHandler(deps))
	r.Get("/api/jobs", jobsHandler(deps))

	r.Post("/api/sessions", createSessionHandler(deps, in))
	r.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Get("/", getSessionHandler(deps, in))
		r.Post("/messages", textHandler(deps, in.SendMessage))
		r.Post("/transcript", textHandler(deps, in.SubmitTranscript))
		r.Post("/language", languageHandler(deps, in))
		r.Post("/recording", actionHandler(deps, in.SimulateRecording))
		r.Post("/retry", actionHandler(deps, in.Retry))
		r.Post("/documents", documentHandler(deps, in))
		r.Post("/start-over", startOverHandler(deps, in))
		r.Post("/submit", submitHandler(deps, in))
	})

	r.Post("/api/shield/anonymize", anonymizeHandler(deps, sh))
	r.Get("/api/candidates/{id}", candidateHandler(deps, sh))
	return r
}

func languagesHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"default":   deps.Content.DefaultLanguage,
			"languages": deps.Content.Languages,
		})
	}
}

func jobsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"jobs": deps.Content.Jobs})
	}
}

func createSessionHandler(deps app.Deps, in *intake.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		flow, err := session.ParseFlow(req.Flow)
		if err != nil {
			httputil.Fail(deps.Log, w, "unknown flow", err, http.StatusBadRequest)
			return
		}
		sess, err := in.Create(r.Context(), flow)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, sess)
	}
}

func getSessionHandler(deps app.Deps, in *intake.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps.Log, w, r)
		if !ok {
			return
		}
		sess, err := in.Get(r.Context(), id)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sess)
	}
}

// textHandler serves the actions that take a block of user text.
func textHandler(deps app.Deps, action func(context.Context, uuid.UUID, string) (intake.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps.Log, w, r)
		if !ok {
			return
		}
		var req textRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		res, err := action(r.Context(), id, req.Text)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func actionHandler(deps app.Deps, action func(context.Context, uuid.UUID) (intake.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps.Log, w, r)
		if !ok {
			return
		}
		res, err := action(r.Context(), id)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func languageHandler(deps app.Deps, in *intake.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps.Log, w, r)
		if !ok {
			return
		}
		var req languageRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		sess, err := in.SelectLanguage(r.Context(), id, req.Code)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sess)
	}
}

func documentHandler(deps app.Deps, in *intake.Service) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps.Log, w, r)
		if !ok {
			return
		}
		tooLarge := fmt.Sprintf("file too large (max %d bytes)", maxFileSize)
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, tooLarge, nil, http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				httputil.Fail(deps.Log, w, tooLarge, err, http.StatusRequestEntityTooLarge)
				return
			}
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, tooLarge, nil, http.StatusRequestEntityTooLarge)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusBadRequest)
			return
		}

		res, err := in.AddDocument(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func startOverHandler(deps app.Deps, in *intake.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps.Log, w, r)
		if !ok {
			return
		}
		sess, err := in.StartOver(r.Context(), id)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sess)
	}
}

func submitHandler(deps app.Deps, in *intake.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(deps.Log, w, r)
		if !ok {
			return
		}
		c, err := in.Submit(r.Context(), id)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"candidate_id": c.ID,
			"status":       c.Status,
		})
	}
}

func anonymizeHandler(deps app.Deps, sh *shield.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		res, err := sh.Anonymize(r.Context(), req.Text)
		if err != nil {
			// The failure is reported by kind only; its text never reaches the client.
			deps.Log.Warn("anonymize failed", "err", err, "kind", res.FailureKind)
			httputil.WriteJSON(w, http.StatusBadGateway, map[string]any{
				"error":        "anonymization unavailable",
				"status":       res.Status,
				"failure_kind": res.FailureKind,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"text":   res.Text,
			"status": res.Status,
			"cached": res.Cached,
		})
	}
}

func candidateHandler(deps app.Deps, sh *shield.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := shield.ParseMode(r.URL.Query().Get("view"))
		if err != nil {
			httputil.Fail(deps.Log, w, "view must be anonymized or revealed", err, http.StatusBadRequest)
			return
		}
		id := chi.URLParam(r, "id")
		c, err := sh.Candidate(r.Context(), id)
		if err != nil {
			fail(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, shield.Render(id, c, mode))
	}
}

func sessionID(log *slog.Logger, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(log, w, "invalid session id", err, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// fail maps service errors onto HTTP statuses.
func fail(log *slog.Logger, w http.ResponseWriter, err error) {
	status, message := errStatus(err)
	httputil.Fail(log, w, message, err, status)
}

func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, store.ErrCandidateNotFound):
		return http.StatusNotFound, "candidate not found"
	case errors.Is(err, intake.ErrBusy),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrConversationComplete),
		errors.Is(err, intake.ErrNotSubmittable):
		return http.StatusConflict, err.Error()
	case errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, intake.ErrUnknownLanguage),
		errors.Is(err, intake.ErrTextTooLong),
		errors.Is(err, document.ErrUnsupportedType),
		errors.Is(err, document.ErrNoText),
		errors.Is(err, document.ErrUnreadable):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, intake.ErrQueueUnavailable):
		return http.StatusServiceUnavailable, "candidate queue unavailable, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

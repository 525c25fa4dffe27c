package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgeai/internal/app"
	"bridgeai/internal/llm"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type textRequest struct {
	Text string `json:"text" validate:"required,max=10"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"text":"hello"}`, false},
		{"missing field", `{}`, true},
		{"too long", `{"text":"hello world!"}`, true},
		{"unknown field", `{"text":"hi","extra":1}`, true},
		{"malformed", `{"text":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req textRequest
			err := DecodeJSON(r, &req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "hello", req.Text)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	var req textRequest
	err := DecodeJSON(r, &req)
	require.Error(t, err)

	w := httptest.NewRecorder()
	ValidationError(discard(), w, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "required", body.Fields["text"])
}

func TestFail(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(discard(), w, "session not found", errors.New("missing"), http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"session not found"}`, w.Body.String())

	w = httptest.NewRecorder()
	Fail(discard(), w, "boom", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		gen            llm.Generator
		wantConfigured bool
	}{
		{"configured", llm.NewStub(), true},
		{"missing credential", llm.Unconfigured{Provider: "gemini"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HealthHandler(app.Deps{LLM: tt.gen, Log: discard()})(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "ok", body["status"])
			assert.Equal(t, tt.wantConfigured, body["llm_configured"])
		})
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, discard(), "127.0.0.1:0", http.NotFoundHandler(), "test")
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewRouterTimeout(t *testing.T) {
	tests := []struct {
		name         string
		llmTimeout   time.Duration
		wantDeadline bool
	}{
		{"bounded", time.Second, true},
		{"disabled", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(discard(), tt.llmTimeout)
			var hasDeadline bool
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				_, hasDeadline = r.Context().Deadline()
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.wantDeadline, hasDeadline)
		})
	}
}

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bridgeai/internal/app"
	"bridgeai/internal/cache"
	"bridgeai/internal/catalog"
	"bridgeai/internal/config"
	"bridgeai/internal/llm"
	"bridgeai/internal/profile"
	"bridgeai/internal/prompts"
	"bridgeai/internal/queue"
	"bridgeai/internal/session"
	"bridgeai/internal/shield"
	"bridgeai/internal/store"
)

func newTestDeps(t *testing.T, gen llm.Generator, st store.Store, q queue.Queue) app.Deps {
	t.Helper()
	p, err := prompts.Default()
	require.NoError(t, err)
	content, err := catalog.Load()
	require.NoError(t, err)
	return app.Deps{
		Config:  config.Config{Port: 0},
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:   st,
		Queue:   q,
		Cache:   cache.NewNoOpCache(),
		LLM:     gen,
		Prompts: p,
		Content: content,
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := new(queue.MockQueue)
	q.On("Worker", mock.Anything, queue.TaskTypeShield, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.Canceled).Once()

	deps := newTestDeps(t, llm.NewStub(), store.NewMemory(), q)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, deps, deps.Shield(deps.Coach()))
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	q.AssertExpectations(t)
}

func TestRunReportsWorkerFailure(t *testing.T) {
	q := new(queue.MockQueue)
	q.On("Worker", mock.Anything, queue.TaskTypeShield, mock.Anything).Return(errors.New("consumer closed")).Once()

	deps := newTestDeps(t, llm.NewStub(), store.NewMemory(), q)
	err := run(context.Background(), deps, deps.Shield(deps.Coach()))
	assert.EqualError(t, err, "consumer closed")
}

// The worker drains a local queue end to end: submitted session in,
// anonymized candidate out.
func TestRunProcessesLocalQueue(t *testing.T) {
	st := store.NewMemory()
	sess, err := session.New(session.FlowGuided, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, sess.SelectLanguage("en"))
	require.NoError(t, sess.Capture("Maria Lopez ran the block's daycare."))
	require.NoError(t, sess.Resolve(profile.Profile{Title: "Childcare Coordinator"}))
	require.NoError(t, st.CreateSession(context.Background(), sess))

	gen := new(llm.MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Task == llm.TaskAnonymize
	})).Return("[Candidate] ran the block's daycare.", nil).Once()

	deps := newTestDeps(t, gen, st, nil)
	deps.Queue = queue.NewLocal(deps.Log, 4)
	task, err := shield.NewTask(sess)
	require.NoError(t, err)
	require.NoError(t, deps.Queue.Enqueue(context.Background(), task))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, deps, deps.Shield(deps.Coach()))
	}()

	assert.Eventually(t, func() bool {
		c, err := st.GetCandidate(context.Background(), sess.ID)
		return err == nil && c.Status == store.CandidateReady
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	c, err := st.GetCandidate(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "[Candidate] ran the block's daycare.", c.Anonymized)
	gen.AssertExpectations(t)
}

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgeai/internal/profile"
)

const greeting = "Hello! Tell me about a role you're proud of."

func newGuided(t *testing.T) Session {
	t.Helper()
	s, err := New(FlowGuided, greeting, time.Now())
	require.NoError(t, err)
	return s
}

func newConversation(t *testing.T) Session {
	t.Helper()
	s, err := New(FlowConversation, greeting, time.Now())
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	g := newGuided(t)
	assert.Equal(t, StateLanguageSelect, g.State)
	assert.Empty(t, g.Messages)

	c := newConversation(t)
	assert.Equal(t, StateCapture, c.State)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, Message{Role: RoleAI, Text: greeting}, c.Messages[0])

	_, err := New(Flow("kiosk"), greeting, time.Now())
	assert.Error(t, err)
}

func TestNextStep(t *testing.T) {
	tests := []struct {
		turns, threshold int
		want             Step
	}{
		{0, 2, StepFollowUp},
		{1, 2, StepFollowUp},
		{2, 2, StepExtract},
		{5, 2, StepExtract},
		{2, 3, StepFollowUp},
		{1, 0, StepFollowUp},
		{2, 0, StepExtract},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextStep(tt.turns, tt.threshold), "turns=%d threshold=%d", tt.turns, tt.threshold)
	}
}

func TestGuidedHappyPath(t *testing.T) {
	s := newGuided(t)

	require.NoError(t, s.SelectLanguage("es"))
	assert.Equal(t, StateCapture, s.State)

	require.NoError(t, s.Capture("He trabajado cuidando a los niños"))
	assert.Equal(t, StateProcessing, s.State)
	assert.Nil(t, s.Profile)

	p := profile.Profile{Title: "Childcare Coordinator", HardSkills: []string{"Scheduling"}, SoftSkills: []string{"Empathy"}}
	require.NoError(t, s.Resolve(p))
	assert.Equal(t, StateResult, s.State)
	assert.Equal(t, &p, s.Profile)
}

func TestGuidedRejectsOutOfOrderTransitions(t *testing.T) {
	s := newGuided(t)

	assert.ErrorIs(t, s.Capture("story"), ErrInvalidTransition)
	assert.ErrorIs(t, s.Resolve(profile.Profile{}), ErrInvalidTransition)
	assert.ErrorIs(t, s.Fail(Failure{Kind: "transport"}), ErrInvalidTransition)
	_, err := s.AddUserTurn("hi", 2)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.SelectLanguage("en"))
	assert.ErrorIs(t, s.SelectLanguage("es"), ErrInvalidTransition)
	assert.ErrorIs(t, s.Capture("   "), ErrEmptyInput)
	assert.Equal(t, StateCapture, s.State)
}

func TestGuidedFailureStaysInProcessing(t *testing.T) {
	s := newGuided(t)
	require.NoError(t, s.SelectLanguage("en"))
	require.NoError(t, s.Capture("story"))

	require.NoError(t, s.Fail(Failure{Kind: "transport", Message: "boom"}))
	assert.Equal(t, StateProcessing, s.State)
	assert.Nil(t, s.Profile)
	assert.True(t, s.CanRetry())

	require.NoError(t, s.Resolve(profile.Profile{Title: "t"}))
	assert.Nil(t, s.LastFailure)
	assert.False(t, s.CanRetry())
}

func TestStartOverFromEveryState(t *testing.T) {
	build := map[State]func(*testing.T) Session{
		StateLanguageSelect: newGuided,
		StateCapture: func(t *testing.T) Session {
			s := newGuided(t)
			require.NoError(t, s.SelectLanguage("en"))
			return s
		},
		StateProcessing: func(t *testing.T) Session {
			s := newGuided(t)
			require.NoError(t, s.SelectLanguage("en"))
			require.NoError(t, s.Capture("story"))
			s.Pending = true
			return s
		},
		StateResult: func(t *testing.T) Session {
			s := newGuided(t)
			require.NoError(t, s.SelectLanguage("en"))
			require.NoError(t, s.Capture("story"))
			require.NoError(t, s.Resolve(profile.Profile{Title: "t"}))
			return s
		},
	}

	for state, fn := range build {
		t.Run(string(state), func(t *testing.T) {
			s := fn(t)
			require.Equal(t, state, s.State)
			epoch := s.Epoch

			require.NoError(t, s.StartOver(greeting))
			assert.Equal(t, StateLanguageSelect, s.State)
			assert.Empty(t, s.Transcript)
			assert.Empty(t, s.Language)
			assert.Nil(t, s.Profile)
			assert.False(t, s.Pending)
			assert.Equal(t, epoch+1, s.Epoch)
		})
	}
}

func TestConversationRouting(t *testing.T) {
	s := newConversation(t)

	step, err := s.AddUserTurn("I ran the school pantry.", DefaultProfileTurnThreshold)
	require.NoError(t, err)
	assert.Equal(t, StepFollowUp, step)
	assert.Equal(t, StateCapture, s.State)
	s.AddCoachMessage("How many families did you serve?")

	step, err = s.AddUserTurn("About 60 families a week.", DefaultProfileTurnThreshold)
	require.NoError(t, err)
	assert.Equal(t, StepExtract, step)
	assert.Equal(t, StateProcessing, s.State)
	assert.Equal(t, "I ran the school pantry. About 60 families a week.", s.Narrative())

	require.NoError(t, s.Resolve(profile.Profile{Title: "Food Program Coordinator"}))
	_, err = s.AddUserTurn("one more thing", DefaultProfileTurnThreshold)
	assert.ErrorIs(t, err, ErrConversationComplete)
}

func TestConversationFailureReturnsToCapture(t *testing.T) {
	s := newConversation(t)
	_, _ = s.AddUserTurn("first", 1)
	require.Equal(t, StateProcessing, s.State)

	require.NoError(t, s.Fail(Failure{Kind: "parse"}))
	assert.Equal(t, StateCapture, s.State)
	assert.Nil(t, s.Profile)
	assert.False(t, s.CanRetry())

	step, err := s.AddUserTurn("second", 1)
	require.NoError(t, err)
	assert.Equal(t, StepExtract, step)
	assert.Nil(t, s.LastFailure)
}

func TestConversationStartOverReseedsGreeting(t *testing.T) {
	s := newConversation(t)
	_, _ = s.AddUserTurn("first", 2)
	require.NoError(t, s.StartOver(greeting))

	assert.Equal(t, StateCapture, s.State)
	assert.Equal(t, []Message{{Role: RoleAI, Text: greeting}}, s.Messages)
	assert.Equal(t, 0, s.UserTurns())
}

func TestCloneDoesNotAlias(t *testing.T) {
	s := newConversation(t)
	_, _ = s.AddUserTurn("first", 2)
	s.Profile = &profile.Profile{HardSkills: []string{"a"}}

	c := s.Clone()
	c.Messages[0].Text = "changed"
	c.Profile.HardSkills[0] = "changed"

	assert.Equal(t, greeting, s.Messages[0].Text)
	assert.Equal(t, "a", s.Profile.HardSkills[0])
}

func TestParseFlow(t *testing.T) {
	f, err := ParseFlow("guided")
	require.NoError(t, err)
	assert.Equal(t, FlowGuided, f)

	_, err = ParseFlow("voice")
	assert.Error(t, err)
}

package session

import (
	"errors"
	"fmt"
	"strings"

	"bridgeai/internal/profile"
)

var (
	ErrInvalidTransition    = errors.New("invalid session transition")
	ErrConversationComplete = errors.New("conversation already produced a profile")
	ErrEmptyInput           = errors.New("input text is empty")
)

// Step is what the conversation needs from the coach after a user turn.
type Step string

const (
	StepFollowUp Step = "follow_up"
	StepExtract  Step = "extract"
)

// NextStep applies the turn-count routing rule.
func NextStep(userTurns, threshold int) Step {
	if threshold <= 0 {
		threshold = DefaultProfileTurnThreshold
	}
	if userTurns < threshold {
		return StepFollowUp
	}
	return StepExtract
}

func (s *Session) transitionErr(action string) error {
	return fmt.Errorf("%w: %s not allowed in %s %s session", ErrInvalidTransition, action, s.State, s.Flow)
}

// SelectLanguage moves a guided session from language_select to capture.
func (s *Session) SelectLanguage(code string) error {
	if s.Flow != FlowGuided || s.State != StateLanguageSelect {
		return s.transitionErr("select language")
	}
	if strings.TrimSpace(code) == "" {
		return ErrEmptyInput
	}
	s.Language = code
	s.State = StateCapture
	return nil
}

// Capture stores the guided transcript and enters processing.
func (s *Session) Capture(text string) error {
	if s.Flow != FlowGuided || s.State != StateCapture {
		return s.transitionErr("capture")
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	s.Transcript = text
	s.LastFailure = nil
	s.State = StateProcessing
	return nil
}

// AddUserTurn appends a conversation turn and reports what the coach must do
// next. Reaching the threshold moves the session to processing.
func (s *Session) AddUserTurn(text string, threshold int) (Step, error) {
	if s.Flow != FlowConversation {
		return "", s.transitionErr("send message")
	}
	if s.State == StateResult {
		return "", ErrConversationComplete
	}
	if s.State != StateCapture {
		return "", s.transitionErr("send message")
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	s.Messages = append(s.Messages, Message{Role: RoleUser, Text: text})
	s.LastFailure = nil
	step := NextStep(s.UserTurns(), threshold)
	if step == StepExtract {
		s.State = StateProcessing
	}
	return step, nil
}

// AddCoachMessage appends a message from the coach.
func (s *Session) AddCoachMessage(text string) {
	s.Messages = append(s.Messages, Message{Role: RoleAI, Text: text})
}

// Resolve stores the extracted profile and enters result.
func (s *Session) Resolve(p profile.Profile) error {
	if s.State != StateProcessing {
		return s.transitionErr("resolve")
	}
	s.Profile = &p
	s.LastFailure = nil
	s.State = StateResult
	return nil
}

// Fail records an extraction failure without setting a profile. The guided
// flow stays in processing so the transcript can be retried; the
// conversation returns to capture so the user can keep talking.
func (s *Session) Fail(f Failure) error {
	if s.State != StateProcessing {
		return s.transitionErr("fail")
	}
	s.LastFailure = &f
	if s.Flow == FlowConversation {
		s.State = StateCapture
	}
	return nil
}

// CanRetry reports whether a guided extraction can be re-run.
func (s *Session) CanRetry() bool {
	return s.Flow == FlowGuided && s.State == StateProcessing && s.LastFailure != nil && s.Transcript != ""
}

// StartOver returns to the flow's initial state from any state and bumps the
// epoch so results of calls started earlier are discarded.
func (s *Session) StartOver(greeting string) error {
	s.Epoch++
	return s.reset(greeting)
}

func (s *Session) reset(greeting string) error {
	s.Language = ""
	s.Transcript = ""
	s.Profile = nil
	s.LastFailure = nil
	s.Pending = false
	s.Messages = []Message{}
	switch s.Flow {
	case FlowGuided:
		s.State = StateLanguageSelect
	case FlowConversation:
		s.State = StateCapture
		if greeting != "" {
			s.AddCoachMessage(greeting)
		}
	default:
		return fmt.Errorf("unknown flow %q", s.Flow)
	}
	return nil
}

// Package session models one intake interaction: the conversation with the
// career coach or the guided language/record/processing/result flow.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bridgeai/internal/profile"
)

// DefaultProfileTurnThreshold is the number of user turns at which the
// conversation stops asking follow-up questions and extracts a profile.
const DefaultProfileTurnThreshold = 2

type Flow string

const (
	FlowConversation Flow = "conversation"
	FlowGuided       Flow = "guided"
)

type State string

const (
	StateLanguageSelect State = "language_select"
	StateCapture        State = "capture"
	StateProcessing     State = "processing"
	StateResult         State = "result"
)

type Role string

const (
	RoleAI   Role = "ai"
	RoleUser Role = "user"
)

// Message is a single conversation turn.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Failure records why the last model call did not produce a result.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Session struct {
	ID          uuid.UUID        `json:"id"`
	Flow        Flow             `json:"flow"`
	State       State            `json:"state"`
	Language    string           `json:"language,omitempty"`
	Messages    []Message        `json:"messages"`
	Transcript  string           `json:"transcript,omitempty"`
	Profile     *profile.Profile `json:"profile,omitempty"`
	Pending     bool             `json:"pending"`
	Epoch       int              `json:"epoch"`
	LastFailure *Failure         `json:"last_failure,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// New starts a session in its flow's initial state. The conversation flow
// opens with the coach's greeting.
func New(flow Flow, greeting string, now time.Time) (Session, error) {
	s := Session{
		ID:        uuid.New(),
		Flow:      flow,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reset(greeting); err != nil {
		return Session{}, err
	}
	return s, nil
}

// ParseFlow validates a flow name.
func ParseFlow(name string) (Flow, error) {
	switch Flow(name) {
	case FlowConversation, FlowGuided:
		return Flow(name), nil
	default:
		return "", fmt.Errorf("unknown flow %q", name)
	}
}

// UserTurns counts the messages the user has sent.
func (s *Session) UserTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Narrative is the text sent for extraction: every user turn joined by a
// single space, or the captured transcript in the guided flow.
func (s *Session) Narrative() string {
	if s.Flow == FlowGuided {
		return s.Transcript
	}
	turns := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			turns = append(turns, m.Text)
		}
	}
	return strings.Join(turns, " ")
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.Profile != nil {
		p := s.Profile.Clone()
		out.Profile = &p
	}
	if s.LastFailure != nil {
		f := *s.LastFailure
		out.LastFailure = &f
	}
	return out
}

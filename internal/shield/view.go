package shield

import (
	"fmt"

	"bridgeai/internal/profile"
	"bridgeai/internal/store"
)

// Mode selects which text a recruiter sees.
type Mode string

const (
	ModeAnonymized Mode = "anonymized"
	ModeRevealed   Mode = "revealed"
)

// ParseMode accepts an empty value as anonymized.
func ParseMode(v string) (Mode, error) {
	switch Mode(v) {
	case "", ModeAnonymized:
		return ModeAnonymized, nil
	case ModeRevealed:
		return ModeRevealed, nil
	default:
		return "", fmt.Errorf("unknown view %q", v)
	}
}

type CandidateView struct {
	ID          string                `json:"id"`
	Mode        Mode                  `json:"mode"`
	Shielded    bool                  `json:"shielded"`
	Status      store.CandidateStatus `json:"status"`
	Text        string                `json:"text"`
	Notice      string                `json:"notice,omitempty"`
	FailureKind string                `json:"failure_kind,omitempty"`
	Profile     *profile.Profile      `json:"profile,omitempty"`
}

const (
	noticePending     = "The anonymized view is still being prepared."
	noticeUnavailable = "The anonymized view is unavailable right now."
)

// Render builds the recruiter view. Revealed mode always returns the
// original text unchanged; anonymized mode never substitutes anything
// other than a successful rewrite.
func Render(id string, c store.Candidate, mode Mode) CandidateView {
	v := CandidateView{
		ID:          id,
		Mode:        mode,
		Status:      c.Status,
		FailureKind: c.FailureKind,
		Profile:     c.Profile,
	}
	if mode == ModeRevealed {
		v.Text = c.Original
		return v
	}
	switch c.Status {
	case store.CandidateReady:
		v.Text = c.Anonymized
		v.Shielded = true
	case store.CandidateUnavailable:
		v.Notice = noticeUnavailable
	default:
		v.Notice = noticePending
	}
	return v
}

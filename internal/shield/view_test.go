package shield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgeai/internal/store"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAnonymized, m)

	m, err = ParseMode("revealed")
	require.NoError(t, err)
	assert.Equal(t, ModeRevealed, m)

	_, err = ParseMode("raw")
	assert.Error(t, err)
}

func TestRenderToggleNeverMutatesOriginal(t *testing.T) {
	orig := "  Jane Doe, 42, Oakland.\n\tLed the PTA budget (≈$12k).  "
	c := store.Candidate{Original: orig, Anonymized: "[Candidate] led the PTA budget.", Status: store.CandidateReady}

	for i := 0; i < 3; i++ {
		anon := Render("id", c, ModeAnonymized)
		assert.Equal(t, "[Candidate] led the PTA budget.", anon.Text)
		assert.True(t, anon.Shielded)

		rev := Render("id", c, ModeRevealed)
		assert.Equal(t, orig, rev.Text)
		assert.False(t, rev.Shielded)
	}
	assert.Equal(t, orig, c.Original)
}

func TestRenderWithoutRewrite(t *testing.T) {
	for _, status := range []store.CandidateStatus{store.CandidatePending, store.CandidateUnavailable} {
		c := store.Candidate{Original: "Jane Doe", Anonymized: "should not be shown", Status: status}

		v := Render("id", c, ModeAnonymized)
		assert.Empty(t, v.Text, status)
		assert.NotEmpty(t, v.Notice, status)
		assert.False(t, v.Shielded, status)

		assert.Equal(t, "Jane Doe", Render("id", c, ModeRevealed).Text)
	}
}

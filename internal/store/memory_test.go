package store

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgeai/internal/profile"
)

func TestMemoryCandidateIsCopied(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	c := Candidate{
		ID:       uuid.New(),
		Original: "Jane Doe led a team.",
		Status:   CandidatePending,
		Profile:  &profile.Profile{Title: "Team Lead", HardSkills: []string{"Scheduling"}},
	}
	require.NoError(t, st.SaveCandidate(ctx, c))
	c.Profile.HardSkills[0] = "changed"

	got, err := st.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Scheduling", got.Profile.HardSkills[0])

	got.Status = CandidateReady
	got.Anonymized = "[Candidate] led a team."
	require.NoError(t, st.SaveCandidate(ctx, got))

	again, err := st.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, CandidateReady, again.Status)
	assert.Equal(t, "Jane Doe led a team.", again.Original)
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	data, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "-- +goose Up"))
	assert.Contains(t, string(data), "-- +goose Down")
}

func TestRedisKeys(t *testing.T) {
	id := uuid.MustParse("6f1c2a4e-8a3b-4c5d-9e7f-0a1b2c3d4e5f")
	assert.Equal(t, "session:6f1c2a4e-8a3b-4c5d-9e7f-0a1b2c3d4e5f", sessionKey(id))
	assert.Equal(t, "candidate:6f1c2a4e-8a3b-4c5d-9e7f-0a1b2c3d4e5f", candidateKey(id))
}

package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	codes := make([]string, 0, len(c.Languages))
	for _, l := range c.Languages {
		codes = append(codes, l.Code)
	}
	assert.Equal(t, []string{"en", "es", "tl", "vi"}, codes)
	assert.Len(t, c.Jobs, 3)
	assert.Equal(t, "Operations Coordinator", c.Jobs[0].Title)
	assert.True(t, strings.HasPrefix(c.DemoProfile, "Jane Doe is a 42-year-old mother from Oakland"))
}

func TestSampleTranscript(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Contains(t, c.SampleTranscript("en"), "children in my neighborhood")
	// Languages without their own sample use the default language's.
	assert.Equal(t, c.SampleTranscript("es"), c.SampleTranscript("tl"))
	assert.Equal(t, c.SampleTranscript("es"), c.SampleTranscript("unknown"))
}

func TestLanguageLookup(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	l, ok := c.Language("vi")
	assert.True(t, ok)
	assert.Equal(t, "Tiếng Việt", l.Name)

	_, ok = c.Language("fr")
	assert.False(t, ok)
}

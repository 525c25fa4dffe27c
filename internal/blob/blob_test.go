package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	sid := uuid.MustParse("0b4f3c52-7d1e-4e0a-9a55-3f1d2c6b8e90")

	key := ObjectKey(sid, "my story.pdf")
	assert.True(t, strings.HasPrefix(key, "narratives/0b4f3c52-7d1e-4e0a-9a55-3f1d2c6b8e90/"))
	assert.True(t, strings.HasSuffix(key, "-my story.pdf"))

	assert.True(t, strings.HasSuffix(ObjectKey(sid, "../../etc/passwd"), "-passwd"))
	assert.True(t, strings.HasSuffix(ObjectKey(sid, `C:\Users\me\story.docx`), "-story.docx"))
	assert.True(t, strings.HasSuffix(ObjectKey(sid, ""), "-upload"))
	assert.NotEqual(t, ObjectKey(sid, "a.txt"), ObjectKey(sid, "a.txt"))
}

func TestNoop(t *testing.T) {
	key, err := Noop{}.Put(context.Background(), uuid.New(), "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{})
	assert.Error(t, err)
}

// Package blob archives raw narrative uploads.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Archive stores uploaded files. Put returns the object key.
type Archive interface {
	Put(ctx context.Context, sessionID uuid.UUID, filename, contentType string, data []byte) (string, error)
}

// Noop discards uploads.
type Noop struct{}

func (Noop) Put(context.Context, uuid.UUID, string, string, []byte) (string, error) {
	return "", nil
}

// ObjectKey builds narratives/<session-id>/<uuid>-<filename>.
func ObjectKey(sessionID uuid.UUID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return fmt.Sprintf("narratives/%s/%s-%s", sessionID, uuid.New(), name)
}

package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/platinummonkey/jobportal/pkg/storage/blob")

// ErrInvalidKey is returned for empty keys or keys escaping the store root
var ErrInvalidKey = errors.New("invalid object key")

// Object describes a stored blob
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Store persists uploaded files
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

// CleanKey normalizes key to a relative slash path
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/jobportal/pkg/observability"
)

const backendLocal = "local"

// LocalStore is a Store writing under a directory
type LocalStore struct {
	rootDir string
	baseURL string
	metrics *observability.Metrics
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(rootDir, baseURL string, metrics *observability.Metrics) (*LocalStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &LocalStore{rootDir: rootDir, baseURL: baseURL, metrics: metrics}, nil
}

// Root returns the directory files are written to
func (s *LocalStore) Root() string {
	return s.rootDir
}

func (s *LocalStore) path(key string) (string, string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(s.rootDir, filepath.FromSlash(key)), nil
}

// Put writes data to key
func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) (obj *Object, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation("put_object", backendLocal, start, err) }()

	_, span := tracer.Start(ctx, "Local.PutObject", trace.WithAttributes(
		attribute.String("blob.key", key),
		attribute.Int("content.size", len(data)),
	))
	defer span.End()

	key, full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to finalize file: %w", err)
	}

	url := joinURL(s.baseURL, key)
	return &Object{
		Key:         key,
		URL:         url,
		PreviewURL:  url,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Delete removes key. Missing files are not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation("delete_object", backendLocal, start, err) }()

	_, full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// HealthCheck verifies the root directory exists
func (s *LocalStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("blob directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob root %s is not a directory", s.rootDir)
	}
	return nil
}

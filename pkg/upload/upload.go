package upload

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage/blob"
)

// Content type groups
var (
	ImageTypes    = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}
	DocumentTypes = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
)

// Config bounds uploads
type Config struct {
	// MaxFileSize is the largest accepted file in bytes
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxFiles caps files per request
	MaxFiles int `yaml:"max_files"`
	// MaxMemory is passed to ParseMultipartForm
	MaxMemory int64 `yaml:"max_memory"`
	// Workers caps concurrent blob writes
	Workers int `yaml:"workers"`
	// AllowedTypes lists accepted content types; empty accepts images and documents
	AllowedTypes []string `yaml:"allowed_types"`
}

// DefaultConfig returns default upload limits
func DefaultConfig() Config {
	return Config{
		MaxFileSize: 5 << 20,
		MaxFiles:    10,
		MaxMemory:   32 << 20,
		Workers:     4,
	}
}

// Result is one stored file
type Result struct {
	Field       string `json:"field"`
	Filename    string `json:"filename"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Uploader writes multipart files to a blob store
type Uploader struct {
	store   blob.Store
	cfg     Config
	allowed []string
	logger  *observability.Logger
	metrics *observability.Metrics
	newID   func() string
}

// NewUploader creates an uploader
func NewUploader(store blob.Store, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Uploader {
	def := DefaultConfig()
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = def.MaxFiles
	}
	if cfg.MaxMemory <= 0 {
		cfg.MaxMemory = def.MaxMemory
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	allowed := cfg.AllowedTypes
	if len(allowed) == 0 {
		allowed = append(append([]string(nil), ImageTypes...), DocumentTypes...)
	}
	return &Uploader{
		store:   store,
		cfg:     cfg,
		allowed: allowed,
		logger:  logger.WithField("component", "upload"),
		metrics: metrics,
		newID:   uuid.NewString,
	}
}

// MaxRequestSize is the request body limit implied by the config
func (u *Uploader) MaxRequestSize() int64 {
	return u.cfg.MaxFileSize*int64(u.cfg.MaxFiles) + 1<<20
}

// ParseForm parses a multipart request body
func (u *Uploader) ParseForm(r *http.Request) (*multipart.Form, error) {
	if err := r.ParseMultipartForm(u.cfg.MaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.BadRequest("request body too large")
		}
		return nil, apperr.Wrap(apperr.KindBadRequest, "invalid multipart form", err)
	}
	return r.MultipartForm, nil
}

type pending struct {
	field  string
	header *multipart.FileHeader
}

// SaveForm stores the files of the named fields, or of every file field when
// none are named, under prefix. Results keep field then file order.
func (u *Uploader) SaveForm(ctx context.Context, prefix string, form *multipart.Form, fields ...string) ([]Result, error) {
	if form == nil {
		return nil, nil
	}
	if len(fields) == 0 {
		for field := range form.File {
			fields = append(fields, field)
		}
		sort.Strings(fields)
	}

	var files []pending
	for _, field := range fields {
		for _, fh := range form.File[field] {
			files = append(files, pending{field: field, header: fh})
		}
	}
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > u.cfg.MaxFiles {
		return nil, apperr.Newf(apperr.KindBadRequest, "too many files: at most %d allowed", u.cfg.MaxFiles)
	}

	results := make([]Result, len(files))
	stored := make([]bool, len(files))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(u.cfg.Workers)
	for i, f := range files {
		eg.Go(func() error {
			res, err := u.save(egCtx, prefix, f)
			u.metrics.RecordUpload(res.Size, err)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = res
			stored[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		u.rollback(context.WithoutCancel(ctx), results, stored)
		return nil, err
	}
	return results, nil
}

func (u *Uploader) save(ctx context.Context, prefix string, f pending) (Result, error) {
	name := f.header.Filename
	if f.header.Size > u.cfg.MaxFileSize {
		return Result{}, apperr.Newf(apperr.KindBadRequest, "file %s exceeds %d bytes", name, u.cfg.MaxFileSize)
	}

	file, err := f.header.Open()
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindBadRequest, "unreadable file "+name, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, u.cfg.MaxFileSize+1))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindBadRequest, "unreadable file "+name, err)
	}
	if int64(len(data)) > u.cfg.MaxFileSize {
		return Result{}, apperr.Newf(apperr.KindBadRequest, "file %s exceeds %d bytes", name, u.cfg.MaxFileSize)
	}
	if len(data) == 0 {
		return Result{}, apperr.Newf(apperr.KindBadRequest, "file %s is empty", name)
	}

	mtype := mimetype.Detect(data)
	if !u.accepts(mtype) {
		return Result{}, apperr.Newf(apperr.KindBadRequest, "file %s has unsupported type %s", name, mtype.String())
	}

	key := path.Join(strings.Trim(prefix, "/"), u.newID()+mtype.Extension())
	obj, err := u.store.Put(ctx, key, mtype.String(), data)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindActionFailed, "failed to store file", err)
	}
	return Result{
		Field:       f.field,
		Filename:    name,
		Key:         obj.Key,
		URL:         obj.URL,
		PreviewURL:  obj.PreviewURL,
		ContentType: obj.ContentType,
		Size:        obj.Size,
	}, nil
}

func (u *Uploader) accepts(m *mimetype.MIME) bool {
	for _, allowed := range u.allowed {
		if m.Is(allowed) {
			return true
		}
	}
	return false
}

func (u *Uploader) rollback(ctx context.Context, results []Result, stored []bool) {
	for i, ok := range stored {
		if !ok {
			continue
		}
		if err := u.store.Delete(ctx, results[i].Key); err != nil {
			u.logger.WithError(err).WithField("key", results[i].Key).Warn("failed to remove file from aborted upload")
		}
	}
}

// Remove deletes stored files, for callers whose follow-up write failed.
// Failures are logged, not returned.
func (u *Uploader) Remove(ctx context.Context, results []Result) {
	stored := make([]bool, len(results))
	for i := range stored {
		stored[i] = true
	}
	u.rollback(ctx, results, stored)
}

// First returns the first result for field
func First(results []Result, field string) (*Result, bool) {
	for i := range results {
		if results[i].Field == field {
			return &results[i], true
		}
	}
	return nil, false
}

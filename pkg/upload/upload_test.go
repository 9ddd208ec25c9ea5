package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage/blob"
)

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failKey string
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key, contentType string, data []byte) (*blob.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failKey != "" && bytes.Contains([]byte(key), []byte(m.failKey)) {
		return nil, errors.New("bucket unavailable")
	}
	m.objects[key] = data
	return &blob.Object{
		Key:         key,
		URL:         "https://cdn.test/" + key,
		PreviewURL:  "https://cdn.test/" + key + "?sig=1",
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) HealthCheck(context.Context) error { return nil }

type part struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "hello"))
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func newTestUploader(store blob.Store, cfg Config) (*Uploader, *observability.Metrics) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	u := NewUploader(store, cfg, observability.NewLogger(observability.ErrorLevel, io.Discard), metrics)
	var n atomic.Int64
	u.newID = func() string { return "id" + strconv.FormatInt(n.Add(1), 10) }
	return u, metrics
}

func TestSaveForm(t *testing.T) {
	store := newMemStore()
	u, metrics := newTestUploader(store, DefaultConfig())

	form, err := u.ParseForm(multipartRequest(t,
		part{"resume", "cv.pdf", pdfData},
		part{"avatar", "me.png", pngData},
	))
	require.NoError(t, err)

	results, err := u.SaveForm(context.Background(), "/employees/", form)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// fields are visited in sorted order
	assert.Equal(t, "avatar", results[0].Field)
	assert.Equal(t, "image/png", results[0].ContentType)
	assert.Regexp(t, `^employees/id\d\.png$`, results[0].Key)
	assert.Equal(t, "resume", results[1].Field)
	assert.Equal(t, "cv.pdf", results[1].Filename)
	assert.Equal(t, "application/pdf", results[1].ContentType)
	assert.Contains(t, results[1].PreviewURL, "?sig=1")

	got, ok := First(results, "resume")
	require.True(t, ok)
	assert.Equal(t, results[1].URL, got.URL)
	_, ok = First(results, "logo")
	assert.False(t, ok)

	assert.Len(t, store.objects, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("success")))
}

func TestSaveForm_NamedFields(t *testing.T) {
	store := newMemStore()
	u, _ := newTestUploader(store, DefaultConfig())
	form, err := u.ParseForm(multipartRequest(t,
		part{"image", "a.png", pngData},
		part{"other", "b.png", pngData},
	))
	require.NoError(t, err)

	results, err := u.SaveForm(context.Background(), "categories", form, "image")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "image", results[0].Field)

	results, err = u.SaveForm(context.Background(), "categories", form, "missing")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = u.SaveForm(context.Background(), "categories", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSaveForm_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		parts []part
		msg   string
	}{
		{
			name:  "unsupported type",
			parts: []part{{"file", "x.html", []byte("<html><body>hi</body></html>")}},
			msg:   "unsupported type",
		},
		{
			name:  "empty file",
			parts: []part{{"file", "empty.png", nil}},
			msg:   "is empty",
		},
		{
			name:  "too large",
			cfg:   Config{MaxFileSize: 16},
			parts: []part{{"file", "big.png", pngData}},
			msg:   "exceeds",
		},
		{
			name:  "too many files",
			cfg:   Config{MaxFiles: 1},
			parts: []part{{"a", "a.png", pngData}, {"b", "b.png", pngData}},
			msg:   "too many files",
		},
		{
			name:  "images only",
			cfg:   Config{AllowedTypes: ImageTypes},
			parts: []part{{"file", "cv.pdf", pdfData}},
			msg:   "unsupported type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _ := newTestUploader(newMemStore(), tt.cfg)
			form, err := u.ParseForm(multipartRequest(t, tt.parts...))
			require.NoError(t, err)

			_, err = u.SaveForm(context.Background(), "uploads", form)
			require.Error(t, err)
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSaveForm_StoreFailureRollsBack(t *testing.T) {
	store := newMemStore()
	u, metrics := newTestUploader(store, Config{Workers: 1})
	store.failKey = "id2"

	form, err := u.ParseForm(multipartRequest(t,
		part{"a", "a.png", pngData},
		part{"b", "b.png", pngData},
	))
	require.NoError(t, err)

	_, err = u.SaveForm(context.Background(), "uploads", form)
	require.Error(t, err)
	assert.Equal(t, apperr.KindActionFailed, apperr.KindOf(err))
	assert.Empty(t, store.objects)
	assert.Equal(t, []string{"uploads/id1.png"}, store.deleted)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("failure")))
}

func TestParseForm_Invalid(t *testing.T) {
	u, _ := newTestUploader(newMemStore(), DefaultConfig())
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("not multipart"))
	r.Header.Set("Content-Type", "application/json")
	_, err := u.ParseForm(r)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	assert.Greater(t, u.MaxRequestSize(), DefaultConfig().MaxFileSize)
}

func TestRemove(t *testing.T) {
	store := newMemStore()
	u, _ := newTestUploader(store, DefaultConfig())
	form, err := u.ParseForm(multipartRequest(t, part{"logo", "l.png", pngData}))
	require.NoError(t, err)
	results, err := u.SaveForm(context.Background(), "employers", form, "logo")
	require.NoError(t, err)
	require.Len(t, results, 1)

	u.Remove(context.Background(), results)
	assert.Empty(t, store.objects)
	assert.Equal(t, []string{results[0].Key}, store.deleted)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranavgnn/thirdeye/internal/config"
	"github.com/pranavgnn/thirdeye/internal/model"
)

// stubProcessor returns a fixed result and records calls.
type stubProcessor struct {
	result *model.ProcessResult
	err    error
	calls  int
}

func (s *stubProcessor) Process(ctx context.Context, imageRef string, reporterIdentity *string) (*model.ProcessResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubStore serves fixed report listings.
type stubStore struct {
	reports []model.StoredReport
	limit   int
}

func (s *stubStore) InsertReport(ctx context.Context, columns []string, values []any) (int64, error) {
	return 0, nil
}

func (s *stubStore) ListReports(ctx context.Context, limit int) ([]model.StoredReport, error) {
	s.limit = limit
	return s.reports, nil
}

func (s *stubStore) Migrate(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                      { return nil }

func testServeConfig() *config.Config {
	return &config.Config{
		WhatsApp: config.WhatsAppConfig{VerifyToken: "verify-secret"},
	}
}

func okResult() *model.ProcessResult {
	return &model.ProcessResult{
		Report:    &model.Report{ImageReference: "ref"},
		Storage:   model.StorageOutcome{Stored: true, ReportID: 1},
		Narration: "done",
	}
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(context.Background(), testServeConfig(), &stubProcessor{}, &stubStore{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRouter_WebhookVerification(t *testing.T) {
	router := newRouter(context.Background(), testServeConfig(), &stubProcessor{}, &stubStore{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=c-99", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c-99", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=c-99", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_WebhookPostAcceptsDelivery(t *testing.T) {
	router := newRouter(context.Background(), testServeConfig(), &stubProcessor{result: okResult()}, &stubStore{}, nil, nil)

	body := `{"entry":[{"changes":[{"value":{"messages":[]}}]}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_WebhookPostRejectsBadPayload(t *testing.T) {
	router := newRouter(context.Background(), testServeConfig(), &stubProcessor{}, &stubStore{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AnalyzeMultipart(t *testing.T) {
	proc := &stubProcessor{result: okResult()}
	router := newRouter(context.Background(), testServeConfig(), proc, &stubStore{}, nil, nil)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("image", "scene.jpg")
	require.NoError(t, err)
	_, err = io.Copy(part, bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	require.NoError(t, err)
	require.NoError(t, form.WriteField("reporter", "919876543210"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, proc.calls)

	var result model.ProcessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Storage.Stored)
	assert.Equal(t, "done", result.Narration)
}

func TestRouter_AnalyzeRequiresImage(t *testing.T) {
	router := newRouter(context.Background(), testServeConfig(), &stubProcessor{}, &stubStore{}, nil, nil)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("reporter", "x"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ListReports(t *testing.T) {
	st := &stubStore{reports: []model.StoredReport{{ID: 1, Title: "Helmetless riding", ReportedAt: time.Now()}}}
	router := newRouter(context.Background(), testServeConfig(), &stubProcessor{}, st, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, st.limit)
	assert.Contains(t, rec.Body.String(), "Helmetless riding")
}

func TestRouter_ListReportsRejectsBadLimit(t *testing.T) {
	router := newRouter(context.Background(), testServeConfig(), &stubProcessor{}, &stubStore{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveImageRef_URLPassthrough(t *testing.T) {
	ref, err := resolveImageRef("https://example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.jpg", ref)
}

func TestMediaTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", mediaTypeFor("a.jpg", nil))
	assert.Equal(t, "image/jpeg", mediaTypeFor("a.JPEG", nil))
	assert.Equal(t, "image/png", mediaTypeFor("a.png", nil))
	assert.Equal(t, "image/webp", mediaTypeFor("a.webp", nil))
	// unknown extension falls back to sniffing
	assert.Equal(t, "image/jpeg", mediaTypeFor("a.bin", []byte{0xFF, 0xD8, 0xFF, 0xE0}))
}

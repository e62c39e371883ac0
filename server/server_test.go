package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/scanpdf/convert"
	"github.com/wudi/scanpdf/ocr"
	"github.com/wudi/scanpdf/store"
)

type testEnv struct {
	handler http.Handler
	store   *store.Store
	langs   *[]string
}

func newTestEnv(t *testing.T, mutate func(*Config)) testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var langs []string
	engine := ocr.EngineFunc(func(ctx context.Context, in ocr.Input) (ocr.Result, error) {
		langs = in.Languages
		return ocr.Result{InputID: in.ID, PlainText: "recognized"}, nil
	})
	conv := convert.New(engine, convert.WithRecorder(st), convert.WithOutputDir(dir))

	cfg := Config{
		StaticDir:      filepath.Join(dir, "static"),
		TemplatesDir:   filepath.Join(dir, "templates"),
		MaxUploadBytes: 1 << 20,
		Languages:      []string{"ukr", "eng"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg, conv, st, nil)
	require.NoError(t, err)
	return testEnv{handler: srv.Handler(), store: st, langs: &langs}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func pngUpload(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(3, 3, color.Black)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(fw, img))
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestIndexUsesEmbeddedDefault(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `action="/upload/"`)
	assert.Contains(t, rec.Body.String(), `value="ukr+eng"`)
	assert.NotContains(t, rec.Body.String(), "/static/style.css")
}

func TestIndexFromTemplatesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>custom {{.Engine}}</p>"), 0o600))
	env := newTestEnv(t, func(c *Config) { c.TemplatesDir = dir })

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "<p>custom func</p>", rec.Body.String())
}

func TestMalformedTemplateFailsStartup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("{{.Broken"), 0o600))
	_, err := New(Config{TemplatesDir: dir}, convert.New(nil), nil, nil)
	assert.Error(t, err)
}

func TestStaticMountedOnlyWhenPresent(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0o600))
	env = newTestEnv(t, func(c *Config) { c.StaticDir = dir })
	rec = env.do(httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","ocr_engine":"func"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ctype := pngUpload(t, map[string]string{"lang": "eng"})
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ocr_result.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, []string{"eng"}, *env.langs)

	id := rec.Header().Get("X-Conversion-Id")
	require.NotEmpty(t, id)
	c, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, c.Status)
}

func TestUploadRejectsBadPageSegMode(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ctype := pngUpload(t, map[string]string{"psm": "42"})
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadDefaultLanguages(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ctype := pngUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ukr", "eng"}, *env.langs)
}

func TestUploadMissingFile(t *testing.T) {
	env := newTestEnv(t, nil)
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("lang", "eng"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestUploadUnsupportedImage(t *testing.T) {
	env := newTestEnv(t, nil)
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("plain text, not pixels"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxUploadBytes = 2048 })
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "big.png")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte{0x42}, 8192))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestFormConversionTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxUploadBytes = 2048 })
	for _, path := range []string{"/text/", "/markdown/", "/html/"} {
		field := strings.Trim(path, "/")
		rec := env.do(formRequest(path, url.Values{field: {strings.Repeat("a", 8192)}}))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)
		assert.Equal(t, "TOO_LARGE", decodeError(t, rec).Code, path)
	}
}

func TestTextConversion(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(formRequest("/text/", url.Values{"text": {"Привіт\nsecond line"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="text_to_pdf.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestTextMissingField(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, values := range []url.Values{{}, {"text": {""}}, {"other": {"x"}}} {
		rec := env.do(formRequest("/text/", values))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}
}

func TestMarkdownAndHTML(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(formRequest("/markdown/", url.Values{"markdown": {"# Title\n\n- item"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="markdown.pdf"`, rec.Header().Get("Content-Disposition"))

	rec = env.do(formRequest("/html/", url.Values{"html": {"<p>hello</p>"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="html.pdf"`, rec.Header().Get("Content-Disposition"))
}

func TestConversionsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/conversions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(formRequest("/text/", url.Values{"text": {"stored"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Conversion-Id")
	pdf := rec.Body.Bytes()

	rec = env.do(httptest.NewRequest(http.MethodGet, "/conversions?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Conversion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "text", list[0].Kind)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/conversions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "output_path")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/conversions/"+id+"/pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pdf, rec.Body.Bytes())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/conversions/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/conversions/unknown/pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/conversions?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

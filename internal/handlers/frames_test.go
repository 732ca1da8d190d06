package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagepacks/internal/config"
	"imagepacks/internal/database"
	"imagepacks/internal/repository"
	"imagepacks/internal/service"
	"imagepacks/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	engine *gin.Engine
	blobs  *storage.MemoryStore
	db     *sql.DB
	cfg    *config.AppConfig
	logs   *bytes.Buffer
}

func newTestEnv(t *testing.T, blobs service.BlobStore, mutate ...func(*config.AppConfig)) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, config.SQLiteConfig{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	inbox := repository.NewSQLiteInboxRepository(db)
	require.NoError(t, inbox.EnsureSchema(ctx))

	mem := storage.NewMemoryStore()
	if blobs == nil {
		blobs = mem
	}

	cfg := &config.AppConfig{
		Environment: "test",
		Upload:      config.UploadConfig{MaxImages: 15},
	}
	for _, m := range mutate {
		m(cfg)
	}

	logs := &bytes.Buffer{}
	log := zerolog.New(logs)
	packs := service.NewPackService(inbox, blobs, log)
	engine := gin.New()
	NewHandlerSet(log, cfg, packs, inbox, nil).Register(engine)

	return &testEnv{engine: engine, blobs: mem, db: db, cfg: cfg, logs: logs}
}

type testFile struct {
	name        string
	contentType string
	content     []byte
}

func jpegFiles(n int) []testFile {
	files := make([]testFile, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, testFile{
			name:        fmt.Sprintf("im%d.jpg", i),
			contentType: "image/jpg",
			content:     []byte(fmt.Sprintf("im%d_content", i)),
		})
	}
	return files
}

func (e *testEnv) upload(t *testing.T, files []testFile) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/frames/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) assertNothingStored(t *testing.T) {
	t.Helper()
	buckets, err := e.blobs.ListBuckets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, buckets)

	var rows int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM inbox").Scan(&rows))
	assert.Zero(t, rows)
}

func TestFramesLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	files := jpegFiles(3)

	rec := env.upload(t, files)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.RequestCode)
	assert.Equal(t, []string{"im0.jpg", "im1.jpg", "im2.jpg"}, saved.SavedImages)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/frames/"+saved.RequestCode, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var images []imageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &images))
	require.Len(t, images, len(files))
	for i, img := range images {
		content, err := base64.StdEncoding.DecodeString(img.Base64EncodedContent)
		require.NoError(t, err)
		assert.Equal(t, files[i].content, content)
		assert.NotEmpty(t, img.Name)
		assert.NotEmpty(t, img.SavedOn)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/frames/"+saved.RequestCode, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var msg messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, fmt.Sprintf("Images from %s request were successfully deleted.", saved.RequestCode), msg.Message)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/frames/"+saved.RequestCode, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveFramesAcceptsBothJPEGTypes(t *testing.T) {
	env := newTestEnv(t, nil)
	files := jpegFiles(2)
	files[1].contentType = "image/jpeg"

	rec := env.upload(t, files)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSaveFramesAcceptsFifteen(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, jpegFiles(15))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Len(t, saved.SavedImages, 15)
}

func TestSaveFramesRejectsTooMany(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, jpegFiles(16))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many images uploaded.")
	env.assertNothingStored(t)
}

func TestSaveFramesRejectsNonJPEG(t *testing.T) {
	env := newTestEnv(t, nil)
	files := jpegFiles(3)
	files[2].contentType = "image/png"

	rec := env.upload(t, files)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Jpeg image format is expected.")
	env.assertNothingStored(t)
}

func TestSaveFramesRejectsEmpty(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/frames/", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec = env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env.assertNothingStored(t)
}

func TestSaveFramesVerifiesSignature(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.AppConfig) {
		cfg.Upload.VerifySignature = true
	})

	rec := env.upload(t, jpegFiles(1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env.assertNothingStored(t)

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	rec = env.upload(t, []testFile{{name: "real.jpg", contentType: "image/jpeg", content: jpeg}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/frames/"+saved.RequestCode, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var images []imageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &images))
	require.Len(t, images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(jpeg), images[0].Base64EncodedContent, "content is rewound before upload")
}

func TestSignatureMismatchLogsDetectedType(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.AppConfig) {
		cfg.Upload.VerifySignature = true
	})
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x00}

	rec := env.upload(t, []testFile{{name: "renamed.jpg", contentType: "image/jpeg", content: png}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), errUnsupportedType.Error())
	env.assertNothingStored(t)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(env.logs.Bytes(), &entry))
	assert.Equal(t, "png", entry["detected"])
	assert.Equal(t, "renamed.jpg", entry["file"])
	assert.Equal(t, "image/jpeg", entry["declared"])
}

func TestUnknownRequestCode(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/frames/NOT_PROPER_REQUEST_CODE", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect request code: NOT_PROPER_REQUEST_CODE")

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/frames/NOT_PROPER_REQUEST_CODE", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "There is no images with request code: NOT_PROPER_REQUEST_CODE")
}

type brokenStore struct {
	*storage.MemoryStore
}

func (b brokenStore) PutObject(context.Context, string, string, io.Reader, int64, string) error {
	return errors.New("connection refused")
}

func TestSaveFramesStoreFailure(t *testing.T) {
	env := newTestEnv(t, brokenStore{MemoryStore: storage.NewMemoryStore()})

	rec := env.upload(t, jpegFiles(2))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

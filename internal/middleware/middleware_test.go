package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(log zerolog.Logger, origins []string) *gin.Engine {
	engine := gin.New()
	engine.Use(RequestID(), Logger(log), Recovery(log), CORS(origins))
	engine.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })
	return engine
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	engine := newEngine(zerolog.Nop(), nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	generated := rec.Header().Get(requestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	engine := newEngine(zerolog.Nop(), nil)

	for _, id := range []string{
		"line\nbreak",
		"with space",
		`{"json":1}`,
		strings.Repeat("a", maxRequestIDLen+1),
	} {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(requestIDHeader, id)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		assert.NotEqual(t, id, got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "replaced by a generated id")
	}
}

func TestRecoveryLogsPanic(t *testing.T) {
	var buf bytes.Buffer
	engine := newEngine(zerolog.New(&buf), nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"request_id":"`+rec.Header().Get(requestIDHeader)+`"`)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), `"stack":`)
	assert.Contains(t, buf.String(), `"status":500`)
}

func TestCORS(t *testing.T) {
	engine := newEngine(zerolog.Nop(), []string{"https://allowed.example"})

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

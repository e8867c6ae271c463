package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	httpserver "github.com/fairyhunter13/image-checker/internal/adapter/httpserver"
	"github.com/fairyhunter13/image-checker/internal/config"
	"github.com/fairyhunter13/image-checker/internal/domain"
	"github.com/fairyhunter13/image-checker/internal/pipeline"
)

type stubPipeline struct{}

func (stubPipeline) Submit(domain.ProcessingRequest) error      { return nil }
func (stubPipeline) Status(string) domain.ProcessingStatus      { return domain.StatusNotFound }
func (stubPipeline) Result(string) (*domain.ValidationResults, domain.ProcessingStatus) {
	return nil, domain.StatusNotFound
}
func (stubPipeline) Stats() pipeline.Stats { return pipeline.Stats{} }

func testRouter() http.Handler {
	cfg := config.Config{CORSAllowOrigins: "*", RateLimitPerMin: 120}
	return BuildRouter(cfg, httpserver.NewServer(stubPipeline{}, "test"))
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, ParseOrigins(""))
	assert.Equal(t, []string{"*"}, ParseOrigins("*"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, ParseOrigins("https://a.example, https://b.example"))
	assert.Equal(t, []string{"*"}, ParseOrigins(" , "))
}

func TestRouter_HealthRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRouter_MetricsRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UnknownRouteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint not found")
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRouter_SecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouter_StatusUnknownIs404(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

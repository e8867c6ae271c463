package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/image-checker/internal/config"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(config.Config{AppEnv: "dev", OTELServiceName: "image-checker"})
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), -4)) // debug in dev

	logger = SetupLogger(config.Config{AppEnv: "prod", OTELServiceName: "image-checker"})
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), -4))
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	h := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestJobCounters(t *testing.T) {
	// Counters must move without panicking; exact values are shared state.
	SubmitJob()
	StartProcessingJob()
	CompleteJob()
	SubmitJob()
	StartProcessingJob()
	FailJob()
	RejectSubmission("queue_full")
}

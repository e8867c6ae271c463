package vlm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/image-checker/internal/domain"
)

// Minimal valid file signatures for format sniffing.
var (
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00, 0x01}
	pngBytes  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
)

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newTestClient(url string) *Client {
	c := New(url, "llava:7b", 5*time.Second)
	c.initialDelay = time.Millisecond
	c.maxDelay = 5 * time.Millisecond
	return c
}

func verdictServer(t *testing.T, verdict string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava:7b", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		require.Len(t, req.Messages[0].Images, 1)
		_, err := base64.StdEncoding.DecodeString(req.Messages[0].Images[0])
		assert.NoError(t, err)

		resp := map[string]any{"message": map[string]any{"content": verdict}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestCheckContent_Accepted(t *testing.T) {
	srv := verdictServer(t, "ACCEPTED")
	defer srv.Close()

	path := writeImage(t, "photo.jpg", jpegBytes)
	ok, resp, err := newTestClient(srv.URL).CheckContent(context.Background(), path, "a street scene")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ACCEPTED", resp)
}

func TestCheckContent_AcceptedWithTrailingText(t *testing.T) {
	srv := verdictServer(t, "  accepted, the image matches.  ")
	defer srv.Close()

	path := writeImage(t, "photo.png", pngBytes)
	ok, _, err := newTestClient(srv.URL).CheckContent(context.Background(), path, "anything")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckContent_Rejected(t *testing.T) {
	srv := verdictServer(t, "REJECTED: no dog visible")
	defer srv.Close()

	path := writeImage(t, "photo.jpg", jpegBytes)
	ok, resp, err := newTestClient(srv.URL).CheckContent(context.Background(), path, "a dog")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "REJECTED: no dog visible", resp)
}

func TestCheckContent_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		resp := map[string]any{"message": map[string]any{"content": "ACCEPTED"}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	path := writeImage(t, "photo.jpg", jpegBytes)
	ok, _, err := newTestClient(srv.URL).CheckContent(context.Background(), path, "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), calls.Load())
}

func TestCheckContent_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := writeImage(t, "photo.jpg", jpegBytes)
	_, _, err := newTestClient(srv.URL).CheckContent(context.Background(), path, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after retries")
	assert.Equal(t, int64(3), calls.Load())
}

func TestCheckContent_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeImage(t, "photo.jpg", jpegBytes)
	_, _, err := newTestClient(srv.URL).CheckContent(ctx, path, "x")
	require.Error(t, err)
}

func TestCheckContent_UnsupportedExtension(t *testing.T) {
	path := writeImage(t, "doc.pdf", []byte("%PDF-1.4 not an image"))
	_, _, err := newTestClient("http://127.0.0.1:0").CheckContent(context.Background(), path, "x")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "unsupported image extension")
}

func TestCheckContent_MagicByteMismatch(t *testing.T) {
	// PNG signature behind a .jpg extension must be rejected before any
	// network call.
	path := writeImage(t, "fake.jpg", pngBytes)
	_, _, err := newTestClient("http://127.0.0.1:0").CheckContent(context.Background(), path, "x")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "invalid jpg file format")
}

func TestCheckContent_TooSmall(t *testing.T) {
	path := writeImage(t, "tiny.jpg", []byte{0xFF, 0xD8})
	_, _, err := newTestClient("http://127.0.0.1:0").CheckContent(context.Background(), path, "x")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "too small")
}

func TestCheckContent_MissingFile(t *testing.T) {
	_, _, err := newTestClient("http://127.0.0.1:0").CheckContent(context.Background(), "/no/such/file.jpg", "x")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestValidateImageFormat_AllSupported(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00")
	bmp := []byte{0x42, 0x4D, 0x46, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	webp := append([]byte("RIFF\x24\x00\x00\x00WEBP"), []byte("VP8 ")...)

	assert.NoError(t, validateImageFormat("a.gif", gif))
	assert.NoError(t, validateImageFormat("a.bmp", bmp))
	assert.NoError(t, validateImageFormat("a.webp", webp))
	assert.NoError(t, validateImageFormat("a.JPG", jpegBytes))
}

// Package vlm implements the content check by calling an external
// vision-language model over an Ollama-compatible chat API.
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/image-checker/internal/adapter/observability"
	"github.com/fairyhunter13/image-checker/internal/domain"
)

// verdictPrefix marks an accepting model response; anything else, including
// "REJECTED: ...", is a rejection.
const verdictPrefix = "ACCEPTED"

// expectedMIME maps the supported extensions to the MIME type the file
// content must sniff as. Extension and magic bytes must agree.
var expectedMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// Client calls the VLM chat endpoint with bounded retries.
type Client struct {
	hc     *http.Client
	apiURL string
	model  string

	maxAttempts  uint64
	initialDelay time.Duration
	maxDelay     time.Duration
}

// New constructs a VLM client. requestTimeout bounds each individual HTTP
// attempt and must be strictly less than the pipeline's processing timeout.
func New(apiURL, model string, requestTimeout time.Duration) *Client {
	return &Client{
		hc: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		apiURL:       apiURL,
		model:        model,
		maxAttempts:  3,
		initialDelay: time.Second,
		maxDelay:     30 * time.Second,
	}
}

// CheckContent reads and encodes the image, asks the model whether it
// matches the description, and parses the textual verdict. The returned
// string is the raw model response.
func (c *Client) CheckContent(ctx context.Context, imagePath, description string) (bool, string, error) {
	payload, err := c.readAndEncodeImage(imagePath)
	if err != nil {
		return false, "", err
	}

	response, err := c.callWithRetry(ctx, buildPrompt(description), payload)
	if err != nil {
		return false, "", err
	}

	accepted := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(response)), verdictPrefix)
	slog.Debug("content verdict parsed",
		slog.Bool("accepted", accepted),
		slog.Int("response_chars", len(response)))
	return accepted, response, nil
}

// readAndEncodeImage loads the file, verifies it is a supported image by
// extension and by content sniffing, and returns raw base64 (no data-URI
// prefix; the Ollama API expects bare base64).
func (c *Client) readAndEncodeImage(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("%w: read image: %v", domain.ErrInvalidArgument, err)
	}
	if err := validateImageFormat(imagePath, data); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// validateImageFormat checks the extension allowlist first, then verifies
// the magic bytes agree with the extension. Mismatches never reach the
// network.
func validateImageFormat(imagePath string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(imagePath))
	want, ok := expectedMIME[ext]
	if !ok {
		return fmt.Errorf("%w: unsupported image extension: %s", domain.ErrInvalidArgument, strings.TrimPrefix(ext, "."))
	}
	if len(data) < 8 {
		return fmt.Errorf("%w: image file too small", domain.ErrInvalidArgument)
	}
	if detected := mimetype.Detect(data); !detected.Is(want) {
		return fmt.Errorf("%w: invalid %s file format (detected %s)", domain.ErrInvalidArgument, strings.TrimPrefix(ext, "."), detected.String())
	}
	return nil
}

func buildPrompt(description string) string {
	return fmt.Sprintf("You are an image validation assistant. Please analyze this image and determine if it matches the following description: %q\n\n"+
		"Respond with either:\n"+
		"- \"ACCEPTED\" if the image clearly matches the description\n"+
		"- \"REJECTED: [reason]\" if the image does not match, followed by a brief explanation\n\n"+
		"Be precise and focus on the key elements mentioned in the description. If the description mentions specific objects, locations, or characteristics, verify their presence in the image.", description)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// callWithRetry posts the chat request with up to maxAttempts tries.
// Transport errors and non-2xx statuses are retried with exponential
// delays (initialDelay doubling, capped at maxDelay); cancellation of ctx
// is honored between and during attempts.
func (c *Client) callWithRetry(ctx context.Context, prompt, imageB64 string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: prompt,
			Images:  []string{imageB64},
		}},
		Stream:  false,
		Options: chatOptions{Temperature: 0.1, NumPredict: 500},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal chat request: %v", domain.ErrInternal, err)
	}

	var content string
	op := func() error {
		start := time.Now()
		// Rebuild the request each attempt to avoid reusing a consumed body.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.hc.Do(req)
		observability.VLMRequestsTotal.Inc()
		observability.VLMRequestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			slog.Warn("vlm request failed", slog.String("url", c.apiURL), slog.Any("error", err))
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet := string(respBody)
			if len(snippet) > 512 {
				snippet = snippet[:512]
			}
			slog.Warn("vlm non-2xx response",
				slog.Int("status", resp.StatusCode),
				slog.String("model", c.model),
				slog.String("body", snippet))
			return fmt.Errorf("vlm status %d: %s", resp.StatusCode, snippet)
		}

		var out chatResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			slog.Error("vlm decode error", slog.String("model", c.model), slog.Any("error", err))
			return err
		}
		content = strings.TrimSpace(out.Message.Content)
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.initialDelay
	expo.Multiplier = 2
	expo.MaxInterval = c.maxDelay
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	bo := backoff.WithMaxRetries(backoff.WithContext(expo, ctx), c.maxAttempts-1)
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("vlm call failed after retries: %w", err)
	}
	return content, nil
}

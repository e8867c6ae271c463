package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fairyhunter13/image-checker/internal/domain"
	"github.com/fairyhunter13/image-checker/internal/pipeline"
)

// Pipeline is the queue surface the handlers need. *pipeline.Queue
// satisfies it; tests substitute fakes.
type Pipeline interface {
	Submit(req domain.ProcessingRequest) error
	Status(processingID string) domain.ProcessingStatus
	Result(processingID string) (*domain.ValidationResults, domain.ProcessingStatus)
	Stats() pipeline.Stats
}

// Server bundles the handler dependencies.
type Server struct {
	Pipeline Pipeline
	Version  string
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(p Pipeline, version string) *Server {
	return &Server{Pipeline: p, Version: version}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// ValidateHandler accepts a validation job: decode, normalize constraints,
// assign the processing id, and enqueue. The job id only exists after the
// submission is accepted.
func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Cap body size to prevent abuse
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: content description is required", domain.ErrInvalidArgument), verrs)
			return
		}

		imageRef := req.imageRef()
		if imageRef == "" {
			LoggerFrom(r).Warn("validation request missing image path")
			writeError(w, r, fmt.Errorf("%w: image path is required", domain.ErrInvalidArgument), nil)
			return
		}

		vc, err := req.toValidationContext()
		if err != nil {
			LoggerFrom(r).Warn("constraint normalization failed", slog.Any("error", err))
			writeError(w, r, err, nil)
			return
		}

		processingID := uuid.NewString()
		if err := s.Pipeline.Submit(domain.ProcessingRequest{
			ProcessingID: processingID,
			ImageRef:     imageRef,
			Context:      vc,
		}); err != nil {
			LoggerFrom(r).Warn("submission rejected",
				slog.String("processing_id", processingID),
				slog.Any("error", err))
			writeError(w, r, fmt.Errorf("submit: %w", err), nil)
			return
		}

		LoggerFrom(r).Info("validation request queued", slog.String("processing_id", processingID))
		writeJSON(w, http.StatusAccepted, submitResponse{
			ProcessingID: processingID,
			Status:       string(domain.StatusAccepted),
		})
	}
}

// StatusHandler reports the lifecycle state of a submission.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processingID := chi.URLParam(r, "id")
		status := s.Pipeline.Status(processingID)
		if status == domain.StatusNotFound {
			writeError(w, r, fmt.Errorf("%w: processing ID not found", domain.ErrNotFound), nil)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{ProcessingID: processingID, Status: string(status)})
	}
}

// ResultsHandler returns the outcome of a completed submission. Jobs still
// moving through the pipeline answer 202; failed jobs answer 500.
func (s *Server) ResultsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processingID := chi.URLParam(r, "id")
		result, status := s.Pipeline.Result(processingID)
		switch status {
		case domain.StatusNotFound:
			writeError(w, r, fmt.Errorf("%w: processing ID not found", domain.ErrNotFound), nil)
		case domain.StatusAccepted, domain.StatusInProgress:
			writeJSON(w, http.StatusAccepted, statusResponse{ProcessingID: processingID, Status: string(status)})
		case domain.StatusFailed:
			writeError(w, r, fmt.Errorf("%w: processing failed", domain.ErrInternal), nil)
		default:
			if result == nil {
				writeError(w, r, fmt.Errorf("%w: results not available", domain.ErrInternal), nil)
				return
			}
			writeJSON(w, http.StatusOK, resultsResponse{ProcessingID: processingID, Results: *result})
		}
	}
}

// HealthHandler reports liveness together with a queue snapshot.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:     "healthy",
			Version:    s.Version,
			QueueStats: s.Pipeline.Stats(),
		})
	}
}

// StatsHandler exposes the raw queue statistics.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Pipeline.Stats())
	}
}

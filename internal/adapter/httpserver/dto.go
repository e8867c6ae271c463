package httpserver

import (
	"fmt"

	"github.com/fairyhunter13/image-checker/internal/domain"
	"github.com/fairyhunter13/image-checker/internal/pipeline"
)

// validateRequest is the POST /validate body. Either "image-path" or
// "image" may carry the image reference; "image-path" wins when both are
// set.
type validateRequest struct {
	ImagePath       *string         `json:"image-path"`
	Image           *string         `json:"image"`
	AnalysisRequest analysisRequest `json:"analysis-request" validate:"required"`
}

type analysisRequest struct {
	ImagePath *string          `json:"image-path"`
	Content   string           `json:"content" validate:"required"`
	Location  *locationRequest `json:"location"`
	DateTime  *dateTimeRequest `json:"datetime"`
}

type locationRequest struct {
	Long        float64 `json:"long"`
	Lat         float64 `json:"lat"`
	MaxDistance float64 `json:"max_distance"`
}

type dateTimeRequest struct {
	Start    *string `json:"start"`
	End      *string `json:"end"`
	Duration *int64  `json:"duration"`
}

// imageRef picks the image reference: top-level "image-path", then the one
// nested in the analysis request, then "image".
func (r validateRequest) imageRef() string {
	if r.ImagePath != nil && *r.ImagePath != "" {
		return *r.ImagePath
	}
	if r.AnalysisRequest.ImagePath != nil && *r.AnalysisRequest.ImagePath != "" {
		return *r.AnalysisRequest.ImagePath
	}
	if r.Image != nil && *r.Image != "" {
		return *r.Image
	}
	return ""
}

// toValidationContext normalizes the raw constraints into their canonical
// domain form. Unparsable constraints are input errors and surface as 400
// before anything is enqueued.
func (r validateRequest) toValidationContext() (domain.ValidationContext, error) {
	vc := domain.ValidationContext{ContentCheck: r.AnalysisRequest.Content}

	if loc := r.AnalysisRequest.Location; loc != nil {
		constraint, err := domain.NewLocationConstraint(loc.Lat, loc.Long, loc.MaxDistance)
		if err != nil {
			return domain.ValidationContext{}, fmt.Errorf("location constraint: %w", err)
		}
		vc.Location = &constraint
	}
	if dt := r.AnalysisRequest.DateTime; dt != nil {
		constraint, err := domain.NewTimeConstraint(dt.Start, dt.End, dt.Duration)
		if err != nil {
			return domain.ValidationContext{}, fmt.Errorf("datetime constraint: %w", err)
		}
		vc.Time = &constraint
	}
	return vc, nil
}

type submitResponse struct {
	ProcessingID string `json:"processing-id"`
	Status       string `json:"status"`
}

type statusResponse struct {
	ProcessingID string `json:"processing-id"`
	Status       string `json:"status"`
}

type resultsResponse struct {
	ProcessingID string                   `json:"processing-id"`
	Results      domain.ValidationResults `json:"results"`
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	QueueStats pipeline.Stats `json:"queue_stats"`
}

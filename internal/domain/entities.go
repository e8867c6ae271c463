// Package domain holds the core entities, sentinel errors, and ports of the
// image validation service. It stays free of transport and infrastructure
// concerns; adapters depend on it, never the other way around.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrQueueFull       = errors.New("queue full")
	ErrQueueClosed     = errors.New("queue closed")
	ErrInternal        = errors.New("internal error")
)

// ProcessingStatus is the lifecycle state of a submitted job.
// Transitions are monotonic: accepted -> in_progress -> (completed | failed).
// StatusNotFound is a lookup outcome and is never stored in the index.
type ProcessingStatus string

const (
	StatusAccepted   ProcessingStatus = "accepted"
	StatusInProgress ProcessingStatus = "in_progress"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
	StatusNotFound   ProcessingStatus = "not_found"
)

// Terminal reports whether the status admits no further transitions.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Resolution is the overall verdict of a completed validation.
type Resolution string

const (
	ResolutionAccepted Resolution = "accepted"
	ResolutionRejected Resolution = "rejected"
)

// ValidationResults is the stored outcome of a completed job. Reasons is
// nil when accepted and non-empty when rejected. The JSON key "resons" is a
// historical misspelling that downstream consumers depend on; it must be
// preserved bit-exact.
type ValidationResults struct {
	Resolution Resolution `json:"resolution"`
	Reasons    []string   `json:"resons,omitempty"`
}

// Accepted builds an accepted result with no reasons.
func Accepted() ValidationResults {
	return ValidationResults{Resolution: ResolutionAccepted}
}

// Rejected builds a rejected result carrying the given reasons.
func Rejected(reasons ...string) ValidationResults {
	return ValidationResults{Resolution: ResolutionRejected, Reasons: reasons}
}

// ProcessingRequest is one unit of work flowing through the pipeline.
// The ID is server-assigned at ingress; ImageRef is resolved against the
// configured base directory by the processor.
type ProcessingRequest struct {
	ProcessingID string
	ImageRef     string
	Context      ValidationContext
}

// Coordinates is a WGS-84 point in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// ImageMetadata is what the EXIF reader extracts from an image file.
// Nil fields mean the corresponding tags were absent, which is not an error.
type ImageMetadata struct {
	Coordinates      *Coordinates
	DateTime         *time.Time
	DateTimeOriginal *time.Time
}

// Timestamp returns the preferred capture time: DateTimeOriginal when
// present, otherwise the generic DateTime.
func (m ImageMetadata) Timestamp() *time.Time {
	if m.DateTimeOriginal != nil {
		return m.DateTimeOriginal
	}
	return m.DateTime
}

// Ports

// ContentChecker validates image content against a free-text description by
// calling an external vision-language model. It returns the boolean verdict
// and the raw model response.
type ContentChecker interface {
	CheckContent(ctx context.Context, imagePath, description string) (bool, string, error)
}

// MetadataReader extracts GPS coordinates and capture timestamps from a
// local image file.
type MetadataReader interface {
	Extract(imagePath string) (ImageMetadata, error)
}

// Processor runs the full validation of one request. Subtask failures are
// folded into a rejected result; an error return is reserved for the
// enclosing deadline firing (or other cancellation).
type Processor interface {
	Process(ctx context.Context, req ProcessingRequest) (ValidationResults, error)
}

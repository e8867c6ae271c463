// Package usecase contains the validation orchestration: one job in, three
// checks fanned out, one verdict back.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/image-checker/internal/domain"
	"github.com/fairyhunter13/image-checker/internal/storage"
	"github.com/fairyhunter13/image-checker/pkg/geodist"
)

// reasonTimeLayout matches the "YYYY-MM-DD HH:MM:SS +0000" form used in
// rejection reasons.
const reasonTimeLayout = "2006-01-02 15:04:05 -0700"

// ValidationProcessor implements domain.Processor. It resolves the image
// path, runs the content check and the metadata checks in parallel, and
// aggregates the outcome into a single result.
type ValidationProcessor struct {
	content domain.ContentChecker
	meta    domain.MetadataReader
	base    storage.BaseDir
}

// NewValidationProcessor wires the processor with its two checkers and the
// image base directory.
func NewValidationProcessor(content domain.ContentChecker, meta domain.MetadataReader, base storage.BaseDir) *ValidationProcessor {
	return &ValidationProcessor{content: content, meta: meta, base: base}
}

// Process validates one request. Check failures become a rejected result
// with reasons; an error is returned only when ctx is cancelled or its
// deadline fires.
func (p *ValidationProcessor) Process(ctx context.Context, req domain.ProcessingRequest) (domain.ValidationResults, error) {
	imagePath := p.base.Resolve(req.ImageRef)
	slog.Info("starting validation",
		slog.String("processing_id", req.ProcessingID),
		slog.String("image_path", imagePath))

	if _, err := os.Stat(imagePath); err != nil {
		slog.Warn("image file not found", slog.String("image_path", imagePath))
		return domain.Rejected("cannot locate image"), nil
	}

	var (
		contentOK   bool
		contentResp string
		metadata    domain.ImageMetadata
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, resp, err := p.content.CheckContent(gctx, imagePath, req.Context.ContentCheck)
		if err != nil {
			return fmt.Errorf("content check: %w", err)
		}
		contentOK, contentResp = ok, resp
		return nil
	})
	g.Go(func() error {
		m, err := p.meta.Extract(imagePath)
		if err != nil {
			return fmt.Errorf("metadata extraction: %w", err)
		}
		metadata = m
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return domain.ValidationResults{}, ctx.Err()
		}
		slog.Error("validation subtask failed",
			slog.String("processing_id", req.ProcessingID),
			slog.Any("error", err))
		return domain.Rejected(fmt.Sprintf("validation error: %v", err)), nil
	}

	var reasons []string
	if !contentOK {
		reasons = append(reasons, fmt.Sprintf("image content does not match description: '%s'", req.Context.ContentCheck))
		slog.Debug("content check rejected", slog.String("model_response", contentResp))
	}
	reasons = append(reasons, checkLocation(req.Context.Location, metadata.Coordinates)...)
	reasons = append(reasons, checkTime(req.Context.Time, metadata.Timestamp())...)

	if len(reasons) > 0 {
		slog.Info("validation rejected",
			slog.String("processing_id", req.ProcessingID),
			slog.Any("reasons", reasons))
		return domain.Rejected(reasons...), nil
	}
	slog.Info("validation accepted", slog.String("processing_id", req.ProcessingID))
	return domain.Accepted(), nil
}

// checkLocation evaluates an optional location constraint against the
// extracted GPS position. A nil constraint always passes; a constraint with
// no GPS data never does.
func checkLocation(constraint *domain.LocationConstraint, coords *domain.Coordinates) []string {
	if constraint == nil {
		return nil
	}
	if coords == nil {
		return []string{"image does not contain GPS coordinates"}
	}
	if err := geodist.ValidateCoordinates(coords.Latitude, coords.Longitude); err != nil {
		return []string{fmt.Sprintf("location validation error: %v", err)}
	}

	distance := geodist.Haversine(coords.Latitude, coords.Longitude, constraint.Latitude, constraint.Longitude)
	if distance <= constraint.MaxDistanceMeters {
		return nil
	}
	return []string{fmt.Sprintf(
		"image location %s is %s from expected location %s, exceeding %s limit",
		geodist.FormatCoordinates(coords.Latitude, coords.Longitude),
		geodist.FormatDistance(distance),
		geodist.FormatCoordinates(constraint.Latitude, constraint.Longitude),
		geodist.FormatDistance(constraint.MaxDistanceMeters),
	)}
}

// checkTime evaluates an optional time-window constraint against the
// preferred capture timestamp.
func checkTime(constraint *domain.TimeConstraint, ts *time.Time) []string {
	if constraint == nil {
		return nil
	}
	if ts == nil {
		return []string{"image does not contain timestamp information"}
	}
	if constraint.Contains(*ts) {
		return nil
	}

	var diff string
	if ts.Before(constraint.Start) {
		diff = fmt.Sprintf("%d minutes before allowed start time", int64(constraint.Start.Sub(*ts).Minutes()))
	} else {
		diff = fmt.Sprintf("%d minutes after allowed end time", int64(ts.Sub(constraint.End).Minutes()))
	}
	return []string{fmt.Sprintf(
		"image timestamp %s is %s, outside allowed time range %s to %s",
		ts.Format(reasonTimeLayout),
		diff,
		constraint.Start.Format(reasonTimeLayout),
		constraint.End.Format(reasonTimeLayout),
	)}
}

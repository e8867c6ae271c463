package domain

import (
	"fmt"
	"strings"
	"time"
)

// LocationConstraint bounds where the image must have been taken: within
// MaxDistanceMeters of (Latitude, Longitude).
type LocationConstraint struct {
	Latitude          float64
	Longitude         float64
	MaxDistanceMeters float64
}

// TimeConstraint is the absolute capture window [Start, End], End > Start.
type TimeConstraint struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the window, inclusive at both ends.
func (c TimeConstraint) Contains(t time.Time) bool {
	return !t.Before(c.Start) && !t.After(c.End)
}

// ValidationContext is the canonical form of a request's constraints. The
// content check is always present; location and time constraints are
// optional.
type ValidationContext struct {
	ContentCheck string
	Location     *LocationConstraint
	Time         *TimeConstraint
}

// NewLocationConstraint range-checks and builds a location constraint.
func NewLocationConstraint(lat, lon, maxDistanceMeters float64) (LocationConstraint, error) {
	if lat < -90 || lat > 90 {
		return LocationConstraint{}, fmt.Errorf("%w: latitude %v out of range (-90 to 90)", ErrInvalidArgument, lat)
	}
	if lon < -180 || lon > 180 {
		return LocationConstraint{}, fmt.Errorf("%w: longitude %v out of range (-180 to 180)", ErrInvalidArgument, lon)
	}
	if maxDistanceMeters <= 0 {
		return LocationConstraint{}, fmt.Errorf("%w: max distance must be positive, got %v", ErrInvalidArgument, maxDistanceMeters)
	}
	return LocationConstraint{Latitude: lat, Longitude: lon, MaxDistanceMeters: maxDistanceMeters}, nil
}

// NewTimeConstraint derives the canonical [start, end] window from exactly
// two of {start, end, duration}. Any other cardinality is an error, as is a
// window with end <= start.
func NewTimeConstraint(start, end *string, durationMinutes *int64) (TimeConstraint, error) {
	provided := 0
	for _, ok := range []bool{start != nil, end != nil, durationMinutes != nil} {
		if ok {
			provided++
		}
	}
	if provided != 2 {
		return TimeConstraint{}, fmt.Errorf("%w: exactly two of start, end, duration must be provided", ErrInvalidArgument)
	}
	if durationMinutes != nil && *durationMinutes <= 0 {
		return TimeConstraint{}, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidArgument, *durationMinutes)
	}

	switch {
	case start != nil && end != nil:
		s, err := ParseTimestamp(*start)
		if err != nil {
			return TimeConstraint{}, err
		}
		e, err := ParseTimestamp(*end)
		if err != nil {
			return TimeConstraint{}, err
		}
		if !e.After(s) {
			return TimeConstraint{}, fmt.Errorf("%w: end time must be after start time", ErrInvalidArgument)
		}
		return TimeConstraint{Start: s, End: e}, nil
	case start != nil:
		s, err := ParseTimestamp(*start)
		if err != nil {
			return TimeConstraint{}, err
		}
		return TimeConstraint{Start: s, End: s.Add(time.Duration(*durationMinutes) * time.Minute)}, nil
	default:
		e, err := ParseTimestamp(*end)
		if err != nil {
			return TimeConstraint{}, err
		}
		return TimeConstraint{Start: e.Add(-time.Duration(*durationMinutes) * time.Minute), End: e}, nil
	}
}

// ParseTimestamp parses an absolute RFC 3339 timestamp. Strings without a
// timezone or offset are rejected. The legacy suffix "Z+1" is accepted for
// backward compatibility and interpreted as +01:00.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if base, ok := strings.CutSuffix(s, "Z+1"); ok {
		if t, err := time.Parse(time.RFC3339, strings.TrimSuffix(base, "Z")+"+01:00"); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid datetime format: %s", ErrInvalidArgument, s)
}

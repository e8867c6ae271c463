// Package exif extracts GPS coordinates and capture timestamps from image
// files for the metadata checks.
package exif

import (
	"fmt"
	"os"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/fairyhunter13/image-checker/internal/domain"
)

// exifTimeLayout is the EXIF "YYYY:MM:DD HH:MM:SS" timestamp format.
const exifTimeLayout = "2006:01:02 15:04:05"

// Reader implements domain.MetadataReader on top of goexif.
type Reader struct{}

// NewReader constructs an EXIF metadata reader.
func NewReader() *Reader { return &Reader{} }

// Extract opens the image and pulls out GPS coordinates and timestamps.
// Missing GPS tags or timestamps yield nil fields, not errors; an image
// without an EXIF segment at all is an error.
func (r *Reader) Extract(imagePath string) (domain.ImageMetadata, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return domain.ImageMetadata{}, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	x, err := goexif.Decode(f)
	if err != nil {
		return domain.ImageMetadata{}, fmt.Errorf("decode exif: %w", err)
	}

	coords, err := extractCoordinates(x)
	if err != nil {
		return domain.ImageMetadata{}, err
	}

	dt, err := extractTime(x, goexif.DateTime)
	if err != nil {
		return domain.ImageMetadata{}, err
	}
	dto, err := extractTime(x, goexif.DateTimeOriginal)
	if err != nil {
		return domain.ImageMetadata{}, err
	}

	return domain.ImageMetadata{Coordinates: coords, DateTime: dt, DateTimeOriginal: dto}, nil
}

// extractCoordinates returns nil when any of the four GPS tags is absent.
func extractCoordinates(x *goexif.Exif) (*domain.Coordinates, error) {
	lat, err := x.Get(goexif.GPSLatitude)
	if err != nil {
		return nil, nil
	}
	latRef, err := x.Get(goexif.GPSLatitudeRef)
	if err != nil {
		return nil, nil
	}
	lon, err := x.Get(goexif.GPSLongitude)
	if err != nil {
		return nil, nil
	}
	lonRef, err := x.Get(goexif.GPSLongitudeRef)
	if err != nil {
		return nil, nil
	}

	latDeg, err := dmsToDecimal(lat)
	if err != nil {
		return nil, fmt.Errorf("gps latitude: %w", err)
	}
	lonDeg, err := dmsToDecimal(lon)
	if err != nil {
		return nil, fmt.Errorf("gps longitude: %w", err)
	}

	latRefStr, err := latRef.StringVal()
	if err != nil {
		return nil, fmt.Errorf("gps latitude ref: %w", err)
	}
	lonRefStr, err := lonRef.StringVal()
	if err != nil {
		return nil, fmt.Errorf("gps longitude ref: %w", err)
	}
	if latRefStr == "S" {
		latDeg = -latDeg
	}
	if lonRefStr == "W" {
		lonDeg = -lonDeg
	}

	return &domain.Coordinates{Latitude: latDeg, Longitude: lonDeg}, nil
}

// dmsToDecimal converts the three-rational degrees/minutes/seconds encoding
// to decimal degrees: d + m/60 + s/3600.
func dmsToDecimal(tag *tiff.Tag) (float64, error) {
	if tag.Count != 3 {
		return 0, fmt.Errorf("expected 3 rational values for DMS, got %d", tag.Count)
	}
	parts := [3]float64{}
	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, err
		}
		if den == 0 {
			return 0, fmt.Errorf("zero denominator in DMS component %d", i)
		}
		parts[i] = float64(num) / float64(den)
	}
	return dms(parts[0], parts[1], parts[2]), nil
}

func dms(degrees, minutes, seconds float64) float64 {
	return degrees + minutes/60 + seconds/3600
}

// extractTime parses the tag's "YYYY:MM:DD HH:MM:SS" value. EXIF stores
// local time without an offset; we read it as UTC. A missing tag is nil.
func extractTime(x *goexif.Exif, field goexif.FieldName) (*time.Time, error) {
	tag, err := x.Get(field)
	if err != nil {
		return nil, nil
	}
	s, err := tag.StringVal()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	t, err := parseExifTime(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &t, nil
}

func parseExifTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(exifTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}

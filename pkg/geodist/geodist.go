// Package geodist provides great-circle distance math and coordinate
// helpers used by the location check and its failure messages.
package geodist

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371.0 * 1000

// Haversine returns the great-circle distance in meters between two WGS-84
// coordinates, using the Haversine formula with an Earth radius of 6371 km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// ValidateCoordinates rejects coordinates outside Earth ranges and the
// (0,0) point, which in practice indicates missing GPS data rather than a
// photo taken in the Gulf of Guinea.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v is out of valid range (-90 to 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v is out of valid range (-180 to 180)", lon)
	}
	if lat == 0 && lon == 0 {
		return fmt.Errorf("coordinates (0,0) may indicate missing or invalid GPS data")
	}
	return nil
}

// FormatCoordinates renders a coordinate pair for failure messages,
// e.g. "51.492191°N, 0.266108°W".
func FormatCoordinates(lat, lon float64) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
	}
	lonDir := "E"
	if lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.6f°%s, %.6f°%s", math.Abs(lat), latDir, math.Abs(lon), lonDir)
}

// FormatDistance renders a distance for failure messages: meters with one
// decimal under a kilometer, kilometers with two decimals otherwise.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.1fm", meters)
	}
	return fmt.Sprintf("%.2fkm", meters/1000)
}

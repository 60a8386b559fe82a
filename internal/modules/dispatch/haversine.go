package dispatch

import (
	"math"

	"poolcare-platform/internal/models"
)

const (
	earthRadiusMeters = 6371000.0

	// Assumed average speeds for the great-circle fallback estimate.
	drivingSpeedKmh = 50.0
	walkingSpeedKmh = 5.0
)

// HaversineMeters computes the great-circle distance between two points.
// Deterministic and side-effect-free; used whenever the external distance
// provider fails or is unconfigured.
func HaversineMeters(a, b models.Location) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FallbackEstimate converts a great-circle distance into a travel estimate
// at a fixed average speed for the mode.
func FallbackEstimate(a, b models.Location, mode string) DistanceResult {
	meters := HaversineMeters(a, b)
	speed := drivingSpeedKmh
	if mode == ModeWalking {
		speed = walkingSpeedKmh
	}
	seconds := meters / 1000.0 / speed * 3600.0
	return DistanceResult{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(seconds)),
	}
}

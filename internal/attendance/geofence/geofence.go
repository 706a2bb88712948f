// Package geofence validates location-based check-ins against an event's
// allowed radius. Pure computation against already-fetched event state; no
// locking, no I/O.
package geofence

import (
	"fmt"
	"math"

	"rollcall/internal/attendance/models"

	dErrors "rollcall/pkg/domain-errors"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6_371_000

// Validator checks reported positions against event geofences.
type Validator struct {
	// maxAccuracyMeters rejects fixes whose stated accuracy is worse than
	// this; a wildly imprecise fix proves nothing about presence.
	maxAccuracyMeters float64
}

// New constructs a Validator with the configured accuracy ceiling.
func New(maxAccuracyMeters float64) *Validator {
	return &Validator{maxAccuracyMeters: maxAccuracyMeters}
}

// Validate allows a check-in when the reported position lies within the
// event's radius, boundary inclusive.
func (v *Validator) Validate(pos *models.Position, loc *models.Location) error {
	if loc == nil {
		// Location-agnostic events never reach the geofence path; treat a
		// missing geofence as a configuration fault rather than an allow.
		return dErrors.New(dErrors.CodeInvariantViolation, "event has no location configured")
	}
	if pos == nil {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonNoPositionSignal,
			"no position supplied")
	}
	if v.maxAccuracyMeters > 0 && pos.AccuracyMeters > v.maxAccuracyMeters {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonNoPositionSignal,
			fmt.Sprintf("position accuracy %.0fm exceeds %.0fm threshold", pos.AccuracyMeters, v.maxAccuracyMeters))
	}

	distance := HaversineMeters(pos.Latitude, pos.Longitude, loc.Latitude, loc.Longitude)
	if distance > loc.RadiusMeters {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonOutsideRadius,
			fmt.Sprintf("%.0fm from venue, allowed radius %.0fm", distance, loc.RadiusMeters))
	}
	return nil
}

// HaversineMeters computes the great-circle distance between two coordinate
// pairs in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

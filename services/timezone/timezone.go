package timezone

import (
	"errors"
	"fmt"
	"os"
	"time"

	"classflow/logger"
	locationModel "classflow/models/location"
)

// ErrInvalidTimezone is returned for zone ids the tz database does not know.
// Callers must surface it, never silently fall back.
var ErrInvalidTimezone = errors.New("invalid timezone")

// ToCanonical converts a local civil time in the given IANA zone to the
// canonical UTC instant, using the offset in force at that date.
func ToCanonical(year int, month time.Month, day, hour, minute int, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimezone, zone)
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc).UTC(), nil
}

// ToLocal converts a canonical UTC instant to the local civil time in the
// given IANA zone.
func ToLocal(instant time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimezone, zone)
	}
	return instant.In(loc), nil
}

// EffectiveZone resolves the zone a schedule's local times are expressed
// in: the location's zone, falling back to the business-wide default. An
// empty result means UTC, with a logged warning so the fallback never goes
// unnoticed.
func EffectiveZone(loc *locationModel.Location) string {
	if loc != nil && loc.Timezone != "" {
		return loc.Timezone
	}
	if zone := os.Getenv("DEFAULT_TIMEZONE"); zone != "" {
		return zone
	}
	logger.Warning("No location timezone and DEFAULT_TIMEZONE unset, falling back to UTC")
	return "UTC"
}

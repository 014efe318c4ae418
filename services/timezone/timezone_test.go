package timezone

import (
	"testing"
	"time"

	locationModel "classflow/models/location"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCanonicalUsesOffsetInForce(t *testing.T) {
	// New York is UTC-5 in January and UTC-4 in July.
	winter, err := ToCanonical(2026, time.January, 15, 18, 0, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 15, 23, 0, 0, 0, time.UTC), winter)

	summer, err := ToCanonical(2026, time.July, 15, 18, 0, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.July, 15, 22, 0, 0, 0, time.UTC), summer)
}

func TestToCanonicalAcrossDSTTransition(t *testing.T) {
	// US spring-forward 2026 is March 8. The same civil time on either side
	// of the transition maps to different UTC instants.
	before, err := ToCanonical(2026, time.March, 7, 9, 0, "America/New_York")
	require.NoError(t, err)
	after, err := ToCanonical(2026, time.March, 9, 9, 0, "America/New_York")
	require.NoError(t, err)

	assert.Equal(t, 14, before.Hour())
	assert.Equal(t, 13, after.Hour())
}

func TestToCanonicalInvalidZone(t *testing.T) {
	_, err := ToCanonical(2026, time.January, 1, 9, 0, "Mars/Olympus_Mons")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestToLocalRoundTrip(t *testing.T) {
	instant := time.Date(2026, time.July, 15, 22, 0, 0, 0, time.UTC)

	local, err := ToLocal(instant, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 18, local.Hour())
	assert.True(t, local.Equal(instant), "same instant, different wall clock")

	_, err = ToLocal(instant, "Not/AZone")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestEffectiveZonePrefersLocation(t *testing.T) {
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")

	loc := &locationModel.Location{Timezone: "America/Los_Angeles"}
	assert.Equal(t, "America/Los_Angeles", EffectiveZone(loc))
}

func TestEffectiveZoneFallsBackToDefault(t *testing.T) {
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")

	assert.Equal(t, "Europe/Berlin", EffectiveZone(nil))
	assert.Equal(t, "Europe/Berlin", EffectiveZone(&locationModel.Location{}))
}

func TestEffectiveZoneUTCWhenNothingConfigured(t *testing.T) {
	t.Setenv("DEFAULT_TIMEZONE", "")

	assert.Equal(t, "UTC", EffectiveZone(nil))
}

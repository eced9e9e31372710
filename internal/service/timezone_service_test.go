package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

func newTestTimezoneService(t *testing.T) *TimezoneService {
	t.Helper()
	svc, err := NewTimezoneService("UTC", zap.NewNop(), nil)
	require.NoError(t, err)
	return svc
}

func TestTimezoneServiceRoundTrip(t *testing.T) {
	svc := newTestTimezoneService(t)

	wall := WallClock{Year: 2024, Month: time.June, Day: 14, Hour: 9, Minute: 30}
	instant, err := svc.ToUTC(wall, "America/New_York")
	require.NoError(t, err)

	// EDT is UTC-4 in June.
	assert.Equal(t, time.Date(2024, time.June, 14, 13, 30, 0, 0, time.UTC), instant)
	assert.Equal(t, wall, svc.FromUTC(instant, "America/New_York"))
}

func TestTimezoneServiceOffsetChangesAcrossDST(t *testing.T) {
	svc := newTestTimezoneService(t)

	winter := WallClock{Year: 2024, Month: time.January, Day: 15, Hour: 9, Minute: 0}
	summer := WallClock{Year: 2024, Month: time.July, Day: 15, Hour: 9, Minute: 0}

	winterUTC, err := svc.ToUTC(winter, "America/New_York")
	require.NoError(t, err)
	summerUTC, err := svc.ToUTC(summer, "America/New_York")
	require.NoError(t, err)

	// Same wall clock, different offsets: EST is UTC-5, EDT is UTC-4.
	assert.Equal(t, 14, winterUTC.Hour())
	assert.Equal(t, 13, summerUTC.Hour())

	assert.Equal(t, -300, svc.OffsetMinutes("America/New_York", winterUTC))
	assert.Equal(t, -240, svc.OffsetMinutes("America/New_York", summerUTC))
}

func TestTimezoneServiceSpringForwardGapNormalizesForward(t *testing.T) {
	svc := newTestTimezoneService(t)

	// 2:30 AM on 2024-03-10 never occurred in America/New_York; clocks
	// jumped from 2:00 EST to 3:00 EDT.
	gap := WallClock{Year: 2024, Month: time.March, Day: 10, Hour: 2, Minute: 30}
	instant, err := svc.ToUTC(gap, "America/New_York")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.March, 10, 7, 30, 0, 0, time.UTC), instant)
	assert.Equal(t, WallClock{Year: 2024, Month: time.March, Day: 10, Hour: 3, Minute: 30}, svc.FromUTC(instant, "America/New_York"))

	// Lord Howe Island springs forward by only 30 minutes (2:00 to 2:30),
	// so the shift must follow the gap width rather than assume an hour.
	halfGap := WallClock{Year: 2024, Month: time.October, Day: 6, Hour: 2, Minute: 15}
	instant, err = svc.ToUTC(halfGap, "Australia/Lord_Howe")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.October, 5, 15, 45, 0, 0, time.UTC), instant)
	assert.Equal(t, WallClock{Year: 2024, Month: time.October, Day: 6, Hour: 2, Minute: 45}, svc.FromUTC(instant, "Australia/Lord_Howe"))
}

func TestTimezoneServiceUnrecognizedZoneSubstitutesDefault(t *testing.T) {
	svc := newTestTimezoneService(t)

	wall := WallClock{Year: 2024, Month: time.May, Day: 1, Hour: 12, Minute: 0}
	instant, err := svc.ToUTC(wall, "Not/AZone")

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTimezone))
	// The instant is still usable, interpreted in the default zone.
	assert.Equal(t, time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC), instant)

	assert.False(t, svc.IsValidTimezone("Not/AZone"))
	assert.True(t, svc.IsValidTimezone("Asia/Jakarta"))
}

func TestTimezoneServiceParseLocalDateTime(t *testing.T) {
	svc := newTestTimezoneService(t)

	instant, err := svc.ParseLocalDateTime("2024-06-14T09:30", "Asia/Jakarta")
	require.NoError(t, err)
	// WIB is UTC+7.
	assert.Equal(t, time.Date(2024, time.June, 14, 2, 30, 0, 0, time.UTC), instant)

	_, err = svc.ParseLocalDateTime("not-a-date", "Asia/Jakarta")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrMalformedInput))

	_, err = svc.ParseLocalDateTime("2024-06-14T09:30", "Not/AZone")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTimezone))
}

func TestTimezoneServiceParseLocalDateTimeOrNow(t *testing.T) {
	svc := newTestTimezoneService(t)
	now := time.Date(2024, time.June, 14, 10, 0, 0, 0, time.UTC)

	parsed, substituted := svc.ParseLocalDateTimeOrNow("2024-06-14T09:30", "UTC", now)
	assert.False(t, substituted)
	assert.Equal(t, time.Date(2024, time.June, 14, 9, 30, 0, 0, time.UTC), parsed)

	parsed, substituted = svc.ParseLocalDateTimeOrNow("garbage", "UTC", now)
	assert.True(t, substituted)
	assert.Equal(t, now, parsed)

	parsed, substituted = svc.ParseLocalDateTimeOrNow("", "UTC", now)
	assert.True(t, substituted)
	assert.Equal(t, now, parsed)
}

func TestTimezoneServiceFormatInZone(t *testing.T) {
	svc := newTestTimezoneService(t)

	instant := time.Date(2024, time.June, 14, 13, 30, 0, 0, time.UTC)
	formatted := svc.FormatInZone(instant, "America/New_York")
	assert.Equal(t, "Fri, 14 Jun 2024 9:30 AM EDT", formatted)
}

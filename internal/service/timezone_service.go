package service

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

// WallClock is a zone-local wall-clock reading with minute precision.
type WallClock struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
}

// String renders the wall clock in a sortable layout.
func (w WallClock) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d", w.Year, w.Month, w.Day, w.Hour, w.Minute)
}

// Layouts accepted for local date-time input.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// TimezoneService converts between zone-local wall-clock readings and UTC
// instants using the IANA zone database. Offsets are always resolved at the
// specific date so DST-affected zones stay correct across the year. The
// resolved-zone cache is instance state, injected at construction.
type TimezoneService struct {
	defaultName string
	defaultLoc  *time.Location
	logger      *zap.Logger
	metrics     *MetricsService

	mu    sync.RWMutex
	zones map[string]*time.Location
}

// NewTimezoneService constructs the service. The default zone must resolve;
// it is the documented substitute for unrecognized identifiers.
func NewTimezoneService(defaultZone string, logger *zap.Logger, metrics *MetricsService) (*TimezoneService, error) {
	if defaultZone == "" {
		defaultZone = "UTC"
	}
	loc, err := time.LoadLocation(defaultZone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTimezone.Code, appErrors.ErrInvalidTimezone.Status,
			fmt.Sprintf("default timezone %q does not resolve", defaultZone))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimezoneService{
		defaultName: defaultZone,
		defaultLoc:  loc,
		logger:      logger,
		metrics:     metrics,
		zones:       map[string]*time.Location{defaultZone: loc},
	}, nil
}

// IsValidTimezone reports whether the identifier resolves against the zone
// database.
func (s *TimezoneService) IsValidTimezone(zone string) bool {
	_, ok := s.lookup(zone)
	return ok
}

// ToUTC converts a zone-local wall-clock reading to a UTC instant, resolving
// the zone's offset at that specific date. An unrecognized zone substitutes
// the configured default; the substitution is logged and the returned error
// identifies it while the instant remains usable by fallback-tolerant
// callers. A reading inside a DST spring-forward gap (a wall-clock time that
// never occurred) is normalized forward to the first valid instant after the
// gap.
func (s *TimezoneService) ToUTC(w WallClock, zone string) (time.Time, error) {
	loc, ok := s.lookup(zone)
	var zoneErr error
	if !ok {
		s.logger.Warn("unrecognized timezone, substituting default",
			zap.String("zone", zone),
			zap.String("default", s.defaultName))
		s.metrics.RecordTimezoneFallback()
		loc = s.defaultLoc
		zoneErr = appErrors.Clone(appErrors.ErrInvalidTimezone,
			fmt.Sprintf("timezone %q is not recognized; used %s", zone, s.defaultName))
	}

	local := time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, 0, 0, loc)
	if round := snapshot(local.In(loc)); round != w {
		// Spring-forward gap: the requested wall time never occurred.
		// Shift the instant forward by the gap width, so 02:30 in a zone
		// that jumps from 02:00 to 03:00 lands on 03:30.
		if delta := wallDelta(w, round); delta > 0 {
			local = local.Add(delta)
		}
		s.logger.Debug("wall clock inside DST gap, normalized forward",
			zap.String("requested", w.String()),
			zap.String("normalized", snapshot(local.In(loc)).String()),
			zap.String("zone", loc.String()))
	}
	return local.UTC(), zoneErr
}

// FromUTC projects a UTC instant onto a zone's wall clock. It never mutates
// or reinterprets the instant. An unrecognized zone substitutes the default,
// logged the same way as ToUTC.
func (s *TimezoneService) FromUTC(instant time.Time, zone string) WallClock {
	loc, ok := s.lookup(zone)
	if !ok {
		s.logger.Warn("unrecognized timezone, substituting default",
			zap.String("zone", zone),
			zap.String("default", s.defaultName))
		s.metrics.RecordTimezoneFallback()
		loc = s.defaultLoc
	}
	return snapshot(instant.In(loc))
}

// FormatInZone renders a localized display string with the zone abbreviation.
func (s *TimezoneService) FormatInZone(instant time.Time, zone string) string {
	loc, ok := s.lookup(zone)
	if !ok {
		loc = s.defaultLoc
	}
	return instant.In(loc).Format("Mon, 02 Jan 2006 3:04 PM MST")
}

// OffsetMinutes returns the zone's UTC offset in whole minutes at the given
// instant.
func (s *TimezoneService) OffsetMinutes(zone string, at time.Time) int {
	loc, ok := s.lookup(zone)
	if !ok {
		loc = s.defaultLoc
	}
	_, offsetSeconds := at.In(loc).Zone()
	return offsetSeconds / 60
}

// ParseLocalDateTime parses a local date-time string in the given zone and
// returns the UTC instant. Malformed input signals ErrMalformedInput; the
// caller decides the fallback.
func (s *TimezoneService) ParseLocalDateTime(raw, zone string) (time.Time, error) {
	loc, ok := s.lookup(zone)
	if !ok {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidTimezone,
			fmt.Sprintf("timezone %q is not recognized", zone))
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrMalformedInput,
		fmt.Sprintf("cannot parse %q as a local date-time", raw))
}

// ParseLocalDateTimeOrNow parses like ParseLocalDateTime but substitutes the
// provided "now" on malformed input. The substitution is an explicit,
// documented safe default for display paths, never silent corruption: it is
// logged and the second return reports whether it happened.
func (s *TimezoneService) ParseLocalDateTimeOrNow(raw, zone string, now time.Time) (time.Time, bool) {
	if raw == "" {
		return now, true
	}
	parsed, err := s.ParseLocalDateTime(raw, zone)
	if err != nil {
		s.logger.Info("malformed local date-time, substituting now",
			zap.String("raw", raw),
			zap.String("zone", zone))
		return now, true
	}
	return parsed, false
}

func (s *TimezoneService) lookup(zone string) (*time.Location, bool) {
	if zone == "" {
		return s.defaultLoc, false
	}

	s.mu.RLock()
	loc, cached := s.zones[zone]
	s.mu.RUnlock()
	if cached {
		return loc, loc != nil
	}

	loc, err := time.LoadLocation(zone)
	s.mu.Lock()
	if err != nil {
		// Negative-cache unknown identifiers.
		s.zones[zone] = nil
	} else {
		s.zones[zone] = loc
	}
	s.mu.Unlock()

	if err != nil {
		return nil, false
	}
	return loc, true
}

// wallDelta returns the signed duration between two wall-clock readings,
// comparing them as naive timestamps.
func wallDelta(a, b WallClock) time.Duration {
	au := time.Date(a.Year, a.Month, a.Day, a.Hour, a.Minute, 0, 0, time.UTC)
	bu := time.Date(b.Year, b.Month, b.Day, b.Hour, b.Minute, 0, 0, time.UTC)
	return au.Sub(bu)
}

func snapshot(t time.Time) WallClock {
	return WallClock{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}

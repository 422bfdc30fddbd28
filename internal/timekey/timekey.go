package timekey

import "time"

// Normalize validates an IANA timezone identifier and returns it unchanged,
// or "UTC" if the identifier is empty or unknown. Never fails.
func Normalize(tz string) string {
	if tz == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "UTC"
	}
	return tz
}

// Location resolves a timezone identifier with the same fallback as Normalize.
func Location(tz string) *time.Location {
	loc, err := time.LoadLocation(Normalize(tz))
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayKey returns the calendar date (YYYY-MM-DD) of the instant as observed in
// the given zone. Computed from local calendar fields, so it is stable under
// DST transitions. Used as the sharding key for all daily records.
func DayKey(tz string, t time.Time) string {
	return t.In(Location(tz)).Format("2006-01-02")
}

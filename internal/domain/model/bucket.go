package model

import "time"

// DateLayout is the wire format for plain dates and for day/week bucket keys.
const DateLayout = "2006-01-02"

// BucketKey returns the resolution-aware key for the time slot containing t.
// Exactly one allocation may exist per resource per bucket key. Keys of the
// same resolution compare chronologically as plain strings.
func BucketKey(t time.Time, r Resolution) string {
	switch r {
	case ResolutionWeek:
		return startOfISOWeek(t).Format(DateLayout)
	case ResolutionMonth:
		return t.Format("2006-01")
	case ResolutionYear:
		return t.Format("2006")
	default:
		return t.Format(DateLayout)
	}
}

// ParseDate parses a wire-format date string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// startOfISOWeek returns the Monday of the ISO week containing t.
func startOfISOWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return t.AddDate(0, 0, 1-weekday)
}

package util

import "time"

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekday reports whether t falls Monday through Friday.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PreviousWeekday returns the latest weekday strictly before t's date.
// Exchange holidays are not modelled.
func PreviousWeekday(t time.Time) time.Time {
	d := DateOnly(t).AddDate(0, 0, -1)
	for !IsWeekday(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// WeekdaysBetween counts weekdays in (from, to]. It returns 0 when to is not
// after from.
func WeekdaysBetween(from, to time.Time) int {
	from, to = DateOnly(from), DateOnly(to)
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsWeekday(d) {
			n++
		}
	}
	return n
}

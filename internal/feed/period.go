package feed

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadPeriod is returned for an unrecognised period label.
var ErrBadPeriod = errors.New("bad period")

// MaxStart is the start date used for the "max" period.
var MaxStart = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// periodUnits are tried in order; "wk" and "mo" must precede the
// single-letter suffixes.
var periodUnits = []struct {
	suffix string
	back   func(now time.Time, n int) time.Time
}{
	{"wk", func(now time.Time, n int) time.Time { return now.AddDate(0, 0, -7*n) }},
	{"mo", func(now time.Time, n int) time.Time { return now.AddDate(0, -n, 0) }},
	{"d", func(now time.Time, n int) time.Time { return now.AddDate(0, 0, -n) }},
	{"y", func(now time.Time, n int) time.Time { return now.AddDate(-n, 0, 0) }},
}

// ParsePeriod converts a look-back label into the range ending at now.
// Supported labels: Nd, Nwk, Nmo, Ny (N > 0), "ytd" and "max".
func ParsePeriod(label string, now time.Time) (DateRange, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "ytd":
		return DateRange{Start: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), End: now}, nil
	case "max":
		return DateRange{Start: MaxStart, End: now}, nil
	}

	for _, u := range periodUnits {
		num, ok := strings.CutSuffix(l, u.suffix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil || n <= 0 {
			break
		}
		return DateRange{Start: u.back(now, n), End: now}, nil
	}
	return DateRange{}, fmt.Errorf("%w: %q (want e.g. 5d, 2wk, 6mo, 2y, ytd, max)", ErrBadPeriod, label)
}

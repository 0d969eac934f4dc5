package logic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// FormatDate renders t in the persisted date format.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// ParseDate parses a persisted date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateFormat, s, loc)
}

// restoreErr tags a field that failed to parse.
func restoreErr(key, value string, err error) error {
	return fmt.Errorf("%w: %s=%q: %v", ErrRestoreParse, key, value, err)
}

// decodeNonNegative reads an integer field. ok is false when the key is absent.
func decodeNonNegative(state map[string]string, key string) (n int64, ok bool, err error) {
	raw, present := state[key]
	if !present || raw == "" {
		return 0, false, nil
	}
	n, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Older snapshots stored float seconds.
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
			return 0, false, restoreErr(key, raw, err)
		}
		n = int64(math.Round(f))
	}
	if n < 0 {
		return 0, false, restoreErr(key, raw, errors.New("negative value"))
	}
	return n, true, nil
}

// extrapolate projects when used reaches threshold at the average daily rate
// observed since anchor. It reports no prediction when no time has elapsed or
// nothing has been used yet.
func extrapolate(anchor, now time.Time, used, threshold float64) (time.Time, bool) {
	days := now.Sub(anchor).Hours() / 24
	if days <= 0 {
		return time.Time{}, false
	}
	perDay := used / days
	if perDay == 0 {
		return time.Time{}, false
	}
	daysLeft := (threshold - used) / perDay
	offset := daysLeft * float64(24*time.Hour)
	if math.IsNaN(offset) || math.Abs(offset) >= math.MaxInt64 {
		return time.Time{}, false
	}
	return now.Add(time.Duration(offset)), true
}

package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DisplayTimeLayout renders ban timestamps, always in UTC.
const DisplayTimeLayout = "02 Jan 2006 15:04:05"

var errLengthTooLong = NewValidationError("Ban length is too long")

var lengthUnits = map[string]time.Duration{
	"w": 7 * 24 * time.Hour,
	"d": 24 * time.Hour,
	"h": time.Hour,
	"m": time.Minute,
	"s": time.Second,
}

// ParseBanLength parses lengths such as "30m", "2h" or "1d12h". Unlike
// time.ParseDuration it accepts day and week units. A negative length is
// ErrInvalidDuration; a length past the Duration range is a validation error.
func ParseBanLength(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, NewValidationError("Ban length is required")
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrInvalidDuration
	}

	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		j := i
		for j < len(s) && (s[j] < '0' || s[j] > '9') {
			j++
		}
		if i == 0 || i == j {
			return 0, NewValidationError(fmt.Sprintf("Invalid ban length %q", raw))
		}
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, NewValidationError(fmt.Sprintf("Invalid ban length %q", raw))
		}
		unit, ok := lengthUnits[s[i:j]]
		if !ok {
			return 0, NewValidationError(fmt.Sprintf("Unknown unit %q in ban length", s[i:j]))
		}
		if n > int64(math.MaxInt64/unit) {
			return 0, errLengthTooLong
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, errLengthTooLong
		}
		total += part
		s = s[j:]
	}
	return total, nil
}

// FormatLength renders a duration as "1 day 2 hours 5 minutes".
func FormatLength(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	parts := make([]string, 0, 4)
	add := func(n int64, unit string) {
		if n == 0 {
			return
		}
		if n != 1 {
			unit += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, unit))
	}

	d = d.Truncate(time.Second)
	add(int64(d/(24*time.Hour)), "day")
	add(int64(d%(24*time.Hour)/time.Hour), "hour")
	add(int64(d%time.Hour/time.Minute), "minute")
	add(int64(d%time.Minute/time.Second), "second")
	return strings.Join(parts, " ")
}

package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var leadingDays = regexp.MustCompile(`^(\d+(?:\.\d+)?)d`)

// ParseDurationString parses a Go duration string that may start with a day count,
// e.g. "2d", "1d12h" or "1.5d".
func ParseDurationString(value string) (time.Duration, error) {
	var days time.Duration
	rest := value
	if m := leadingDays.FindStringSubmatch(value); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return time.Duration(0), fmt.Errorf("invalid time duration '%s' : %s", value, err.Error())
		}
		days = time.Duration(n * float64(24*time.Hour))
		rest = value[len(m[0]):]
		if rest == "" {
			return days, nil
		}
	}

	d, err := time.ParseDuration(rest)
	if err != nil {
		return time.Duration(0), fmt.Errorf("invalid time duration '%s' : %s", value, err.Error())
	}
	return days + d, nil
}

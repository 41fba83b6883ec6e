package feed

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	lapTimeRe = regexp.MustCompile(`^(?:(\d{1,2}):([0-5]?\d\.\d{1,3})|(\d{1,3}\.\d{1,3}))$`)
	integerRe = regexp.MustCompile(`^\d{1,4}$`)
)

// ParseLapTime parses "mm:ss.fff" or "ss.fff" (comma decimals accepted) into
// seconds.
func ParseLapTime(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	m := lapTimeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	if m[3] != "" {
		secs, err := strconv.ParseFloat(m[3], 64)
		return secs, err == nil && secs > 0
	}
	mins, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	total := float64(mins)*60 + secs
	return total, total > 0
}

func isInteger(s string) bool {
	return integerRe.MatchString(strings.TrimSpace(s))
}

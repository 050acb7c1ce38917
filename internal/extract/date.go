package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reDateSep    = regexp.MustCompile(`[/-]`)
	reDigitsOnly = regexp.MustCompile(`^\d+$`)
)

// NormalizeDate turns a D/M/Y candidate into YYYY-MM-DD. The first number is
// always the day. Years below 100 become 2000+yy. Anything that does not split
// into three numeric parts yields today's date.
func NormalizeDate(candidate string, today time.Time) string {
	fallback := today.Format(time.DateOnly)

	parts := reDateSep.Split(strings.TrimSpace(candidate), -1)
	if len(parts) != 3 {
		return fallback
	}
	var nums [3]int
	for i, p := range parts {
		if !reDigitsOnly.MatchString(p) {
			return fallback
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return fallback
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if year < 100 {
		year += 2000
	}
	// out-of-range day/month roll over like a calendar would (31/02 -> 02/03)
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return d.Format(time.DateOnly)
}

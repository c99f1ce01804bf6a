package cache

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseVerdict reads the judge's reply. It returns the 1-based index of a
// matching question when the reply names one in [1, n]. "NONE", an index
// out of range and replies without a number all mean no match.
func ParseVerdict(reply string, n int) (int, bool) {
	if strings.Contains(strings.ToUpper(reply), "NONE") {
		return 0, false
	}
	start := strings.IndexFunc(reply, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(reply) && reply[end] >= '0' && reply[end] <= '9' {
		end++
	}
	idx, err := strconv.Atoi(reply[start:end])
	if err != nil || idx < 1 || idx > n {
		return 0, false
	}
	return idx, true
}

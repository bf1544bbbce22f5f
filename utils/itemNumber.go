package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// CompareItemNumbers orders item numbers numerically ("2" < "10"); non-numeric numbers
// sort after numeric ones and compare as strings.
func CompareItemNumbers(a, b string) int {
	na, errA := strconv.Atoi(strings.TrimSpace(a))
	nb, errB := strconv.Atoi(strings.TrimSpace(b))
	switch {
	case errA == nil && errB == nil:
		if na < nb {
			return -1
		}
		if na > nb {
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// NextItemNumber returns max(numeric numbers)+1, zero padded to four digits.
func NextItemNumber(existing []string) string {
	next := 1
	for _, s := range existing {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil && n >= next {
			next = n + 1
		}
	}
	return fmt.Sprintf("%04d", next)
}

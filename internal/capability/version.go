package capability

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// CompareVersions compares dot-separated numeric versions component by
// component. Missing components count as zero, so "1.5" equals "1.5.0".
// A leading "v" and any pre-release or build suffix are ignored. It returns
// -1, 0 or 1.
func CompareVersions(a, b string) int {
	pa := versionParts(a)
	pb := versionParts(b)

	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}
	return 0
}

// CheckVersionCompatibility reports whether current lies within the
// inclusive range [min, max]. An empty bound imposes no constraint.
func CheckVersionCompatibility(current, min, max string) bool {
	if min != "" && CompareVersions(current, min) < 0 {
		return false
	}
	if max != "" && CompareVersions(current, max) > 0 {
		return false
	}
	return true
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil
	}

	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		end := 0
		for end < len(f) && f[end] >= '0' && f[end] <= '9' {
			end++
		}
		// Components past the int range saturate rather than reading as zero.
		n, err := strconv.Atoi(f[:end])
		switch {
		case errors.Is(err, strconv.ErrRange):
			n = math.MaxInt
		case err != nil:
			n = 0
		}
		parts[i] = n
	}
	return parts
}

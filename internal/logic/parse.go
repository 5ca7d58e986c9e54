package logic

import "math"

// ParseInt parses s the way C's atoi does: optional leading whitespace, an
// optional sign, then decimal digits up to the first non-digit. Text with no
// leading digits parses as 0. Out-of-range values saturate.
//
// exact reports whether s was a clean integer (digits consumed the whole
// string after the whitespace and sign).
func ParseInt(s string) (n int, exact bool) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	start := i
	var v uint64
	overflow := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		d := uint64(s[i] - '0')
		if v > (uint64(math.MaxInt)-d)/10 {
			overflow = true
		} else if !overflow {
			v = v*10 + d
		}
		i++
	}
	digits := i - start
	exact = digits > 0 && i == len(s) && !overflow

	switch {
	case overflow && neg:
		return math.MinInt, exact
	case overflow:
		return math.MaxInt, exact
	case neg:
		return -int(v), exact
	}
	return int(v), exact
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

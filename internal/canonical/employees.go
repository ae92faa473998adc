package canonical

import (
	"strconv"
	"strings"
	"unicode"
)

// minEmployeeCount is the parser floor: counts below it are treated as
// noise (sole traders, placeholder rows) and yield nil. Distinct from the
// tier-5 threshold of 50 in the client tier rubric.
const minEmployeeCount = 20

// ParseEmployees parses a free-form employee figure: plain integers, ranges
// ("200-500" → midpoint), letter-prefixed bands ("B 5000-10000"), and text
// with trailing qualifiers ("1200 Mitarbeiter"). Returns nil when nothing
// parses or the result is below the floor.
func ParseEmployees(s string) *int {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return nil
	}

	// Drop a leading band letter ("B 5000-10000").
	cleaned = strings.TrimSpace(strings.TrimLeftFunc(cleaned, unicode.IsLetter))

	var value int
	if lo, hi, ok := splitRange(cleaned); ok {
		a, aok := leadingInt(lo)
		b, bok := leadingInt(hi)
		if !aok || !bok {
			return nil
		}
		value = (a + b) / 2
	} else {
		v, ok := leadingInt(cleaned)
		if !ok {
			return nil
		}
		value = v
	}

	if value < minEmployeeCount {
		return nil
	}
	return &value
}

// leadingInt extracts the first integer in s, tolerating thousands
// separators, leading qualifiers ("ca."), and trailing text.
func leadingInt(s string) (int, bool) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '.' || r == ',' || r == ' ':
			// Qualifier punctuation before the number, or thousands
			// grouping inside it.
			continue
		default:
			if digits.Len() > 0 {
				v, err := strconv.Atoi(digits.String())
				return v, err == nil
			}
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(digits.String())
	return v, err == nil
}

package canonical

import (
	"strconv"
	"strings"
)

// revenue multiplier suffixes, longest forms first.
var revenueSuffixes = []struct {
	token      string
	multiplier float64
}{
	{"milliarden", 1e9}, {"milliarde", 1e9}, {"billion", 1e9}, {"mrd.", 1e9}, {"mrd", 1e9}, {"b", 1e9},
	{"millionen", 1e6}, {"million", 1e6}, {"mio.", 1e6}, {"mio", 1e6}, {"m", 1e6},
	{"tausend", 1e3}, {"tsd.", 1e3}, {"tsd", 1e3}, {"k", 1e3},
}

// ParseRevenue parses a free-form revenue figure into a single EUR value.
// Ranges yield their midpoint. Bare numbers above 1000 are raw EUR; smaller
// positive values are read as millions. When inMillions is set (source
// explicitly tagged as millions-denominated), bare numbers are always
// multiplied by 1e6. Unparseable input yields nil.
func ParseRevenue(s string, inMillions bool) *float64 {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	if cleaned == "" {
		return nil
	}
	cleaned = strings.ReplaceAll(cleaned, "€", "")
	cleaned = strings.ReplaceAll(cleaned, "eur", "")
	cleaned = strings.TrimSpace(cleaned)

	multiplier := 0.0
	for _, suf := range revenueSuffixes {
		if strings.HasSuffix(cleaned, suf.token) {
			multiplier = suf.multiplier
			cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, suf.token))
			break
		}
	}

	var value float64
	if lo, hi, ok := splitRange(cleaned); ok {
		a, aok := parseNumber(lo)
		b, bok := parseNumber(hi)
		if !aok || !bok {
			return nil
		}
		value = (a + b) / 2
	} else {
		v, ok := parseNumber(cleaned)
		if !ok {
			return nil
		}
		value = v
	}
	if value <= 0 {
		return nil
	}

	switch {
	case multiplier > 0:
		value *= multiplier
	case inMillions:
		value *= 1e6
	case value <= 1000:
		value *= 1e6
	}
	return &value
}

// splitRange splits "10-50" or "10 – 50" into its endpoints.
func splitRange(s string) (lo, hi string, ok bool) {
	for _, sep := range []string{"–", "—", "-"} {
		if i := strings.Index(s, sep); i > 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):]), true
		}
	}
	return "", "", false
}

// parseNumber reads a number in English ("1,234.5") or German ("1.234,5")
// notation. A single dot or comma followed by 1-2 digits is a decimal
// separator; otherwise separators are treated as thousands grouping.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: the later one is the decimal separator.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if decimalish(s, lastComma) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if !decimalish(s, lastDot) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// decimalish reports whether the separator at index i looks like a decimal
// point: it is the only occurrence and is followed by one or two digits.
func decimalish(s string, i int) bool {
	sep := s[i]
	if strings.Count(s, string(sep)) != 1 {
		return false
	}
	frac := len(s) - i - 1
	return frac >= 1 && frac <= 2
}

package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses a locale-tolerant decimal: "1.234,5", "1,234.5",
// "1234,5", "12 345" and "35%" are all accepted. Empty input is missing, not invalid.
func ParseNumber(s string) (v float64, ok bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(raw)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	var dec, thou rune
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			dec, thou = ',', '.'
		} else {
			dec, thou = '.', ','
		}
	case cpos >= 0:
		if strings.Count(raw, ",") > 1 {
			dec, thou = '.', ','
		} else {
			dec = ','
		}
	case dpos >= 0:
		if strings.Count(raw, ".") > 1 {
			dec, thou = ',', '.'
		} else {
			dec = '.'
		}
	default:
		dec = '.'
	}

	raw = strings.ReplaceAll(raw, " ", "")
	if thou != 0 {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseYear accepts "2020", "2020.0" and crop-season forms like "2020/21".
func ParseYear(s string) (int, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	if len(raw) > 4 && isDigits(raw[:4]) && (raw[4] == '/' || raw[4] == '-') {
		y, err := strconv.Atoi(raw[:4])
		return y, err == nil
	}
	f, ok := ParseNumber(raw)
	if !ok || f != math.Trunc(f) || f <= 0 || f >= 10000 {
		return 0, false
	}
	return int(f), true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

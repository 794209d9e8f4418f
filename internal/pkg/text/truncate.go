package text

import "unicode/utf8"

// Truncate cuts s to at most max runes and marks the cut with "...".
func Truncate(s string, max int) string {
	cut := Clip(s, max)
	if len(cut) == len(s) {
		return s
	}
	return cut + "..."
}

// Clip cuts s to at most max runes without adding a marker. max <= 0 keeps s.
func Clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

package sanitizer

import "strings"

// TrimAndNormalize trims s and collapses every run of whitespace, tabs and
// newlines included, to a single space.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeSpecialization keeps the case as stored; matching against a
// requested specialization is case-insensitive.
func NormalizeSpecialization(s string) string {
	return TrimAndNormalize(s)
}

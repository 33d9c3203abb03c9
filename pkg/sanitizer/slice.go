package sanitizer

func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		normalized := normalizer(item)
		if normalized == "" {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		result = append(result, normalized)
	}

	return result
}

// NormalizeClocks cleans a list of "HH:MM" strings, dropping blanks and
// repeats while keeping first-seen order.
func NormalizeClocks(clocks []string) []string {
	return NormalizeStringSlice(clocks, SanitizeSlotText)
}

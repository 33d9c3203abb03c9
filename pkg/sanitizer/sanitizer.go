package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reControlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	reSlotSpacing  = regexp.MustCompile(`\s*-\s*`)
)

func stripControl(s string) string {
	return reControlChars.ReplaceAllString(s, "")
}

func lower(s string) string {
	return strings.ToLower(s)
}

// SanitizePersonName cleans a patient or doctor name. Case and titles are
// kept as typed; doctor lookup compares names exactly.
func SanitizePersonName(input string) string {
	p := Pipeline{
		stripControl,
		TrimAndNormalize,
	}
	return p.Apply(input)
}

func SanitizeEmail(input string) string {
	p := Pipeline{
		stripControl,
		strings.TrimSpace,
		lower,
	}
	return p.Apply(input)
}

// SanitizeSlotText normalizes spacing in a slot or requested time without
// changing which format it is read as.
func SanitizeSlotText(input string) string {
	p := Pipeline{
		stripControl,
		TrimAndNormalize,
		func(s string) string {
			if strings.Contains(s, " at ") {
				return s
			}
			return reSlotSpacing.ReplaceAllString(s, "-")
		},
	}
	return p.Apply(input)
}

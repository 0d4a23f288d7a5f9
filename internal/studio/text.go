package studio

import (
	"regexp"
	"strings"
)

var bulletPrefix = regexp.MustCompile(`(?m)^\s*\*\s+`)

// FormatResponse strips markdown bold markers and leading "* " bullets from model output
func FormatResponse(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "**", "")
	return bulletPrefix.ReplaceAllString(text, "")
}

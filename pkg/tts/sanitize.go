package tts

import (
	"strings"
	"unicode"
)

// FallbackText is spoken when the reply has nothing pronounceable.
const FallbackText = "I'm here to help."

// Sanitize trims and collapses whitespace. Text without any letter or
// digit is replaced with FallbackText.
func Sanitize(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	for _, r := range clean {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return clean
		}
	}
	return FallbackText
}

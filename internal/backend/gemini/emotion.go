package gemini

import "strings"

// CleanEmotion trims the model reply and keeps only ASCII letters,
// so "Joy!!2" becomes "Joy" and "!!!" becomes "".
func CleanEmotion(text string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, strings.TrimSpace(text))
}

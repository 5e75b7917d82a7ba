package logutil

import "strings"

// maxFieldLen bounds how much of a client-supplied value reaches the logs.
const maxFieldLen = 128

// SanitizeForLog strips newlines and control characters from user-provided
// strings so a crafted username cannot forge extra log entries, and caps the
// result at maxFieldLen runes.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	n := 0
	for _, r := range s {
		if n == maxFieldLen {
			result.WriteString("...")
			break
		}
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteRune(' ')
		case r < 32 || r == 127:
			continue
		default:
			result.WriteRune(r)
		}
		n++
	}
	return result.String()
}

// Package xmltext tells which strings XML 1.0 character data can carry.
package xmltext

import "unicode/utf8"

// Safe reports whether s survives an XML round trip unchanged: valid UTF-8
// made only of characters XML 1.0 allows.
func Safe(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == 0x09 || r == 0x0A || r == 0x0D:
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}

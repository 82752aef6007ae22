// Package slug builds URL-safe unique identifiers from display names.
package slug

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxBaseLen = 48

// Make lowercases name, keeps ASCII letters and digits, joins words with '-'
// and appends an 8 character random suffix.
func Make(name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	base := Base(name)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// Base returns the deterministic part of a slug without the suffix.
func Base(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
		if b.Len() >= maxBaseLen {
			break
		}
	}
	out := b.String()
	if len(out) > maxBaseLen {
		out = out[:maxBaseLen]
	}
	return strings.TrimSuffix(out, "-")
}

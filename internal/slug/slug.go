// Package slug normalizes ledger codes, the stable keys posting configuration refers to.
package slug

import (
	"regexp"
	"strings"
)

const maxLen = 40

var reCode = regexp.MustCompile(`^[a-z0-9_]{2,40}$`)

// IsCode reports whether s is a valid ledger code.
func IsCode(s string) bool { return reCode.MatchString(s) }

// FromName derives a code from a display name: lowercase, runs of other
// characters collapse to one '_', trimmed to 40 characters.
// "Student Fees (Tuition)" -> "student_fees_tuition".
func FromName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		isWord := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isWord {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			if b.Len()+1 >= maxLen {
				break
			}
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
		if b.Len() >= maxLen {
			break
		}
	}
	return b.String()
}

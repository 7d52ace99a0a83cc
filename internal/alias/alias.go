// Package alias derives human-searchable name fragments from package names.
package alias

import (
	"strings"
	"unicode"

	"github.com/open-edge-platform/ossa-collector/internal/utils/slice"
)

const minLength = 3

// Derive replaces digits with spaces, splits on whitespace and hyphens and
// keeps tokens of at least three characters, in first-seen order.
// "libfoo2-devel" yields [libfoo devel].
func Derive(name string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return ' '
		}
		return r
	}, name)

	fields := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minLength {
			tokens = append(tokens, f)
		}
	}
	return slice.Dedupe(tokens)
}

// Merge appends extra aliases after derived ones, dropping empties and duplicates.
func Merge(derived []string, extra ...[]string) []string {
	all := append([]string(nil), derived...)
	for _, e := range extra {
		for _, a := range e {
			if a = strings.TrimSpace(a); a != "" {
				all = append(all, a)
			}
		}
	}
	return slice.Dedupe(all)
}

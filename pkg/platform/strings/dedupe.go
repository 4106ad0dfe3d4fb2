// Package strings provides string slice helpers.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and blank entries, trimming whitespace
// from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	return DedupeAndTrimN(values, 0)
}

// DedupeAndTrimN is DedupeAndTrim keeping at most n entries (n <= 0 means
// no cap). User-facing suggestion lists use it to stay short.
//
//	DedupeAndTrimN([]string{" retry ", "retry", "", "check connection", "wait"}, 2)
//	// []string{"retry", "check connection"}
func DedupeAndTrimN(values []string, n int) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if n > 0 && len(result) == n {
			break
		}
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

package utils

import "regexp"

var urlSafePattern = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// IsURLSafe reports whether value can be used as a path segment or query value without escaping.
func IsURLSafe(value string) bool {
	return value != "" && urlSafePattern.MatchString(value)
}

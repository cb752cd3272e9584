package helpers

import "strings"

// CollapseSpaces trims s and replaces every run of whitespace with a single space
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

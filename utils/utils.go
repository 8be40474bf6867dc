// Package utils holds the small string helpers shared by the search
// backends.
package utils

import (
	"fmt"
	"strings"
)

// UrlQuery makes a plain phrase safe for a query-string value.
func UrlQuery(s string) string { return strings.ReplaceAll(s, " ", "+") }

// Str renders a decoded JSON value as a string; nil reads as empty.
func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

package db

import (
	"strings"

	"github.com/mcuadros/go-version"
)

// MAME writes build="0.78 (Dec 25 2003)", only the leading token is a version.
func catalogVersionFromBuild(build string) string {
	fields := strings.Fields(build)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IsOlderCatalog reports whether candidate is strictly older than current.
// Unknown versions never count as older.
func IsOlderCatalog(current string, candidate string) bool {
	current = strings.TrimPrefix(strings.TrimSpace(current), "v")
	candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "v")
	if current == "" || candidate == "" {
		return false
	}
	return version.CompareSimple(candidate, current) < 0
}

package prd

import (
	"regexp"
	"strings"
)

var (
	invalidRepoChars = regexp.MustCompile(`[^a-z0-9-]`)
	repeatedDashes   = regexp.MustCompile(`-+`)
)

const maxRepoNameLen = 100

// SanitizeRepoName converts a project title into a valid GitHub repository
// name: lowercase, dashes for anything non-alphanumeric, collapsed and
// trimmed, at most 100 characters.
func SanitizeRepoName(name string) string {
	name = strings.ToLower(name)
	name = invalidRepoChars.ReplaceAllString(name, "-")
	name = repeatedDashes.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if len(name) > maxRepoNameLen {
		name = name[:maxRepoNameLen]
	}
	if name == "" {
		return "generated-project"
	}
	return name
}

package resolve

import (
	"regexp"
	"strings"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a human-entered name for matching:
// trim, lowercase, collapse internal whitespace. The same normalization is
// applied to reference contractor names when they are seeded, so both sides
// of every comparison go through this function.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	return multiSpaceRe.ReplaceAllString(name, " ")
}

// NormalizeFullName joins a forename/surname pair into the canonical
// "forename surname" form used against Contractor.NormalizedName.
func NormalizeFullName(forename, surname string) string {
	return NormalizeName(forename + " " + surname)
}

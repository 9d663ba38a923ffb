package compiler

import "strings"

// actionKeywords lists the description keywords the compiler recognises
// for an ACTION step's action label, in a fixed priority order so that a
// description matching more than one keyword compiles deterministically
// (§4.3, "Tie-breaks").
var actionKeywords = []string{"email", "file", "slack", "reminder", "analyze", "generate"}

// deriveActionLabel scans description for the first matching keyword in
// actionKeywords order, defaulting to "generic" when none match.
func deriveActionLabel(description string) string {
	lower := strings.ToLower(description)
	for _, kw := range actionKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return "generic"
}

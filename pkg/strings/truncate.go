package strings

import (
	"strings"
)

// DefaultSummaryMaxLen is the default maximum length for one-line summaries
// in logs and table output.
const DefaultSummaryMaxLen = 60

// MinTruncateLen is the minimum maxLen value for TruncateSummary. Smaller
// values would not leave room for content plus "...".
const MinTruncateLen = 4

// TruncateSummary flattens a string to a single line, collapses whitespace
// and truncates it to maxLen characters, appending "..." when shortened.
// Slicing is rune-based so multi-byte characters are never cut in half.
func TruncateSummary(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

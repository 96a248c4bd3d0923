package summarizer

import (
	"regexp"
	"strings"
)

var (
	disclaimerParen   = regexp.MustCompile(`(?i)\(\s*note:[^)]*\)`)
	disclaimerBracket = regexp.MustCompile(`(?i)\[\s*note:[^\]]*\]`)
	summaryLabel      = regexp.MustCompile(`(?i)^\s*(summary|here is a summary[^:]*)\s*:\s*`)
)

// Sanitize strips model disclaimers and leading labels and collapses
// whitespace into a single paragraph.
func Sanitize(s string) string {
	s = disclaimerParen.ReplaceAllString(s, "")
	s = disclaimerBracket.ReplaceAllString(s, "")

	var kept []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "note:") {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
	return summaryLabel.ReplaceAllString(out, "")
}

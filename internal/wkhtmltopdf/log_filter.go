package wkhtmltopdf

import (
	"regexp"
	"strings"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// FilterStderr drops progress bars and status noise from converter stderr.
// Lines containing any of '=', '>', '[' or ']' belong to progress bars such
// as "[====>     ] 40%". The remaining lines are trimmed and joined with
// newlines; the result is empty when nothing is left.
func FilterStderr(chunk string) string {
	lines := lineBreak.Split(chunk, -1)
	kept := lines[:0]

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsAny(line, "=>[]") {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

package summary

import (
	"html"
	"regexp"
	"strings"
)

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

// FormatHTML renders model output for display: **x** becomes <strong>x</strong>
// and runs of lines starting with * become an unordered list. Input is
// escaped first.
func FormatHTML(text string) string {
	text = boldPattern.ReplaceAllString(html.EscapeString(text), "<strong>$1</strong>")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+1)
	inList := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "*") {
			item := "<li>" + strings.TrimSpace(trimmed[1:]) + "</li>"
			if !inList {
				inList = true
				item = "<ul>" + item
			}
			out = append(out, item)
			continue
		}
		if inList {
			inList = false
			line = "</ul>" + line
		}
		out = append(out, line)
	}
	if inList {
		out = append(out, "</ul>")
	}
	return strings.Join(out, "\n")
}

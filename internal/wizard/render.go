package wizard

import (
	"fmt"
	"html"
	"strings"
)

// RenderPost turns collected answers into the HTML post body. It is
// pure and deterministic: the same fields always yield byte-identical
// output. Core lines are always emitted, even with empty values; the
// issues and notes lines only appear when non-empty, and the author
// line is preceded by a blank line.
func RenderPost(fields map[string]string) string {
	product := CategoryName(fields[FieldCategory])

	g := func(key string) string {
		return html.EscapeString(strings.TrimSpace(fields[key]))
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("<b>Community game test (%s)</b>", product))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("<b>Game:</b> %s", g(FieldTitle)))
	lines = append(lines, fmt.Sprintf("<b>Device:</b> %s", g(FieldDevice)))
	lines = append(lines, fmt.Sprintf("<b>%s version:</b> %s", product, g(FieldVersion)))
	lines = append(lines, fmt.Sprintf("<b>Settings:</b> %s", g(FieldConfig)))
	lines = append(lines, fmt.Sprintf("<b>FPS / performance:</b> %s", g(FieldPerf)))

	if issues := g(FieldIssues); issues != "" {
		lines = append(lines, fmt.Sprintf("<b>Issues:</b> %s", issues))
	}

	if extra := g(FieldExtra); extra != "" {
		lines = append(lines, fmt.Sprintf("<b>Notes:</b> %s", extra))
	}

	if author := g(FieldAuthor); author != "" {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("<b>Tested by:</b> %s", author))
	}

	return strings.Join(lines, "\n")
}

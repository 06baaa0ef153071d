package source

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	spaceCollapseRe = regexp.MustCompile(`[\s\p{Zs}]+`)
	stripPolicy     = bluemonday.StrictPolicy()
)

// CleanText removes HTML tags, decodes entities and collapses whitespace.
func CleanText(raw string) string {
	if raw == "" {
		return ""
	}
	text := stripPolicy.Sanitize(raw)
	text = html.UnescapeString(text)
	text = strings.TrimSpace(text)
	return spaceCollapseRe.ReplaceAllString(text, " ")
}

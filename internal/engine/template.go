package engine

import (
	"fmt"
	"regexp"

	"sitewatch/internal/models"
)

var templateToken = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// resolveTemplate substitutes {{field}} tokens with values from the event.
// The metadata keys source, rule_id and timestamp resolve alongside the data
// fields. Unknown tokens are left in place so a misconfigured template is
// visible in the delivered message instead of silently blank.
func resolveTemplate(tmpl string, ev models.Event) string {
	if tmpl == "" {
		return tmpl
	}
	return templateToken.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := templateToken.FindStringSubmatch(tok)[1]
		switch name {
		case "source":
			return ev.Source
		case "rule_id":
			return ev.RuleID
		case "timestamp":
			return ev.Timestamp.Format("2006-01-02 15:04:05")
		}
		if v, ok := ev.Field(name); ok {
			return fmt.Sprintf("%v", v)
		}
		return tok
	})
}

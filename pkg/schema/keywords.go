package schema

import "strings"

var keywordIssueTypes = map[string]string{
	"minLength":        "min_length",
	"maxLength":        "max_length",
	"minimum":          "min_value",
	"maximum":          "max_value",
	"exclusiveMinimum": "min_value",
	"exclusiveMaximum": "max_value",
	"minItems":         "min_length",
	"maxItems":         "max_length",
	"pattern":          "regex",
	"enum":             "picklist",
	"multipleOf":       "multiple_of",
	"const":            "value",
}

// KeywordIssueType maps a JSON Schema keyword onto the issue type the rules
// engine reports for the same check, so errors read the same whichever
// engine produced them. Unknown keywords are snake_cased.
func KeywordIssueType(keyword string) string {
	if mapped, ok := keywordIssueTypes[keyword]; ok {
		return mapped
	}
	if keyword == "" {
		return "schema"
	}
	var b strings.Builder
	for i, r := range keyword {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

var stageAcronyms = map[string]string{
	"rmbg": "Background Removal",
}

// StageLabel turns a stage identifier such as "rmbg" or "point_cloud" into
// a human-readable heading.
func StageLabel(stage string) string {
	stage = strings.ToLower(strings.TrimSpace(stage))
	if stage == "" {
		return ""
	}
	if label, ok := stageAcronyms[stage]; ok {
		return label
	}
	words := strings.FieldsFunc(stage, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	return titleCaser.String(strings.Join(words, " "))
}

// YesNo renders a boolean for table output.
func YesNo(v bool) string {
	return Ternary(v, "yes", "no")
}

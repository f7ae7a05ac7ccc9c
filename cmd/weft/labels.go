package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleLabel turns wire identifiers such as "create-started" into
// "Create Started" for table output.
func titleLabel(value string) string {
	value = strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(value))
	if value == "" {
		return ""
	}
	return cases.Title(language.English).String(value)
}

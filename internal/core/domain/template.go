package domain

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var ErrTemplateVariable = errors.New("undefined template variable")

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// RenderTemplate substitutes {{ name }} placeholders in tmpl with vars.
// Values are inserted as written (fmt.Sprint); quoting is the template
// author's job. Every placeholder must have a value; extra vars are ignored.
func RenderTemplate(tmpl string, vars map[string]any) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			return m
		}
		return fmt.Sprint(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrTemplateVariable, strings.Join(missing, ", "))
	}
	return out, nil
}

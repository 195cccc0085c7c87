package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

// Interpolate replaces every {$.path} token of template with the value found
// at that jsonpath in doc. Tokens that do not resolve are left empty.
func Interpolate(doc map[string]any, template string) string {
	tokens := tokenPattern.FindAllString(template, -1)
	if len(tokens) == 0 {
		return template
	}
	out := template
	for _, token := range tokens {
		tmatch := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(doc, tmatch)
		if err != nil || value == nil {
			out = strings.ReplaceAll(out, token, "")
			continue
		}
		out = strings.ReplaceAll(out, token, fmt.Sprintf("%v", value))
	}
	return out
}

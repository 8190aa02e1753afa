package template

import (
	"regexp"

	"github.com/notify-dispatch/internal/domain"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Render substitutes ${name} placeholders in every text field of the method
// template and returns a new copy; the input is never mutated. Placeholders
// without a matching parameter stay verbatim in the output so the preview
// operation can surface partially-rendered content. Rendering is pure: the
// same template and params always produce the same output.
func Render(mt *domain.MethodTemplate, params map[string]string) *domain.MethodTemplate {
	out := mt.Copy()
	out.Subject = Substitute(out.Subject, params)
	out.Body = Substitute(out.Body, params)
	if out.Button != nil {
		out.Button.Text = Substitute(out.Button.Text, params)
		out.Button.Link = Substitute(out.Button.Link, params)
	}
	return out
}

// Substitute replaces every known ${name} placeholder in s with its parameter
// value, leaving unknown placeholders untouched.
func Substitute(s string, params map[string]string) string {
	if s == "" || len(params) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := params[name]; ok {
			return v
		}
		return match
	})
}

// Params merges recipient- and request-derived parameters into one map.
// Later maps win on key collisions.
func Params(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

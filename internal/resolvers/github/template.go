package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// Endpoint templates not advertised by the repository resource
var (
	repositoryTemplate   = MustParseTemplate("{+api}/repos/{owner}/{repo}")
	tagRefTemplate       = MustParseTemplate("{+api}/repos/{owner}/{repo}/git/ref/tags{/tag}")
	tagRefsTemplate      = MustParseTemplate("{+api}/repos/{owner}/{repo}/git/refs/tags")
	annotatedTagTemplate = MustParseTemplate("{+api}/repos/{owner}/{repo}/git/tags{/sha}")
	commitTemplate       = MustParseTemplate("{+api}/repos/{owner}/{repo}/commits{/ref}")
)

// Template is an RFC 6570 endpoint template such as the branches_url and
// archive_url values returned by the GitHub API.
//
// Templates are validated with uritemplate but expanded here: values keep their
// "/" separators, so a branch named "feature/x" expands {/branch} to
// "/feature/x" instead of "/feature%2Fx".
type Template struct {
	raw  string
	vars []string
}

// ParseTemplate validates raw and records its variable names
func ParseTemplate(raw string) (Template, error) {
	t, err := uritemplate.New(raw)
	if err != nil {
		return Template{}, fmt.Errorf("invalid endpoint template %q: %w", raw, err)
	}
	return Template{raw: raw, vars: t.Varnames()}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error
func MustParseTemplate(raw string) Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the raw template
func (t Template) String() string {
	return t.raw
}

// Varnames returns the variable names in order of appearance
func (t Template) Varnames() []string {
	return append([]string(nil), t.vars...)
}

// Has reports whether every name is a variable of the template
func (t Template) Has(names ...string) bool {
	for _, name := range names {
		found := false
		for _, v := range t.vars {
			if v == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Expand substitutes values into the template. Variables missing from values
// expand to nothing, so "{/ref}" without a ref disappears entirely.
func (t Template) Expand(values map[string]string) string {
	var b strings.Builder
	rest := t.raw
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		b.WriteString(expandExpression(rest[open+1:open+end], values))
		rest = rest[open+end+1:]
	}
	return b.String()
}

func expandExpression(expr string, values map[string]string) string {
	op := byte(0)
	if expr != "" && strings.IndexByte("+#./;?&", expr[0]) >= 0 {
		op = expr[0]
		expr = expr[1:]
	}

	type pair struct{ name, value string }
	var defined []pair
	for _, name := range strings.Split(expr, ",") {
		name = strings.TrimSuffix(name, "*")
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		if value, ok := values[name]; ok {
			defined = append(defined, pair{name, value})
		}
	}
	if len(defined) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range defined {
		switch op {
		case '+':
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(p.value)
		case '#':
			if i == 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte(',')
			}
			b.WriteString(p.value)
		case '/', '.':
			b.WriteByte(op)
			b.WriteString(escapePath(p.value))
		case ';':
			b.WriteString(";" + p.name)
			if p.value != "" {
				b.WriteString("=" + url.QueryEscape(p.value))
			}
		case '?', '&':
			if i == 0 {
				b.WriteByte(op)
			} else {
				b.WriteByte('&')
			}
			b.WriteString(p.name + "=" + url.QueryEscape(p.value))
		default:
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapePath(p.value))
		}
	}
	return b.String()
}

// escapePath escapes each "/" separated element of value
func escapePath(value string) string {
	parts := strings.Split(value, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

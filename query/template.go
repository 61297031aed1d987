package query

import "strings"

// Variable is one named placeholder occurrence. Start is the byte offset of
// the leading ':' in the source text and End is Start+len(Name).
type Variable struct {
	Name  string
	Path  []string
	Start int
	End   int
}

// Key returns the top-level lookup key of the variable.
func (v Variable) Key() string {
	return v.Path[0]
}

// Nested reports whether the variable navigates into a nested value.
func (v Variable) Nested() bool {
	return len(v.Path) > 1
}

// Template is a parsed statement: the rewritten text, with one positional
// marker per placeholder, and the variables in binding order. A Template is
// immutable and safe to share.
type Template struct {
	source  string
	text    string
	dialect string
	vars    []Variable
}

// Text returns the rewritten statement text.
func (t *Template) Text() string {
	return t.text
}

// Source returns the text the template was parsed from.
func (t *Template) Source() string {
	return t.source
}

// Dialect returns the name of the dialect the markers were emitted for.
func (t *Template) Dialect() string {
	return t.dialect
}

// Len returns the number of positional parameters.
func (t *Template) Len() int {
	return len(t.vars)
}

// Variable returns the i-th variable.
func (t *Template) Variable(i int) Variable {
	return t.vars[i]
}

// Variables returns a copy of the variables in binding order.
func (t *Template) Variables() []Variable {
	out := make([]Variable, len(t.vars))
	for i, v := range t.vars {
		v.Path = append([]string(nil), v.Path...)
		out[i] = v
	}
	return out
}

// Names returns the distinct top-level keys referenced by the template.
func (t *Template) Names() []string {
	seen := make(map[string]struct{}, len(t.vars))
	var names []string
	for _, v := range t.vars {
		if _, ok := seen[v.Key()]; ok {
			continue
		}
		seen[v.Key()] = struct{}{}
		names = append(names, v.Key())
	}
	return names
}

func (t *Template) String() string {
	var sb strings.Builder
	sb.WriteString(t.text)
	if len(t.vars) > 0 {
		sb.WriteString(" [")
		for i, v := range t.vars {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.Name)
		}
		sb.WriteString("]")
	}
	return sb.String()
}

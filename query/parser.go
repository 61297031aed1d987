// Package query parses statement templates with named placeholders into
// positional statements.
//
// A placeholder is a ':' followed by identifier characters (letters, digits,
// '_' and '.'), for example :id or :user.address.city. Placeholders are not
// recognized inside quoted literals and identifiers, comments or
// $tag$ ... $tag$ blocks. "\:" produces a literal colon and "::" is left
// untouched.
package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/Konsultn-Engineering/stmtbind/dialect"
)

// ErrMalformedTemplate is returned for unterminated literals, comments or
// blocks and for placeholders with empty path segments.
var ErrMalformedTemplate = errors.NewKind("malformed template at offset %d: %s")

type options struct {
	dialect dialect.Dialect
}

// Option configures Parse.
type Option func(*options)

// WithDialect selects the dialect whose positional markers are emitted and
// whose quoting rules apply. The default is MySQL ("?").
func WithDialect(d dialect.Dialect) Option {
	return func(o *options) {
		if d != nil {
			o.dialect = d
		}
	}
}

type scanState uint8

const (
	stateNormal scanState = iota
	stateQuoted
	stateDollar
	stateLineComment
	stateBlockComment
)

// Parse scans text and returns the rewritten template. Parsing is pure: the
// same input always yields the same template.
func Parse(text string, opts ...Option) (*Template, error) {
	o := options{dialect: dialect.NewMySQLDialect()}
	for _, opt := range opts {
		opt(&o)
	}

	p := parser{src: text, d: o.dialect}
	p.out.Grow(len(text))
	if err := p.run(); err != nil {
		return nil, err
	}
	return &Template{
		source:  text,
		text:    p.out.String(),
		dialect: o.dialect.Name(),
		vars:    p.vars,
	}, nil
}

type parser struct {
	src   string
	d     dialect.Dialect
	out   strings.Builder
	vars  []Variable
	state scanState
	// Region bookkeeping for error reporting, quotes and dollar blocks.
	regionStart int
	quote       byte
	escapes     bool
	marker      string
}

func (p *parser) run() error {
	i := 0
	for i < len(p.src) {
		switch p.state {
		case stateQuoted:
			i = p.scanQuoted(i)
		case stateDollar:
			i = p.scanUntil(i, p.marker)
		case stateLineComment:
			i = p.scanUntil(i, "\n")
		case stateBlockComment:
			i = p.scanUntil(i, "*/")
		default:
			next, err := p.scanNormal(i)
			if err != nil {
				return err
			}
			i = next
		}
	}
	switch p.state {
	case stateQuoted:
		if p.quote == '`' {
			return ErrMalformedTemplate.New(p.regionStart, "unterminated quoted identifier")
		}
		return ErrMalformedTemplate.New(p.regionStart, "unterminated quoted literal")
	case stateDollar:
		return ErrMalformedTemplate.New(p.regionStart, "unterminated "+p.marker+" block")
	case stateBlockComment:
		return ErrMalformedTemplate.New(p.regionStart, "unterminated comment")
	}
	return nil
}

func (p *parser) scanNormal(i int) (int, error) {
	c := p.src[i]
	switch c {
	case '\\':
		if p.peek(i+1) == ':' {
			p.out.WriteByte(':')
			return i + 2, nil
		}
	case '\'', '"', '`':
		p.state = stateQuoted
		p.regionStart = i
		p.quote = c
		p.escapes = c != '`' && (p.d.BackslashEscapes() || (c == '\'' && p.escapePrefix(i)))
	case '-':
		if p.peek(i+1) == '-' {
			p.state = stateLineComment
			p.regionStart = i
			p.out.WriteString("--")
			return i + 2, nil
		}
	case '/':
		if p.peek(i+1) == '*' {
			p.state = stateBlockComment
			p.regionStart = i
			p.out.WriteString("/*")
			return i + 2, nil
		}
	case '$':
		if i > 0 && isIdentByte(p.src[i-1]) {
			break
		}
		if marker, ok := dollarMarker(p.src, i); ok {
			p.out.WriteString(marker)
			p.state = stateDollar
			p.regionStart = i
			p.marker = marker
			return i + len(marker), nil
		}
	case ':':
		if p.peek(i+1) == ':' {
			p.out.WriteString("::")
			return i + 2, nil
		}
		return p.placeholder(i)
	}
	p.out.WriteByte(c)
	return i + 1, nil
}

func (p *parser) peek(i int) byte {
	if i < len(p.src) {
		return p.src[i]
	}
	return 0
}

// escapePrefix reports whether the quote at i opens an E'...' literal.
func (p *parser) escapePrefix(i int) bool {
	if i == 0 || (p.src[i-1] != 'E' && p.src[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentByte(p.src[i-2])
}

// scanQuoted copies a quoted literal or identifier. A doubled quote stays
// inside the region, as does a backslash-escaped character when the region
// honours backslash escapes.
func (p *parser) scanQuoted(i int) int {
	c := p.src[i]
	switch {
	case p.escapes && c == '\\' && i+1 < len(p.src):
		p.out.WriteString(p.src[i : i+2])
		return i + 2
	case c == p.quote && p.peek(i+1) == p.quote:
		p.out.WriteByte(c)
		p.out.WriteByte(c)
		return i + 2
	case c == p.quote:
		p.state = stateNormal
	}
	p.out.WriteByte(c)
	return i + 1
}

// scanUntil copies text up to and including end, then returns to the normal
// state. Without end the rest of the input is copied and the state stays.
func (p *parser) scanUntil(i int, end string) int {
	n := strings.Index(p.src[i:], end)
	if n == -1 {
		p.out.WriteString(p.src[i:])
		if p.state == stateLineComment {
			p.state = stateNormal
		}
		return len(p.src)
	}
	n += i + len(end)
	p.out.WriteString(p.src[i:n])
	p.state = stateNormal
	return n
}

// dollarMarker reports whether a $tag$ marker starts at i. The tag is any
// run of characters other than whitespace and '$', possibly empty, but may
// not start with a digit so that positional $1 markers stay plain text.
func dollarMarker(s string, i int) (string, bool) {
	j := i + 1
	if j < len(s) && s[j] >= '0' && s[j] <= '9' {
		return "", false
	}
	for j < len(s) {
		r, w := utf8.DecodeRuneInString(s[j:])
		if r == '$' {
			return s[i : j+1], true
		}
		if unicode.IsSpace(r) {
			return "", false
		}
		j += w
	}
	return "", false
}

// isIdentByte reports whether b can appear inside an unquoted identifier.
// Bytes of multi-byte runes count as identifier bytes.
func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || b >= utf8.RuneSelf ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// placeholder consumes a placeholder starting at the ':' at offset start.
// A ':' not followed by an identifier is copied as text.
func (p *parser) placeholder(start int) (int, error) {
	j := start + 1
	for j < len(p.src) {
		r, w := utf8.DecodeRuneInString(p.src[j:])
		if !isIdentRune(r) {
			break
		}
		j += w
	}
	name := p.src[start+1 : j]
	// A trailing '.' ends a sentence, not a path.
	trimmed := strings.TrimRight(name, ".")
	if trimmed == "" || trimmed[0] == '.' {
		if trimmed == "" {
			p.out.WriteByte(':')
			return start + 1, nil
		}
		return 0, ErrMalformedTemplate.New(start, "empty path segment in :"+trimmed)
	}

	path := strings.Split(trimmed, ".")
	for _, seg := range path {
		if seg == "" {
			return 0, ErrMalformedTemplate.New(start, "empty path segment in :"+trimmed)
		}
	}

	p.vars = append(p.vars, Variable{
		Name:  trimmed,
		Path:  path,
		Start: start,
		End:   start + len(trimmed),
	})
	p.out.WriteString(p.d.Placeholder(len(p.vars)))
	return start + 1 + len(trimmed), nil
}

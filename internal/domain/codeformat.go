package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EntityType tags which kind of document a code format and its sequence
// counters apply to.
type EntityType string

const (
	EntityQuote         EntityType = "quote"
	EntityInvoice       EntityType = "invoice"
	EntityAuthorization EntityType = "authorization"
	EntityIntervention  EntityType = "intervention"
)

// ParseEntityType validates an entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch et := EntityType(s); et {
	case EntityQuote, EntityInvoice, EntityAuthorization, EntityIntervention:
		return et, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
}

// defaultTemplates are the built-in fallbacks used when neither a
// tenant-specific nor a global format is configured.
var defaultTemplates = map[EntityType]string{
	EntityQuote:         "QT-{YEAR}-{MONTH}-{SEQUENCE:4}",
	EntityInvoice:       "INV-{YEAR}-{MONTH}-{SEQUENCE:4}",
	EntityAuthorization: "OT-{YEAR}-{MONTH}-{SEQUENCE:4}",
	EntityIntervention:  "INT-{YEAR}-{MONTH}-{SEQUENCE:4}",
}

// DefaultTemplate returns the built-in template for an entity type.
// A missing default is a configuration bug, reported as
// FormatResolutionError by the resolver.
func DefaultTemplate(et EntityType) (Template, error) {
	raw, ok := defaultTemplates[et]
	if !ok {
		return Template{}, &FormatResolutionError{EntityType: et}
	}
	return ParseTemplate(raw)
}

// CodeFormat is tenant configuration for document code generation.
// An empty TenantID marks a global format shared by all tenants.
type CodeFormat struct {
	ID         string
	TenantID   string
	EntityType EntityType
	Template   string
	Active     bool
	CreatedAt  time.Time
}

const defaultSequenceWidth = 4

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenYear
	tokenMonth
	tokenSequence
)

type token struct {
	kind    tokenKind
	literal string
	width   int // sequence zero-padding
}

// Template is a parsed code format. Representing formats as an explicit
// token list keeps rendering and round-trip parsing in one place;
// already issued codes stay opaque strings and are never re-validated
// against the current template.
type Template struct {
	raw    string
	tokens []token
}

// Raw returns the template source string.
func (t Template) Raw() string { return t.raw }

// ParseTemplate compiles a template string into its token form.
// Recognised placeholders are {YEAR}, {MONTH}, {SEQUENCE} and
// {SEQUENCE:N}; anything else between braces is rejected.
func ParseTemplate(raw string) (Template, error) {
	if raw == "" {
		return Template{}, fmt.Errorf("%w: template is empty", ErrInvalidTemplate)
	}

	tmpl := Template{raw: raw}
	rest := raw
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return Template{}, fmt.Errorf("%w: unmatched %q in %q", ErrInvalidTemplate, "}", raw)
			}
			tmpl.tokens = append(tmpl.tokens, token{kind: tokenLiteral, literal: rest})
			break
		}
		if open > 0 {
			lit := rest[:open]
			if strings.IndexByte(lit, '}') >= 0 {
				return Template{}, fmt.Errorf("%w: unmatched %q in %q", ErrInvalidTemplate, "}", raw)
			}
			tmpl.tokens = append(tmpl.tokens, token{kind: tokenLiteral, literal: lit})
		}
		rest = rest[open+1:]

		closing := strings.IndexByte(rest, '}')
		if closing < 0 {
			return Template{}, fmt.Errorf("%w: unclosed placeholder in %q", ErrInvalidTemplate, raw)
		}
		name := rest[:closing]
		rest = rest[closing+1:]

		tok, err := parsePlaceholder(name)
		if err != nil {
			return Template{}, fmt.Errorf("%w: %v in %q", ErrInvalidTemplate, err, raw)
		}
		tmpl.tokens = append(tmpl.tokens, tok)
	}

	return tmpl, nil
}

func parsePlaceholder(name string) (token, error) {
	switch {
	case name == "YEAR":
		return token{kind: tokenYear}, nil
	case name == "MONTH":
		return token{kind: tokenMonth}, nil
	case name == "SEQUENCE":
		return token{kind: tokenSequence, width: defaultSequenceWidth}, nil
	case strings.HasPrefix(name, "SEQUENCE:"):
		width, err := strconv.Atoi(strings.TrimPrefix(name, "SEQUENCE:"))
		if err != nil || width < 1 || width > 12 {
			return token{}, fmt.Errorf("bad sequence width %q", name)
		}
		return token{kind: tokenSequence, width: width}, nil
	}
	return token{}, fmt.Errorf("unknown placeholder %q", name)
}

// Render substitutes year, zero-padded month and zero-padded sequence
// into the template. A sequence wider than its padding keeps all digits.
func (t Template) Render(year, month int, seq int64) string {
	var b strings.Builder
	for _, tok := range t.tokens {
		switch tok.kind {
		case tokenLiteral:
			b.WriteString(tok.literal)
		case tokenYear:
			fmt.Fprintf(&b, "%04d", year)
		case tokenMonth:
			fmt.Fprintf(&b, "%02d", month)
		case tokenSequence:
			fmt.Fprintf(&b, "%0*d", tok.width, seq)
		}
	}
	return b.String()
}

// CodeParts are the values recovered from a generated code string.
type CodeParts struct {
	Year     int
	Month    int
	Sequence int64
}

// ParseCode recovers the year/month/sequence a code was rendered from.
// It only works for codes issued under this exact template; legacy codes
// from earlier formats will simply not match.
func (t Template) ParseCode(code string) (CodeParts, error) {
	var pattern strings.Builder
	pattern.WriteByte('^')
	for _, tok := range t.tokens {
		switch tok.kind {
		case tokenLiteral:
			pattern.WriteString(regexp.QuoteMeta(tok.literal))
		case tokenYear:
			pattern.WriteString(`(\d{4})`)
		case tokenMonth:
			pattern.WriteString(`(\d{2})`)
		case tokenSequence:
			pattern.WriteString(`(\d+)`)
		}
	}
	pattern.WriteByte('$')

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return CodeParts{}, fmt.Errorf("compiling template pattern: %w", err)
	}
	match := re.FindStringSubmatch(code)
	if match == nil {
		return CodeParts{}, fmt.Errorf("code %q does not match template %q", code, t.raw)
	}

	var parts CodeParts
	group := 1
	for _, tok := range t.tokens {
		if tok.kind == tokenLiteral {
			continue
		}
		v, err := strconv.ParseInt(match[group], 10, 64)
		if err != nil {
			return CodeParts{}, fmt.Errorf("parsing %q: %w", match[group], err)
		}
		switch tok.kind {
		case tokenYear:
			parts.Year = int(v)
		case tokenMonth:
			parts.Month = int(v)
		case tokenSequence:
			parts.Sequence = v
		}
		group++
	}
	return parts, nil
}

// Period returns the year-month bucket used to scope sequence counters,
// e.g. "2025-01".
func Period(at time.Time) string {
	return fmt.Sprintf("%04d-%02d", at.Year(), int(at.Month()))
}

package render

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

// ValueTypeOf picks the escape value type: strings carrying special symbols
// are escaped as regex, everything else with def.
func ValueTypeOf(v tokens.Value, def escape.ValueType) escape.ValueType {
	if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
		return escape.RegexValue
	}
	return def
}

// Literal formats a scalar: numbers verbatim, strings escaped with vt and
// wrapped in quote.
func Literal(esc escape.Manager, v tokens.Value, vt escape.ValueType, quote string) string {
	switch t := v.(type) {
	case tokens.Number:
		return t.String()
	case tokens.String:
		return quote + esc.Escape(string(t), vt) + quote
	case tokens.StrValue:
		return quote + esc.Escape(t.Text, vt) + quote
	case tokens.List:
		panic("render: Literal called with a list value")
	default:
		panic(fmt.Sprintf("render: unknown value %T", v))
	}
}

// QuotedLiteral quotes numbers too.
func QuotedLiteral(esc escape.Manager, v tokens.Value, vt escape.ValueType, quote string) string {
	if n, ok := v.(tokens.Number); ok {
		return quote + n.String() + quote
	}
	return Literal(esc, v, vt, quote)
}

// SeverityScale maps the generic severity onto a platform scale.
type SeverityScale struct {
	Critical, High, Medium, Low string
}

// Lookup fails closed: an unknown or unmapped severity gets the lowest
// level the scale defines.
func (s SeverityScale) Lookup(sev query.Severity) string {
	var v string
	switch sev {
	case query.SeverityCritical:
		v = s.Critical
	case query.SeverityHigh:
		v = s.High
	case query.SeverityMedium:
		v = s.Medium
	case query.SeverityLow:
		v = s.Low
	}
	if v != "" {
		return v
	}
	for _, l := range []string{s.Low, s.Medium, s.High, s.Critical} {
		if l != "" {
			return l
		}
	}
	return ""
}

// Annex renders unsupported functions as a comment block appended after the query.
func Annex(notSupported []string, commentPrefix, commentSuffix string) string {
	if len(notSupported) == 0 {
		return ""
	}
	line := func(s string) string {
		if commentSuffix != "" {
			return commentPrefix + s + commentSuffix
		}
		return commentPrefix + " " + s
	}
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(line("The following functions are not supported by the platform and were not translated:"))
	for _, fn := range notSupported {
		b.WriteString("\n")
		b.WriteString(line(fn))
	}
	return b.String()
}

// GlobToRegex converts an inner-wildcard value to a regex body: pieces are
// escaped as re_value and '*' becomes ".*".
func GlobToRegex(esc escape.Manager, text string) string {
	parts := strings.Split(text, "*")
	for i, p := range parts {
		parts[i] = esc.Escape(p, escape.RegexValue)
	}
	return strings.Join(parts, ".*")
}

// Options are applied by every platform renderer constructor.
type Options struct {
	Logger *zap.SugaredLogger
	// ForceStrict turns on strict mapping for platforms that default to lenient.
	ForceStrict bool
}

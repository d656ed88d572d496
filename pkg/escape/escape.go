// Package escape applies per-value-type regex substitution rules to literal
// values before they are written into a target dialect.
package escape

import (
	"regexp"
)

// ValueType selects which rules apply to a value.
type ValueType string

const (
	Value             ValueType = "value"
	RegexValue        ValueType = "re_value"
	ContainsValue     ValueType = "contains_value"
	DoubleQuotesValue ValueType = "d_q_value"
	SingleQuotesValue ValueType = "s_q_value"
	NoQuotesValue     ValueType = "no_q_value"
)

// Rule is one substitution. Reverse is optional; when present Unescape uses it.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string

	Reverse            *regexp.Regexp
	ReverseReplacement string
}

// SymbolRule prefixes each of symbols with escapeChar. The inverse strips
// escapeChar in front of any of those symbols.
func SymbolRule(symbols, escapeChar string) Rule {
	class := charClass(symbols)
	return Rule{
		Pattern:            regexp.MustCompile("(" + class + ")"),
		Replacement:        escapeChar + "${1}",
		Reverse:            regexp.MustCompile(regexp.QuoteMeta(escapeChar) + "(" + class + ")"),
		ReverseReplacement: "${1}",
	}
}

func charClass(symbols string) string {
	b := make([]byte, 0, 2*len(symbols)+2)
	b = append(b, '[')
	for i := 0; i < len(symbols); i++ {
		c := symbols[i]
		if isPunct(c) {
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	return string(append(b, ']'))
}

func isPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') || (c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}

// ReplaceRule is a one-way substitution such as doubling single quotes.
func ReplaceRule(pattern, replacement string) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Replacement: replacement}
}

// Manager holds the escape map of one dialect. Zero value escapes nothing.
type Manager struct {
	rules map[ValueType][]Rule
}

func NewManager(rules map[ValueType][]Rule) Manager {
	cp := make(map[ValueType][]Rule, len(rules))
	for k, v := range rules {
		cp[k] = append([]Rule(nil), v...)
	}
	return Manager{rules: cp}
}

// Escape applies every rule registered for vt, in order.
func (m Manager) Escape(value string, vt ValueType) string {
	for _, r := range m.rules[vt] {
		value = r.Pattern.ReplaceAllString(value, r.Replacement)
	}
	return value
}

// Unescape reverses Escape for rules that carry an inverse, last rule first.
func (m Manager) Unescape(value string, vt ValueType) string {
	rules := m.rules[vt]
	for i := len(rules) - 1; i >= 0; i-- {
		r := rules[i]
		if r.Reverse == nil {
			continue
		}
		value = r.Reverse.ReplaceAllString(value, r.ReverseReplacement)
	}
	return value
}

// Has reports whether the manager has rules for vt.
func (m Manager) Has(vt ValueType) bool {
	return len(m.rules[vt]) > 0
}

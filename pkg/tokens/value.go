package tokens

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a closed union: Number, String, StrValue or List.
// Switches over Value should handle all four and treat anything else as a bug.
type Value interface {
	isValue()
	String() string
}

// Number keeps the numeric lexeme exactly as written ("007",
// "12345678901234567891"); renderers emit it verbatim.
type Number string

// String is a plain string value without special symbols.
type String string

// StrValue is a string value that remembers whether it carries
// wildcard/regex symbols that must survive into the target dialect.
type StrValue struct {
	Text           string
	HasSpecSymbols bool
}

// List is an ordered multi-value; elements are scalars.
type List []Value

func (Number) isValue()   {}
func (String) isValue()   {}
func (StrValue) isValue() {}
func (List) isValue()     {}

func (n Number) String() string { return string(n) }

// IsInteger reports whether the lexeme has no fraction or exponent.
func (n Number) IsInteger() bool {
	return !strings.ContainsAny(string(n), ".eE")
}
func (s String) String() string { return string(s) }
func (s StrValue) String() string {
	return s.Text
}

func (l List) String() string {
	parts := make([]string, 0, len(l))
	for _, v := range l {
		parts = append(parts, v.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Text returns the literal text of a scalar value.
func Text(v Value) string {
	switch t := v.(type) {
	case Number:
		return t.String()
	case String:
		return string(t)
	case StrValue:
		return t.Text
	case List:
		return t.String()
	default:
		panic(fmt.Sprintf("tokens: unknown value %T", v))
	}
}

// Scalars flattens v into its scalar members.
func Scalars(v Value) []Value {
	switch t := v.(type) {
	case List:
		out := make([]Value, 0, len(t))
		for _, it := range t {
			out = append(out, Scalars(it)...)
		}
		return out
	case Number, String, StrValue:
		return []Value{t}
	default:
		panic(fmt.Sprintf("tokens: unknown value %T", v))
	}
}

// IsNumber reports whether v is a numeric scalar.
func IsNumber(v Value) bool {
	_, ok := v.(Number)
	return ok
}

// ParseNumber validates a numeric literal and keeps its text.
func ParseNumber(s string) (Number, error) {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "", err
	}
	return Number(s), nil
}

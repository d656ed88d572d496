package tokens

import (
	"fmt"
	"strings"
)

// OperatorType là phép so sánh của một FieldValue/Keyword.
type OperatorType int

const (
	OpEq OperatorType = iota
	OpNotEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpRegex
	OpNotRegex
	OpIsNone    // field không tồn tại / null
	OpIsNotNone // field tồn tại
	OpKeyword   // full-text search, không có field
)

var operatorNames = map[OperatorType]string{
	OpEq:          "eq",
	OpNotEq:       "neq",
	OpLt:          "lt",
	OpLte:         "lte",
	OpGt:          "gt",
	OpGte:         "gte",
	OpContains:    "contains",
	OpNotContains: "not_contains",
	OpStartsWith:  "startswith",
	OpEndsWith:    "endswith",
	OpRegex:       "re",
	OpNotRegex:    "not_re",
	OpIsNone:      "is_none",
	OpIsNotNone:   "is_not_none",
	OpKeyword:     "keywords",
}

func (o OperatorType) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return fmt.Sprintf("OperatorType(%d)", int(o))
}

// Negated reports whether the operator excludes matches (list values join with AND).
func (o OperatorType) Negated() bool {
	switch o {
	case OpNotEq, OpNotContains, OpNotRegex:
		return true
	}
	return false
}

// Wildcards records boundary wildcards stripped by the tokenizer.
type Wildcards uint8

const (
	WildcardLeading Wildcards = 1 << iota
	WildcardTrailing
)

// Field is a field reference as written in the source dialect. Generic names
// are attached per source mapping id once mappings are resolved.
type Field struct {
	SourceName string
	generic    map[string]string
}

func NewField(name string) Field {
	return Field{SourceName: name}
}

// WithGenericName returns a copy of f carrying the generic name for sourceID.
func (f Field) WithGenericName(sourceID, generic string) Field {
	m := make(map[string]string, len(f.generic)+1)
	for k, v := range f.generic {
		m[k] = v
	}
	m[sourceID] = generic
	f.generic = m
	return f
}

// GenericName returns the generic name for sourceID, or "" if none was attached.
func (f Field) GenericName(sourceID string) string {
	return f.generic[sourceID]
}

type Kind int

const (
	KindFieldValue Kind = iota
	KindKeyword
	KindIdentifier
)

// IdentifierKind phân loại token điều khiển.
type IdentifierKind int

const (
	IdentAnd IdentifierKind = iota
	IdentOr
	IdentNot
	IdentLParen
	IdentRParen
	IdentOperator
)

func (k IdentifierKind) String() string {
	switch k {
	case IdentAnd:
		return "AND"
	case IdentOr:
		return "OR"
	case IdentNot:
		return "NOT"
	case IdentLParen:
		return "("
	case IdentRParen:
		return ")"
	case IdentOperator:
		return "operator"
	default:
		return fmt.Sprintf("IdentifierKind(%d)", int(k))
	}
}

// FieldValue: field <op> value(s).
type FieldValue struct {
	Field     Field
	Operator  OperatorType
	Value     Value
	Wildcards Wildcards
}

// Keyword: free-text value without a field.
type Keyword struct {
	Operator  OperatorType
	Value     Value
	Wildcards Wildcards
}

// Identifier: logical operator, parenthesis or a raw operator.
type Identifier struct {
	Kind     IdentifierKind
	Operator OperatorType // only for IdentOperator
}

// Token is the tagged union produced by tokenizers. Exactly one of the
// pointers matches Kind.
type Token struct {
	Kind       Kind
	FieldValue *FieldValue
	Keyword    *Keyword
	Identifier *Identifier
}

func NewFieldValue(fv FieldValue) Token {
	return Token{Kind: KindFieldValue, FieldValue: &fv}
}

func NewKeyword(kw Keyword) Token {
	return Token{Kind: KindKeyword, Keyword: &kw}
}

func NewIdentifier(kind IdentifierKind) Token {
	return Token{Kind: KindIdentifier, Identifier: &Identifier{Kind: kind}}
}

var (
	And    = NewIdentifier(IdentAnd)
	Or     = NewIdentifier(IdentOr)
	Not    = NewIdentifier(IdentNot)
	LParen = NewIdentifier(IdentLParen)
	RParen = NewIdentifier(IdentRParen)
)

// Is reports whether t is the identifier kind k.
func (t Token) Is(k IdentifierKind) bool {
	return t.Kind == KindIdentifier && t.Identifier != nil && t.Identifier.Kind == k
}

// IsLeaf: FieldValue hoặc Keyword.
func (t Token) IsLeaf() bool {
	return t.Kind == KindFieldValue || t.Kind == KindKeyword
}

func (t Token) String() string {
	switch t.Kind {
	case KindFieldValue:
		fv := t.FieldValue
		return fmt.Sprintf("%s %s %s", fv.Field.SourceName, fv.Operator, fv.Value)
	case KindKeyword:
		return fmt.Sprintf("%s %s", t.Keyword.Operator, t.Keyword.Value)
	default:
		return t.Identifier.Kind.String()
	}
}

// Format renders a token slice for diagnostics and tests.
func Format(ts []Token) string {
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " ")
}

// FieldNames returns distinct source field names in first-seen order.
func FieldNames(ts []Token) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range ts {
		if t.Kind != KindFieldValue {
			continue
		}
		name := t.FieldValue.Field.SourceName
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

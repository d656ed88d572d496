// Package axon renders LogRhythm Axon search queries. Axon uses
// strict mapping: unmapped fields are searched in the raw message.
package axon

import (
	"io/fs"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const (
	Name            = "logrhythm_axon"
	RawMessageField = "general_information.raw_message"
)

// Escape: string literals escape backslash and quote; regex values escape
// the regex metacharacters.
var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.Value:      {escape.SymbolRule(`\"`, `\`)},
	escape.RegexValue: {escape.SymbolRule(`\.^$|?*+()[]{}`, `\`)},
})

// Dialect renders Axon comparisons.
type Dialect struct{}

func str(v tokens.Value) string {
	return `"` + Escape.Escape(tokens.Text(v), escape.Value) + `"`
}

func re(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func (d Dialect) Scalar(field string, op tokens.OperatorType, v tokens.Value) (string, error) {
	if field == "" {
		field = RawMessageField
		if op == tokens.OpKeyword || op == tokens.OpEq {
			op = tokens.OpContains
		}
	}
	if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols && (op == tokens.OpEq || op == tokens.OpNotEq) {
		m := field + " matches " + re("^"+render.GlobToRegex(Escape, sv.Text)+"$")
		if op == tokens.OpNotEq {
			return "NOT " + m, nil
		}
		return m, nil
	}
	switch op {
	case tokens.OpEq:
		return field + " = " + str(v), nil
	case tokens.OpNotEq:
		if tokens.IsNumber(v) {
			return field + " != " + tokens.Text(v), nil
		}
		return field + " != " + str(v), nil
	case tokens.OpLt, tokens.OpLte, tokens.OpGt, tokens.OpGte:
		sym := map[tokens.OperatorType]string{tokens.OpLt: "<", tokens.OpLte: "<=", tokens.OpGt: ">", tokens.OpGte: ">="}[op]
		if tokens.IsNumber(v) {
			return field + " " + sym + " " + tokens.Text(v), nil
		}
		return field + " " + sym + " " + str(v), nil
	case tokens.OpContains:
		return contains(field, v)
	case tokens.OpNotContains:
		s, err := contains(field, v)
		if err != nil {
			return "", err
		}
		return "NOT " + s, nil
	case tokens.OpStartsWith:
		return field + " matches " + re("^"+Escape.Escape(tokens.Text(v), escape.RegexValue)+".*"), nil
	case tokens.OpEndsWith:
		return field + " matches " + re(".*"+Escape.Escape(tokens.Text(v), escape.RegexValue)+"$"), nil
	case tokens.OpRegex:
		return field + " matches " + re(tokens.Text(v)), nil
	case tokens.OpNotRegex:
		return "NOT " + field + " matches " + re(tokens.Text(v)), nil
	}
	return "", &render.UnsupportedConstructError{Platform: Name, Construct: op.String() + " on field " + field, Tier: render.Hard}
}

// contains rewrites regex-like values ("a|b*c") into CONTAINS chains;
// anything beyond alternation and '*' cannot be expressed.
func contains(field string, v tokens.Value) (string, error) {
	text := tokens.Text(v)
	sv, special := v.(tokens.StrValue)
	if !(special && sv.HasSpecSymbols) && !strings.Contains(text, "|") {
		return field + " CONTAINS " + str(v), nil
	}
	if render.IsComplexRegex(text) {
		return "", &render.UnsupportedRegexError{Platform: Name, Field: field, Value: text}
	}
	return render.AlternationContains(text, "OR", "AND", func(p string) string {
		return field + " CONTAINS " + str(tokens.String(p))
	}), nil
}

func (d Dialect) In(field string, values tokens.List) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
			return "", &render.UnsupportedConstructError{Platform: Name, Construct: "wildcard in list", Tier: render.Soft}
		}
		parts = append(parts, str(v))
	}
	return field + " IN [" + strings.Join(parts, ", ") + "]", nil
}

// listDialect falls back to OR chains when a list carries wildcards.
type listDialect struct{ Dialect }

func (d listDialect) In(field string, values tokens.List) (string, error) {
	s, err := d.Dialect.In(field, values)
	if err == nil {
		return s, nil
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		p, err := d.Scalar(field, tokens.OpEq, v)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.ValueFormatter("field"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

// prefix narrows the log source type by the product hint.
func prefix(sig mapping.LogSourceSignature, meta *query.MetaInfo) string {
	product := "anything"
	if p := meta.ParsedLogSources["product"]; len(p) > 0 {
		product = p[0]
	}
	return sig.String() + " CONTAINS " + product
}

func NewRender(repo *mapping.Repository, opts render.Options) *render.QueryRender {
	return render.New(render.Config{
		Name:            Name,
		Mappings:        repo,
		FieldValue:      render.FieldValue{Dialect: listDialect{}},
		And:             "AND",
		Or:              "OR",
		Not:             "NOT",
		QueryPattern:    "{prefix} AND {query} {functions}",
		StrictMapping:   true,
		RawMessageField: RawMessageField,
		CommentPrefix:   "//",
		Prefix:          prefix,
		Logger:          opts.Logger,
	})
}

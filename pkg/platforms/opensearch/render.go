// Package opensearch renders Lucene query_string queries and OpenSearch
// alerting monitors built around them.
package opensearch

import (
	"io/fs"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const Name = "opensearch"

// Escape: Lucene reserved characters outside quotes, quote and backslash
// inside, '/' inside regex literals.
var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.NoQuotesValue:     {escape.SymbolRule(`\+-=&|><!(){}[]^"~*?:/ `, `\`)},
	escape.DoubleQuotesValue: {escape.SymbolRule(`\"`, `\`)},
	escape.RegexValue:        {escape.SymbolRule(`/`, `\`)},
})

type Dialect struct{}

func quoted(v tokens.Value) string {
	if n, ok := v.(tokens.Number); ok {
		return n.String()
	}
	return `"` + Escape.Escape(tokens.Text(v), escape.DoubleQuotesValue) + `"`
}

// bare escapes a value for use next to wildcards; inner '*' of a
// special-symbol value stays a wildcard.
func bare(v tokens.Value) string {
	if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
		parts := strings.Split(sv.Text, "*")
		for i, p := range parts {
			parts[i] = Escape.Escape(p, escape.NoQuotesValue)
		}
		return strings.Join(parts, "*")
	}
	return Escape.Escape(tokens.Text(v), escape.NoQuotesValue)
}

func (d Dialect) Scalar(field string, op tokens.OperatorType, v tokens.Value) (string, error) {
	prefix := ""
	if field != "" {
		prefix = field + ":"
	}
	switch op {
	case tokens.OpEq, tokens.OpKeyword:
		if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
			return prefix + bare(v), nil
		}
		return prefix + quoted(v), nil
	case tokens.OpNotEq:
		s, err := d.Scalar(field, tokens.OpEq, v)
		return "NOT " + s, err
	case tokens.OpLt:
		return prefix + "<" + quoted(v), nil
	case tokens.OpLte:
		return prefix + "<=" + quoted(v), nil
	case tokens.OpGt:
		return prefix + ">" + quoted(v), nil
	case tokens.OpGte:
		return prefix + ">=" + quoted(v), nil
	case tokens.OpContains:
		return prefix + "*" + bare(v) + "*", nil
	case tokens.OpNotContains:
		return "NOT " + prefix + "*" + bare(v) + "*", nil
	case tokens.OpStartsWith:
		return prefix + bare(v) + "*", nil
	case tokens.OpEndsWith:
		return prefix + "*" + bare(v), nil
	case tokens.OpRegex:
		return prefix + "/" + Escape.Escape(tokens.Text(v), escape.RegexValue) + "/", nil
	case tokens.OpNotRegex:
		return "NOT " + prefix + "/" + Escape.Escape(tokens.Text(v), escape.RegexValue) + "/", nil
	case tokens.OpIsNotNone:
		if field != "" {
			return "_exists_:" + field, nil
		}
	case tokens.OpIsNone:
		if field != "" {
			return "NOT _exists_:" + field, nil
		}
	}
	return "", &render.UnsupportedConstructError{Platform: Name, Construct: op.String(), Tier: render.Hard}
}

func (d Dialect) In(field string, values tokens.List) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
			parts = append(parts, bare(v))
			continue
		}
		parts = append(parts, quoted(v))
	}
	return field + ":(" + strings.Join(parts, " OR ") + ")", nil
}

func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.ValueFormatter("index"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

func config(name string, repo *mapping.Repository, opts render.Options) render.Config {
	return render.Config{
		Name:          name,
		Mappings:      repo,
		FieldValue:    render.FieldValue{Dialect: Dialect{}},
		And:           "AND",
		Or:            "OR",
		Not:           "NOT",
		QueryPattern:  "{query} {functions}",
		StrictMapping: opts.ForceStrict,
		CommentPrefix: "//",
		// index nằm trong request, không nằm trong query string
		Prefix: func(mapping.LogSourceSignature, *query.MetaInfo) string { return "" },
		Logger: opts.Logger,
	}
}

func NewRender(repo *mapping.Repository, opts render.Options) *render.QueryRender {
	return render.New(config(Name, repo, opts))
}

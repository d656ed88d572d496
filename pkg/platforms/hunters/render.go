// Package hunters renders Hunters SQL queries (Snowflake syntax).
package hunters

import (
	"io/fs"
	"regexp"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const Name = "hunters"

// Escape: quotes are doubled; LIKE patterns also escape % and _.
var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.Value:         {escape.ReplaceRule(`'`, "''")},
	escape.ContainsValue: {escape.SymbolRule(`\%_`, `\`), escape.ReplaceRule(`'`, "''")},
	escape.RegexValue:    {escape.ReplaceRule(`'`, "''")},
})

type Dialect struct{}

func lit(v tokens.Value) string {
	return render.Literal(Escape, v, escape.Value, "'")
}

// like builds a LIKE pattern; inner '*' of special-symbol values becomes '%'.
func like(pre string, v tokens.Value, post string) string {
	var body string
	if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
		parts := strings.Split(sv.Text, "*")
		for i, p := range parts {
			parts[i] = Escape.Escape(p, escape.ContainsValue)
		}
		body = strings.Join(parts, "%")
	} else {
		body = Escape.Escape(tokens.Text(v), escape.ContainsValue)
	}
	return "'" + pre + body + post + "'"
}

var cmpOps = map[tokens.OperatorType]string{
	tokens.OpLt: "<", tokens.OpLte: "<=", tokens.OpGt: ">", tokens.OpGte: ">=",
}

func (d Dialect) Scalar(field string, op tokens.OperatorType, v tokens.Value) (string, error) {
	if field == "" {
		return "", &render.UnsupportedConstructError{Platform: Name, Construct: "keyword search", Tier: render.Hard}
	}
	glob := false
	if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
		glob = true
	}
	switch op {
	case tokens.OpEq:
		if glob {
			return field + " ILIKE " + like("", v, ""), nil
		}
		return field + " = " + lit(v), nil
	case tokens.OpNotEq:
		if glob {
			return field + " NOT ILIKE " + like("", v, ""), nil
		}
		return field + " != " + lit(v), nil
	case tokens.OpLt, tokens.OpLte, tokens.OpGt, tokens.OpGte:
		return field + " " + cmpOps[op] + " " + lit(v), nil
	case tokens.OpContains:
		return field + " ILIKE " + like("%", v, "%"), nil
	case tokens.OpNotContains:
		return field + " NOT ILIKE " + like("%", v, "%"), nil
	case tokens.OpStartsWith:
		return field + " ILIKE " + like("", v, "%"), nil
	case tokens.OpEndsWith:
		return field + " ILIKE " + like("%", v, ""), nil
	case tokens.OpRegex:
		return field + " RLIKE '" + Escape.Escape(tokens.Text(v), escape.RegexValue) + "'", nil
	case tokens.OpNotRegex:
		return field + " NOT RLIKE '" + Escape.Escape(tokens.Text(v), escape.RegexValue) + "'", nil
	case tokens.OpIsNone:
		return field + " IS NULL", nil
	case tokens.OpIsNotNone:
		return field + " IS NOT NULL", nil
	}
	return "", &render.UnsupportedConstructError{Platform: Name, Construct: op.String(), Tier: render.Hard}
}

func (d Dialect) In(field string, values tokens.List) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
			return d.anyLike(field, values)
		}
		parts = append(parts, lit(v))
	}
	return field + " IN (" + strings.Join(parts, ", ") + ")", nil
}

func (d Dialect) anyLike(field string, values tokens.List) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		s, err := d.Scalar(field, tokens.OpEq, v)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

var tableName = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.ValueFormatter("table"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

func prefix(sig mapping.LogSourceSignature, _ *query.MetaInfo) string {
	table := sig.String()
	if !tableName.MatchString(table) {
		table = `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	}
	return "SELECT * FROM " + table
}

func NewRender(repo *mapping.Repository, opts render.Options) *render.QueryRender {
	return render.New(render.Config{
		Name:          Name,
		Mappings:      repo,
		FieldValue:    render.FieldValue{Dialect: Dialect{}},
		And:           "AND",
		Or:            "OR",
		Not:           "NOT",
		QueryPattern:  "{prefix} WHERE {query} {functions}",
		StrictMapping: opts.ForceStrict,
		CommentPrefix: "--",
		Prefix:        prefix,
		Logger:        opts.Logger,
	})
}

package splunk

import (
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

// Dialect renders SPL comparisons. Platform is used in error messages so
// the dialect can be composed by other SPL-based platforms.
type Dialect struct {
	Platform string
}

func (d Dialect) quote(v tokens.Value, pre, post string) string {
	if n, ok := v.(tokens.Number); ok && pre == "" && post == "" {
		return n.String()
	}
	return `"` + pre + Escape.Escape(tokens.Text(v), escape.DoubleQuotesValue) + post + `"`
}

func (d Dialect) Scalar(field string, op tokens.OperatorType, v tokens.Value) (string, error) {
	if field == "" {
		return d.keyword(op, v)
	}
	switch op {
	case tokens.OpEq:
		return field + "=" + d.quote(v, "", ""), nil
	case tokens.OpNotEq:
		return field + "!=" + d.quote(v, "", ""), nil
	case tokens.OpLt:
		return field + "<" + d.quote(v, "", ""), nil
	case tokens.OpLte:
		return field + "<=" + d.quote(v, "", ""), nil
	case tokens.OpGt:
		return field + ">" + d.quote(v, "", ""), nil
	case tokens.OpGte:
		return field + ">=" + d.quote(v, "", ""), nil
	case tokens.OpContains:
		return field + "=" + d.quote(v, "*", "*"), nil
	case tokens.OpNotContains:
		return "NOT " + field + "=" + d.quote(v, "*", "*"), nil
	case tokens.OpStartsWith:
		return field + "=" + d.quote(v, "", "*"), nil
	case tokens.OpEndsWith:
		return field + "=" + d.quote(v, "*", ""), nil
	case tokens.OpIsNone:
		return "NOT " + field + "=*", nil
	case tokens.OpIsNotNone:
		return field + "=*", nil
	}
	// regex chỉ biểu diễn được qua "| regex", không nằm trong filter
	return "", &render.UnsupportedConstructError{Platform: d.Platform, Construct: "regex on field " + field, Tier: render.Hard}
}

func (d Dialect) keyword(op tokens.OperatorType, v tokens.Value) (string, error) {
	switch op {
	case tokens.OpKeyword, tokens.OpEq, tokens.OpContains:
		return d.quote(v, "", ""), nil
	case tokens.OpStartsWith:
		return d.quote(v, "", "*"), nil
	case tokens.OpEndsWith:
		return d.quote(v, "*", ""), nil
	}
	return "", &render.UnsupportedConstructError{Platform: d.Platform, Construct: "keyword " + op.String(), Tier: render.Hard}
}

func (d Dialect) In(field string, values tokens.List) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, d.quote(v, "", ""))
	}
	return field + " IN (" + strings.Join(parts, ", ") + ")", nil
}

// Functions re-emits recognized pipe functions; SPL is their native syntax.
func Functions(fns query.ParsedFunctions, _ *mapping.SourceMapping) (string, []string) {
	parts := make([]string, 0, len(fns.Functions))
	for _, f := range fns.Functions {
		s := "| " + f.Name
		if len(f.Args) > 0 {
			s += " " + strings.Join(f.Args, " ")
		}
		if len(f.By) > 0 {
			s += " by " + strings.Join(f.By, ", ")
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "), nil
}

func NewRender(repo *mapping.Repository, opts render.Options) *render.QueryRender {
	return render.New(render.Config{
		Name:          Name,
		Mappings:      repo,
		FieldValue:    render.FieldValue{Dialect: Dialect{Platform: Name}},
		And:           "AND",
		Or:            "OR",
		Not:           "NOT",
		QueryPattern:  "{prefix} {query} {functions}",
		StrictMapping: opts.ForceStrict,
		CommentPrefix: "```",
		CommentSuffix: "```",
		Functions:     Functions,
		Logger:        opts.Logger,
	})
}

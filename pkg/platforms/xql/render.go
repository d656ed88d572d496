// Package xql renders Cortex XDR XQL queries.
package xql

import (
	"io/fs"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const (
	Name        = "cortex_xql"
	rawLogField = "_raw_log"
)

var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.Value:      {escape.SymbolRule(`*"\`, `\`)},
	escape.RegexValue: {escape.SymbolRule("_!@#$%^&*=+()[]{}|;:'\",.<>?/`~-\\", `\`)},
})

type Dialect struct{}

func lit(v tokens.Value) string {
	return render.Literal(Escape, v, escape.Value, `"`)
}

func re(body string) string {
	return `"` + body + `"`
}

func (d Dialect) reEscape(v tokens.Value) string {
	if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
		return render.GlobToRegex(Escape, sv.Text)
	}
	return Escape.Escape(tokens.Text(v), escape.RegexValue)
}

func (d Dialect) Scalar(field string, op tokens.OperatorType, v tokens.Value) (string, error) {
	if field == "" {
		field = rawLogField
		if op == tokens.OpKeyword || op == tokens.OpEq {
			op = tokens.OpContains
		}
	}
	glob := false
	if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
		glob = true
	}
	switch op {
	case tokens.OpEq:
		if glob {
			return field + " ~= " + re("^"+d.reEscape(v)+"$"), nil
		}
		return field + " = " + lit(v), nil
	case tokens.OpNotEq:
		if glob {
			return field + " !~= " + re("^"+d.reEscape(v)+"$"), nil
		}
		return field + " != " + lit(v), nil
	case tokens.OpLt:
		return field + " < " + lit(v), nil
	case tokens.OpLte:
		return field + " <= " + lit(v), nil
	case tokens.OpGt:
		return field + " > " + lit(v), nil
	case tokens.OpGte:
		return field + " >= " + lit(v), nil
	case tokens.OpContains:
		// contains không nhận wildcard và dấu '\' cuối chuỗi
		if glob || strings.HasSuffix(tokens.Text(v), `\`) {
			return field + " ~= " + re(".*"+d.reEscape(v)+".*"), nil
		}
		return field + " contains " + lit(v), nil
	case tokens.OpNotContains:
		if glob || strings.HasSuffix(tokens.Text(v), `\`) {
			return field + " !~= " + re(".*"+d.reEscape(v)+".*"), nil
		}
		return field + " not contains " + lit(v), nil
	case tokens.OpStartsWith:
		return field + " ~= " + re(d.reEscape(v)+".*"), nil
	case tokens.OpEndsWith:
		return field + " ~= " + re(".*"+d.reEscape(v)), nil
	case tokens.OpRegex:
		return field + " ~= " + re(strings.ReplaceAll(tokens.Text(v), `"`, `\"`)), nil
	case tokens.OpNotRegex:
		return field + " !~= " + re(strings.ReplaceAll(tokens.Text(v), `"`, `\"`)), nil
	case tokens.OpIsNone:
		return field + " = null", nil
	case tokens.OpIsNotNone:
		return field + " != null", nil
	}
	return "", &render.UnsupportedConstructError{Platform: Name, Construct: op.String(), Tier: render.Hard}
}

// In uses the native list unless a value carries wildcards, which only ~= can match.
func (d Dialect) In(field string, values tokens.List) (string, error) {
	parts := make([]string, 0, len(values))
	glob := false
	for _, v := range values {
		if sv, ok := v.(tokens.StrValue); ok && sv.HasSpecSymbols {
			glob = true
		}
		parts = append(parts, lit(v))
	}
	if !glob {
		return field + " in (" + strings.Join(parts, ", ") + ")", nil
	}
	parts = parts[:0]
	for _, v := range values {
		s, err := d.Scalar(field, tokens.OpEq, v)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " or ") + ")", nil
}

// SignatureFactory renders `preset = xdr_process` or `dataset = xdr_data`.
func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.KeyValueFormatter(" = ", " ", false, "preset", "dataset"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

func NewRender(repo *mapping.Repository, opts render.Options) *render.QueryRender {
	return render.New(render.Config{
		Name:          Name,
		Mappings:      repo,
		FieldValue:    render.FieldValue{Dialect: Dialect{}},
		And:           "and",
		Or:            "or",
		Not:           "not",
		QueryPattern:  "{prefix} | filter {query} {functions}",
		StrictMapping: opts.ForceStrict,
		CommentPrefix: "//",
		Logger:        opts.Logger,
	})
}

// Package splunk implements the SPL parser and renderer. The SPL dialect is
// also composed by the crowdstrike renderer.
package splunk

import (
	"io/fs"
	"regexp"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/parser"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/tokenizer"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const Name = "splunk"

// Escape: backslash and double quote inside quoted literals.
var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.Value:             {escape.SymbolRule(`\"`, `\`)},
	escape.DoubleQuotesValue: {escape.SymbolRule(`\"`, `\`)},
	escape.RegexValue:        {escape.SymbolRule(`\"`, `\`)},
	escape.SingleQuotesValue: {escape.SymbolRule(`\'`, `\`)},
})

var splTokenizer = tokenizer.MustNew(tokenizer.Config{
	FieldPattern:             `[a-zA-Z_][a-zA-Z0-9_.\-]*`,
	NumValuePattern:          `-?\d+(?:\.\d+)?`,
	NoQuotesValuePattern:     `[^\s"'(),=<>!|]+`,
	DoubleQuotesValuePattern: `"((?:[^"\\]|\\.)*)"`,
	SingleQuotesValuePattern: `'((?:[^'\\]|\\.)*)'`,
	SingleValueOperators: map[string]tokens.OperatorType{
		"=":  tokens.OpEq,
		"!=": tokens.OpNotEq,
		"<":  tokens.OpLt,
		"<=": tokens.OpLte,
		">":  tokens.OpGt,
		">=": tokens.OpGte,
	},
	MultiValueOperators:      map[string]tokens.OperatorType{"in": tokens.OpEq},
	CaseInsensitiveOperators: true,
	WildcardSymbol:           "*",
	CaseSensitiveLogic:       true,
	LogicalOperators: map[string]tokens.IdentifierKind{
		"AND": tokens.IdentAnd,
		"OR":  tokens.IdentOr,
		"NOT": tokens.IdentNot,
	},
	Keywords:    true,
	ImplicitAnd: true,
	Escape:      Escape,
})

var sourcePatterns = []tokenizer.SourcePattern{
	{Key: "index", Pattern: regexp.MustCompile(`(?i)\bindex\s*=\s*(?P<value>"[^"]*"|[^\s()]+)`)},
	{Key: "sourcetype", Pattern: regexp.MustCompile(`(?i)\bsourcetype\s*=\s*(?P<value>"[^"]*"|[^\s()]+)`)},
	{Key: "source", Pattern: regexp.MustCompile(`(?i)\bsource\s*=\s*(?P<value>"[^"]*"|[^\s()]+)`)},
}

// SignatureFactory renders `source="..." index="..."` prefixes.
func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.KeyValueFormatter("=", " ", true, "index", "source", "sourcetype"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

type Parser struct {
	parser.Base
}

func NewParser(repo *mapping.Repository) *Parser {
	return &Parser{Base: parser.Base{Tokenizer: splTokenizer, Mappings: repo}}
}

func (p *Parser) Name() string { return Name }

// Parse splits off pipe functions, extracts index/source/sourcetype hints and
// tokenizes the remaining filter.
func (p *Parser) Parse(raw query.RawQuery) (*query.TokenizedQuery, error) {
	filter, segs := query.SplitPipes(raw.Query)
	hints, filter := tokenizer.ExtractLogSources(filter, sourcePatterns)
	meta := query.NewMetaInfo()
	meta.Merge(raw.Meta)
	return p.Build(filter, hints, meta, query.ParsePipeFunctions(segs))
}

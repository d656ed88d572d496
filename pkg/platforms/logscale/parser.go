// Package logscale parses Falcon LogScale queries and LogScale alert
// documents.
package logscale

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/parser"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/tokenizer"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const (
	Name      = "logscale"
	AlertName = "logscale_alert"
)

var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.DoubleQuotesValue: {escape.SymbolRule(`\"`, `\`)},
})

var lqlTokenizer = tokenizer.MustNew(tokenizer.Config{
	FieldPattern:             `[a-zA-Z_#@][a-zA-Z0-9_.#@]*`,
	NumValuePattern:          `-?\d+(?:\.\d+)?`,
	NoQuotesValuePattern:     `[^\s"()|=!<>]+`,
	DoubleQuotesValuePattern: `"((?:[^"\\]|\\.)*)"`,
	RegexValuePattern:        `/((?:[^/\\]|\\.)*)/[a-zA-Z]*`,
	SingleValueOperators: map[string]tokens.OperatorType{
		"=":  tokens.OpEq,
		"!=": tokens.OpNotEq,
		"<":  tokens.OpLt,
		"<=": tokens.OpLte,
		">":  tokens.OpGt,
		">=": tokens.OpGte,
	},
	WildcardSymbol: "*",
	Keywords:       true,
	ImplicitAnd:    true,
	Escape:         Escape,
})

// #event_simpleName=ProcessRollup2 chọn nguồn log
var sourcePatterns = []tokenizer.SourcePattern{
	{Key: "event_simpleName", Pattern: regexp.MustCompile(`#event_simpleName\s*=\s*(?P<value>"[^"]*"|[^\s()|]+)`)},
}

func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.KeyValueFormatter("=", " ", false, "event_simpleName"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

type Parser struct {
	parser.Base
}

func NewParser(repo *mapping.Repository) *Parser {
	return &Parser{Base: parser.Base{Tokenizer: lqlTokenizer, Mappings: repo}}
}

func (p *Parser) Name() string { return Name }

// Parse: pipeline stages after the filter are kept as untranslated functions.
func (p *Parser) Parse(raw query.RawQuery) (*query.TokenizedQuery, error) {
	filter, segs := query.SplitPipes(raw.Query)
	hints, filter := tokenizer.ExtractLogSources(filter, sourcePatterns)
	meta := query.NewMetaInfo()
	meta.Merge(raw.Meta)
	fns := query.ParsedFunctions{NotSupported: segs}
	return p.Build(filter, hints, meta, fns)
}

// AlertParser reads a LogScale alert document. Comments and trailing commas
// are accepted.
type AlertParser struct {
	*Parser
}

func NewAlertParser(repo *mapping.Repository) *AlertParser {
	return &AlertParser{Parser: NewParser(repo)}
}

func (p *AlertParser) Name() string { return AlertName }

type alert struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Query       struct {
		QueryString string `json:"queryString"`
	} `json:"query"`
}

func (p *AlertParser) Parse(raw query.RawQuery) (*query.TokenizedQuery, error) {
	b, err := hujson.Standardize([]byte(raw.Query))
	if err != nil {
		return nil, fmt.Errorf("logscale alert: %w", err)
	}
	var a alert
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("logscale alert: %w", err)
	}
	meta := &query.MetaInfo{Title: a.Name, Description: a.Description}
	meta.Merge(raw.Meta)
	if strings.TrimSpace(a.Query.QueryString) == "" {
		return nil, &parser.Error{Meta: meta, Err: errors.New("logscale alert: missing query.queryString")}
	}
	q, err := p.Parser.Parse(query.RawQuery{Query: a.Query.QueryString, Language: AlertName, Meta: meta})
	var pe *parser.Error
	if err != nil && !errors.As(err, &pe) {
		return nil, &parser.Error{Meta: meta, Err: err}
	}
	return q, err
}

// Package qradar parses AQL event searches.
package qradar

import (
	"io/fs"
	"regexp"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/parser"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/tokenizer"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const Name = "qradar"

// payloadField là full-text: so sánh trên nó trở thành keyword.
const payloadField = "utf8(payload)"

// Escape: AQL doubles single quotes inside string literals.
var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.SingleQuotesValue: {{
		Pattern:            regexp.MustCompile(`'`),
		Replacement:        "''",
		Reverse:            regexp.MustCompile(`''`),
		ReverseReplacement: "'",
	}},
})

var aqlTokenizer = tokenizer.MustNew(tokenizer.Config{
	FieldPattern:             `(?i:UTF8\(payload\))|"[^"]+"|[a-zA-Z_][a-zA-Z0-9_.]*`,
	NumValuePattern:          `-?\d+(?:\.\d+)?`,
	SingleQuotesValuePattern: `'((?:[^']|'')*)'`,
	SingleValueOperators: map[string]tokens.OperatorType{
		"=":           tokens.OpEq,
		"!=":          tokens.OpNotEq,
		"<":           tokens.OpLt,
		"<=":          tokens.OpLte,
		">":           tokens.OpGt,
		">=":          tokens.OpGte,
		"like":        tokens.OpEq,
		"ilike":       tokens.OpEq,
		"not like":    tokens.OpNotEq,
		"not ilike":   tokens.OpNotEq,
		"matches":     tokens.OpRegex,
		"imatches":    tokens.OpRegex,
		"not matches": tokens.OpNotRegex,
	},
	MultiValueOperators: map[string]tokens.OperatorType{
		"in":     tokens.OpEq,
		"not in": tokens.OpNotEq,
	},
	CaseInsensitiveOperators: true,
	WildcardByOperator: map[string]string{
		"like": "%", "ilike": "%", "not like": "%", "not ilike": "%",
	},
	Escape: Escape,
})

var (
	selectClause = regexp.MustCompile(`(?is)^\s*select\s+.*?\s+from\s+\w+\s*(?:where\s+)?`)
	tailClause   = regexp.MustCompile(`(?is)\s+((?:group\s+by|order\s+by|having|limit|last|start|stop)\b.*)$`)
	tailSplit    = regexp.MustCompile(`(?i)\s+(?:group\s+by|order\s+by|having|limit|last|start|stop)\b`)
)

func hint(key, field string) []tokenizer.SourcePattern {
	return []tokenizer.SourcePattern{
		{Key: key, Pattern: regexp.MustCompile(`(?i)\b` + field + `\s*=\s*(?P<value>'[^']*'|\d+)`)},
		{Key: key, Pattern: regexp.MustCompile(`(?i)\b` + field + `\s+in\s*\((?P<values>[^)]*)\)`)},
	}
}

var sourcePatterns = func() []tokenizer.SourcePattern {
	var out []tokenizer.SourcePattern
	out = append(out, hint("devicetype", "devicetype")...)
	out = append(out, hint("qideventcategory", `qideventcategory\(qid\)`)...)
	out = append(out, hint("category", "category")...)
	out = append(out, hint("qid", "qid")...)
	// LOGSOURCENAME(...) chỉ bị loại khỏi query, không dùng làm hint
	out = append(out, tokenizer.SourcePattern{Pattern: regexp.MustCompile(`(?i)\blogsourcename\(\w+\)\s*(?:i?like|=)\s*'(?:[^']|'')*'`)})
	return out
}()

// SignatureFactory renders `devicetype=12` style selectors.
func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.KeyValueFormatter("=", " AND ", false, "devicetype", "category", "qid"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

type Parser struct {
	parser.Base
}

func NewParser(repo *mapping.Repository) *Parser {
	return &Parser{Base: parser.Base{Tokenizer: aqlTokenizer, Mappings: repo}}
}

func (p *Parser) Name() string { return Name }

// Parse strips SELECT ... FROM ... WHERE, keeps trailing clauses as
// unsupported functions and turns UTF8(payload) comparisons into keywords.
func (p *Parser) Parse(raw query.RawQuery) (*query.TokenizedQuery, error) {
	text := selectClause.ReplaceAllString(raw.Query, "")
	var fns query.ParsedFunctions
	if loc := tailClause.FindStringSubmatchIndex(text); loc != nil {
		fns.NotSupported = splitTail(text[loc[2]:loc[3]])
		text = text[:loc[0]]
	}
	hints, text := tokenizer.ExtractLogSources(text, sourcePatterns)
	delete(hints, "")

	ts, err := p.Tokenizer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	ts = payloadKeywords(ts)

	meta := query.NewMetaInfo()
	meta.Merge(raw.Meta)
	return p.FromTokens(ts, hints, meta, fns)
}

func splitTail(tail string) []string {
	idx := tailSplit.FindAllStringIndex(" "+tail, -1)
	var out []string
	for i, loc := range idx {
		end := len(tail) + 1
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		out = append(out, strings.TrimSpace((" " + tail)[loc[0]:end]))
	}
	return out
}

func payloadKeywords(ts []tokens.Token) []tokens.Token {
	for i, t := range ts {
		if t.Kind != tokens.KindFieldValue || strings.ToLower(t.FieldValue.Field.SourceName) != payloadField {
			continue
		}
		fv := t.FieldValue
		ts[i] = tokens.NewKeyword(tokens.Keyword{Operator: fv.Operator, Value: fv.Value, Wildcards: fv.Wildcards})
	}
	return ts
}

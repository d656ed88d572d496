// Package sigma parses Sigma YAML rules into the generic token stream and
// renders token trees back into Sigma rules.
package sigma

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/parser"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/tokenizer"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

const Name = "sigma"

type rawRule struct {
	Title          string            `yaml:"title"`
	ID             string            `yaml:"id"`
	Description    string            `yaml:"description"`
	Author         string            `yaml:"author"`
	Date           string            `yaml:"date"`
	Level          string            `yaml:"level"`
	Status         string            `yaml:"status"`
	License        string            `yaml:"license"`
	References     []string          `yaml:"references"`
	Tags           []string          `yaml:"tags"`
	FalsePositives []string          `yaml:"falsepositives"`
	Logsource      map[string]string `yaml:"logsource"`
	Detection      yaml.Node         `yaml:"detection"`
}

// SignatureFactory: Sigma mappings match product/category/service exactly.
func SignatureFactory() mapping.SignatureFactory {
	return mapping.ExactFactory(nil)
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

type Parser struct {
	parser.Base
}

func NewParser(repo *mapping.Repository) *Parser {
	return &Parser{Base: parser.Base{Mappings: repo}}
}

func (p *Parser) Name() string { return Name }

// Parse đọc rule YAML: metadata, logsource làm hint, detection + condition thành token.
func (p *Parser) Parse(raw query.RawQuery) (*query.TokenizedQuery, error) {
	var rr rawRule
	if err := yaml.Unmarshal([]byte(raw.Query), &rr); err != nil {
		return nil, fmt.Errorf("sigma yaml: %w", err)
	}
	meta := query.NewMetaInfo()
	mergeRuleMeta(meta, rr)
	meta.Merge(raw.Meta)
	fail := func(err error) (*query.TokenizedQuery, error) {
		return nil, &parser.Error{Meta: meta, Err: err}
	}

	if rr.Detection.Kind != yaml.MappingNode {
		return fail(errors.New("missing detection block"))
	}

	selections := map[string][]tokens.Token{}
	var names []string
	var conditions []string
	for i := 0; i+1 < len(rr.Detection.Content); i += 2 {
		name, node := rr.Detection.Content[i].Value, rr.Detection.Content[i+1]
		switch name {
		case "condition":
			cs, err := conditionList(node)
			if err != nil {
				return fail(err)
			}
			conditions = cs
			continue
		case "timeframe":
			continue
		}
		ts, err := parseSelection(node)
		if err != nil {
			return fail(fmt.Errorf("selection %s: %w", name, err))
		}
		selections[name] = ts
		names = append(names, name)
	}
	if len(conditions) == 0 {
		return fail(errors.New("missing detection condition"))
	}

	var fns query.ParsedFunctions
	var ts []tokens.Token
	for i, c := range conditions {
		expr, agg, _ := strings.Cut(c, "|")
		if agg = strings.TrimSpace(agg); agg != "" {
			fns.NotSupported = append(fns.NotSupported, agg)
		}
		ct, err := expandCondition(expr, selections, names)
		if err != nil {
			return fail(err)
		}
		if i > 0 {
			ts = append(ts, tokens.Or)
		}
		if len(conditions) > 1 {
			ct = wrap(ct)
		}
		ts = append(ts, ct...)
	}

	hints := map[string][]string{}
	for _, k := range []string{"product", "category", "service"} {
		if v := strings.TrimSpace(rr.Logsource[k]); v != "" {
			hints[k] = []string{v}
		}
	}
	return p.FromTokens(ts, hints, meta, fns)
}

func mergeRuleMeta(meta *query.MetaInfo, rr rawRule) {
	meta.Merge(&query.MetaInfo{
		ID:             strings.TrimSpace(rr.ID),
		Title:          rr.Title,
		Description:    rr.Description,
		Author:         rr.Author,
		Date:           rr.Date,
		License:        rr.License,
		Severity:       query.Severity(rr.Level),
		Status:         rr.Status,
		References:     rr.References,
		Tags:           rr.Tags,
		FalsePositives: rr.FalsePositives,
	})
}

func conditionList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
		return out, nil
	}
	return nil, errors.New("condition must be a string or a list of strings")
}

// parseSelection: mapping là AND các field, list các mapping là OR,
// list scalar là keyword.
func parseSelection(n *yaml.Node) ([]tokens.Token, error) {
	switch n.Kind {
	case yaml.MappingNode:
		return parsePredicateMap(n)
	case yaml.SequenceNode:
		var out []tokens.Token
		for i, item := range n.Content {
			var ts []tokens.Token
			switch item.Kind {
			case yaml.MappingNode:
				pm, err := parsePredicateMap(item)
				if err != nil {
					return nil, fmt.Errorf("item %d: %w", i, err)
				}
				ts = wrap(pm)
			case yaml.ScalarNode:
				ts = []tokens.Token{keyword(item)}
			default:
				return nil, fmt.Errorf("item %d must be a mapping or a scalar", i)
			}
			if i > 0 {
				out = append(out, tokens.Or)
			}
			out = append(out, ts...)
		}
		return out, nil
	case yaml.ScalarNode:
		return []tokens.Token{keyword(n)}, nil
	}
	return nil, errors.New("selection must be a mapping or a list")
}

func keyword(n *yaml.Node) tokens.Token {
	op, v, w, _ := tokenizer.PromoteWildcards(tokens.OpEq, n.Value, "*")
	kw := tokens.Keyword{Operator: tokens.OpKeyword, Value: v, Wildcards: w}
	if op == tokens.OpIsNotNone {
		kw.Value = tokens.String("")
	}
	return tokens.NewKeyword(kw)
}

func parsePredicateMap(n *yaml.Node) ([]tokens.Token, error) {
	var out []tokens.Token
	for i := 0; i+1 < len(n.Content); i += 2 {
		ts, err := parsePredicate(n.Content[i].Value, n.Content[i+1])
		if err != nil {
			return nil, err
		}
		if len(out) > 0 {
			out = append(out, tokens.And)
		}
		out = append(out, ts...)
	}
	return out, nil
}

type fieldKey struct {
	field string
	op    tokens.OperatorType
	all   bool
	// exists: nil khi không có modifier exists
	exists *bool
}

// Field|mod1|mod2 → field, operator, modifiers
func parseFieldKey(s string) (fieldKey, error) {
	parts := strings.Split(s, "|")
	k := fieldKey{field: parts[0], op: tokens.OpEq}
	for _, m := range parts[1:] {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "contains":
			k.op = tokens.OpContains
		case "startswith":
			k.op = tokens.OpStartsWith
		case "endswith":
			k.op = tokens.OpEndsWith
		case "re", "regex":
			k.op = tokens.OpRegex
		case "lt":
			k.op = tokens.OpLt
		case "lte":
			k.op = tokens.OpLte
		case "gt":
			k.op = tokens.OpGt
		case "gte":
			k.op = tokens.OpGte
		case "all":
			k.all = true
		case "exists":
			t := true
			k.exists = &t
		case "cased", "i", "m", "s", "":
			// không đổi ngữ nghĩa so khớp trên nền tảng đích
		default:
			return k, fmt.Errorf("unsupported modifier %q on field %s", m, k.field)
		}
	}
	return k, nil
}

func parsePredicate(key string, val *yaml.Node) ([]tokens.Token, error) {
	k, err := parseFieldKey(key)
	if err != nil {
		return nil, err
	}
	field := tokens.NewField(k.field)
	if k.exists != nil {
		var b bool
		if err := val.Decode(&b); err != nil {
			return nil, fmt.Errorf("field %s: exists expects a boolean", k.field)
		}
		op := tokens.OpIsNotNone
		if !b {
			op = tokens.OpIsNone
		}
		return []tokens.Token{tokens.NewFieldValue(tokens.FieldValue{Field: field, Operator: op, Value: tokens.String("")})}, nil
	}

	var items []*yaml.Node
	if val.Kind == yaml.SequenceNode {
		items = val.Content
	} else {
		items = []*yaml.Node{val}
	}

	// danh sách so sánh bằng thuần túy → một token với List
	if k.op == tokens.OpEq && !k.all && len(items) > 1 {
		if list, ok := plainList(items); ok {
			return []tokens.Token{tokens.NewFieldValue(tokens.FieldValue{Field: field, Operator: tokens.OpEq, Value: list})}, nil
		}
	}

	join := tokens.Or
	if k.all {
		join = tokens.And
	}
	var out []tokens.Token
	for i, item := range items {
		if i > 0 {
			out = append(out, join)
		}
		out = append(out, predicate(field, k.op, item)...)
	}
	if len(items) > 1 {
		out = wrap(out)
	}
	return out, nil
}

func plainList(items []*yaml.Node) (tokens.List, bool) {
	out := make(tokens.List, 0, len(items))
	for _, it := range items {
		if it.Kind != yaml.ScalarNode || isNull(it) || strings.ContainsAny(it.Value, "*?") {
			return nil, false
		}
		out = append(out, scalar(it))
	}
	return out, true
}

func predicate(field tokens.Field, op tokens.OperatorType, n *yaml.Node) []tokens.Token {
	if isNull(n) {
		return []tokens.Token{tokens.NewFieldValue(tokens.FieldValue{Field: field, Operator: tokens.OpIsNone, Value: tokens.String("")})}
	}
	fv := tokens.FieldValue{Field: field, Operator: op, Value: scalar(n)}
	if s, ok := fv.Value.(tokens.String); ok && op != tokens.OpRegex {
		var negate bool
		fv.Operator, fv.Value, fv.Wildcards, negate = tokenizer.PromoteWildcards(op, string(s), "*")
		if negate {
			return []tokens.Token{tokens.Not, tokens.LParen, tokens.NewFieldValue(fv), tokens.RParen}
		}
	}
	return []tokens.Token{tokens.NewFieldValue(fv)}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func scalar(n *yaml.Node) tokens.Value {
	if n.Tag == "!!int" || n.Tag == "!!float" {
		if num, err := tokens.ParseNumber(n.Value); err == nil {
			return num
		}
	}
	return tokens.String(n.Value)
}

func wrap(ts []tokens.Token) []tokens.Token {
	out := make([]tokens.Token, 0, len(ts)+2)
	out = append(out, tokens.LParen)
	out = append(out, ts...)
	return append(out, tokens.RParen)
}

// matchSelections resolves a selection pattern ("sel*", "them" or a name).
func matchSelections(pattern string, names []string) []string {
	if pattern == "them" {
		var out []string
		for _, n := range names {
			if !strings.HasPrefix(n, "_") {
				out = append(out, n)
			}
		}
		return out
	}
	if !strings.HasSuffix(pattern, "*") {
		for _, n := range names {
			if n == pattern {
				return []string{n}
			}
		}
		return nil
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

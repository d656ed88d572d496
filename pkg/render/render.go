// Package render is the target-side contract: a QueryRender walks the
// expression tree once per resolved source mapping and emits dialect text
// through a pluggable field-value strategy.
package render

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PhucNguyen204/query_translator/pkg/compiler"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

// Renderer is what the translator calls; implementations are not shared
// between goroutines.
type Renderer interface {
	Name() string
	Generate(q *query.TokenizedQuery) ([]Output, error)
}

// Output is one rendered query per source mapping.
type Output struct {
	SourceMappingID string `json:"source_mapping_id"`
	Query           string `json:"query"`
}

// Dialect renders one comparison on a scalar value. field is "" for keywords.
type Dialect interface {
	Scalar(field string, op tokens.OperatorType, v tokens.Value) (string, error)
}

// InDialect is implemented by dialects with a native IN (...) for equality lists.
type InDialect interface {
	In(field string, values tokens.List) (string, error)
}

// FieldValue renders a comparison of any value shape on top of a Dialect.
type FieldValue struct {
	Dialect Dialect
	Or, And string
}

// Render: list equality becomes IN when the dialect has it, otherwise lists
// expand to an OR chain (AND chain for negated operators).
func (f FieldValue) Render(field string, op tokens.OperatorType, v tokens.Value) (string, error) {
	list, ok := v.(tokens.List)
	if !ok {
		return f.Dialect.Scalar(field, op, v)
	}
	if len(list) == 1 {
		return f.Render(field, op, list[0])
	}
	if in, ok := f.Dialect.(InDialect); ok && op == tokens.OpEq && field != "" && len(list) > 0 {
		return in.In(field, list)
	}
	join := f.Or
	if op.Negated() {
		join = f.And
	}
	parts := make([]string, 0, len(list))
	for _, it := range list {
		s, err := f.Dialect.Scalar(field, op, it)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " "+join+" ") + ")", nil
}

// Config describes a platform renderer.
type Config struct {
	Name     string
	Mappings *mapping.Repository

	FieldValue FieldValue
	And        string
	Or         string
	Not        string

	// QueryPattern uses {prefix}, {query} and {functions}. Text before
	// {query} is dropped when the prefix is empty.
	QueryPattern string

	StrictMapping bool
	// RawMessageField receives unmapped clauses as contains when strict.
	RawMessageField string

	CommentPrefix string
	CommentSuffix string

	// Prefix builds the query prefix; default is the signature display form.
	Prefix func(sig mapping.LogSourceSignature, meta *query.MetaInfo) string
	// Functions renders the function suffix and returns what it could not express.
	Functions func(fns query.ParsedFunctions, m *mapping.SourceMapping) (string, []string)
	// Envelope wraps the finished query, e.g. into a rule JSON document.
	Envelope func(q string, m *mapping.SourceMapping, meta *query.MetaInfo) (string, error)

	Logger *zap.SugaredLogger
}

// QueryRender is the shared renderer. It holds no per-call state.
type QueryRender struct {
	cfg Config
	log *zap.SugaredLogger
}

func New(cfg Config) *QueryRender {
	if cfg.QueryPattern == "" {
		cfg.QueryPattern = "{prefix} {query} {functions}"
	}
	if cfg.FieldValue.Or == "" {
		cfg.FieldValue.Or = cfg.Or
	}
	if cfg.FieldValue.And == "" {
		cfg.FieldValue.And = cfg.And
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &QueryRender{cfg: cfg, log: log}
}

func (r *QueryRender) Name() string { return r.cfg.Name }

// Generate renders q once per source mapping listed in its meta info.
func (r *QueryRender) Generate(q *query.TokenizedQuery) ([]Output, error) {
	meta := q.Meta
	if meta == nil {
		meta = query.NewMetaInfo()
	}
	var out []Output
	for _, m := range r.cfg.Mappings.SourceMappings(meta.SourceMappingIDs) {
		body, err := r.RenderNode(q.Tree, m)
		if err != nil {
			return nil, err
		}
		prefix := r.prefix(m, meta)
		fns, notSupported := "", q.Functions.NotSupported
		if r.cfg.Functions != nil {
			var extra []string
			fns, extra = r.cfg.Functions(q.Functions, m)
			notSupported = append(append([]string(nil), notSupported...), extra...)
		} else {
			notSupported = append(append([]string(nil), notSupported...), rawFunctions(q.Functions)...)
		}
		text := r.Finalize(prefix, body, fns)
		if r.cfg.Envelope != nil {
			if text, err = r.cfg.Envelope(text, m, meta); err != nil {
				return nil, fmt.Errorf("%s envelope: %w", r.cfg.Name, err)
			}
		}
		text += Annex(notSupported, r.cfg.CommentPrefix, r.cfg.CommentSuffix)
		r.log.Debugw("rendered query", "platform", r.cfg.Name, "source_mapping", m.SourceID)
		out = append(out, Output{SourceMappingID: m.SourceID, Query: text})
	}
	return out, nil
}

func rawFunctions(fns query.ParsedFunctions) []string {
	out := make([]string, 0, len(fns.Functions))
	for _, f := range fns.Functions {
		out = append(out, f.Raw)
	}
	return out
}

func (r *QueryRender) prefix(m *mapping.SourceMapping, meta *query.MetaInfo) string {
	if r.cfg.Prefix != nil {
		return r.cfg.Prefix(m.Signature, meta)
	}
	return m.Signature.String()
}

// Finalize fills the query pattern.
func (r *QueryRender) Finalize(prefix, body, functions string) string {
	pattern := r.cfg.QueryPattern
	if prefix == "" {
		if i := strings.Index(pattern, "{query}"); i >= 0 {
			pattern = pattern[i:]
		}
	}
	if body == "" {
		i, j := strings.Index(pattern, "{prefix}"), strings.Index(pattern, "{query}")
		if i >= 0 && j > i {
			pattern = pattern[:i+len("{prefix}")] + pattern[j+len("{query}"):]
		}
	}
	s := strings.NewReplacer("{prefix}", prefix, "{query}", body, "{functions}", functions).Replace(pattern)
	return strings.TrimSpace(s)
}

// RenderNode renders an expression subtree for one source mapping.
func (r *QueryRender) RenderNode(n compiler.Node, m *mapping.SourceMapping) (string, error) {
	switch v := n.(type) {
	case nil:
		return "", nil
	case compiler.Leaf:
		return r.RenderLeaf(v.Token, m)
	case *compiler.Group:
		return r.RenderGroup(v, m)
	default:
		panic(fmt.Sprintf("render: unknown node %T", n))
	}
}

// RenderGroup joins children with the group operator. A child is
// parenthesized when it is a multi-child group with a different operator.
func (r *QueryRender) RenderGroup(g *compiler.Group, m *mapping.SourceMapping) (string, error) {
	switch g.Op {
	case compiler.OpNone:
		if len(g.Children) == 0 {
			return "", nil
		}
		return r.RenderNode(g.Children[0], m)
	case compiler.OpNot:
		inner, err := r.RenderNode(g.Children[0], m)
		if err != nil {
			return "", err
		}
		if c, ok := g.Children[0].(*compiler.Group); ok && len(c.Children) > 1 {
			inner = "(" + inner + ")"
		}
		return r.cfg.Not + " " + inner, nil
	}

	join := r.cfg.And
	if g.Op == compiler.OpOr {
		join = r.cfg.Or
	}
	parts := make([]string, 0, len(g.Children))
	for _, c := range g.Children {
		s, err := r.RenderNode(c, m)
		if err != nil {
			return "", err
		}
		if s == "" {
			continue
		}
		if cg, ok := c.(*compiler.Group); ok && cg.Op != g.Op && cg.Op != compiler.OpNot && len(cg.Children) > 1 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "+join+" "), nil
}

// RenderLeaf renders a FieldValue or Keyword, expanding one-to-many field
// mappings into an OR of the same comparison.
func (r *QueryRender) RenderLeaf(t tokens.Token, m *mapping.SourceMapping) (string, error) {
	fv := r.cfg.FieldValue
	if t.Kind == tokens.KindKeyword {
		return fv.Render("", t.Keyword.Operator, t.Keyword.Value)
	}
	tok := t.FieldValue
	fields, err := r.MapField(tok.Field, m)
	if err != nil {
		var strict *StrictMappingError
		if errors.As(err, &strict) && r.cfg.RawMessageField != "" {
			return r.rawMessageFallback(tok, strict)
		}
		return "", err
	}
	if len(fields) == 1 {
		return fv.Render(fields[0], tok.Operator, tok.Value)
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		s, err := fv.Render(f, tok.Operator, tok.Value)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " "+r.cfg.Or+" ") + ")", nil
}

func (r *QueryRender) rawMessageFallback(tok *tokens.FieldValue, strict *StrictMappingError) (string, error) {
	op := tokens.OpContains
	if tok.Operator.Negated() {
		op = tokens.OpNotContains
	}
	v := tok.Value
	if tok.Operator == tokens.OpRegex || tok.Operator == tokens.OpNotRegex {
		v = asRegex(v)
	}
	s, err := r.cfg.FieldValue.Render(r.cfg.RawMessageField, op, v)
	if err != nil {
		var re *UnsupportedRegexError
		if errors.As(err, &re) {
			return "", &UnsupportedRegexError{Platform: r.cfg.Name, Field: tok.Field.SourceName, Value: re.Value, Unmapped: true}
		}
		return "", fmt.Errorf("%w: %v", strict, err)
	}
	return s, nil
}

func asRegex(v tokens.Value) tokens.Value {
	switch t := v.(type) {
	case tokens.List:
		out := make(tokens.List, 0, len(t))
		for _, it := range t {
			out = append(out, asRegex(it))
		}
		return out
	case tokens.Number:
		return t
	default:
		return tokens.StrValue{Text: tokens.Text(v), HasSpecSymbols: true}
	}
}

// MapField resolves the platform field names for f under mapping m.
func (r *QueryRender) MapField(f tokens.Field, m *mapping.SourceMapping) ([]string, error) {
	generic := GenericName(f, m.SourceID)
	if names := m.Fields.PlatformFieldNames(generic); len(names) > 0 {
		return names, nil
	}
	if r.cfg.StrictMapping {
		return nil, &StrictMappingError{Platform: r.cfg.Name, Field: f.SourceName, SourceID: m.SourceID}
	}
	if names := r.cfg.Mappings.Default().Fields.PlatformFieldNames(generic); len(names) > 0 {
		return names, nil
	}
	return []string{generic}, nil
}

// GenericName: name for sourceID, then the default mapping's, then the source name.
func GenericName(f tokens.Field, sourceID string) string {
	if g := f.GenericName(sourceID); g != "" {
		return g
	}
	if g := f.GenericName(mapping.DefaultMappingName); g != "" {
		return g
	}
	return f.SourceName
}

package sigma

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/PhucNguyen204/query_translator/pkg/compiler"
	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

// Escape: literal wildcards in plain values.
var Escape = escape.NewManager(map[escape.ValueType][]escape.Rule{
	escape.Value: {escape.SymbolRule(`*?`, `\`)},
})

var modifiers = map[tokens.OperatorType]string{
	tokens.OpContains:   "|contains",
	tokens.OpStartsWith: "|startswith",
	tokens.OpEndsWith:   "|endswith",
	tokens.OpRegex:      "|re",
	tokens.OpLt:         "|lt",
	tokens.OpLte:        "|lte",
	tokens.OpGt:         "|gt",
	tokens.OpGte:        "|gte",
}

// positive maps negated operators to the operator under "not".
var positive = map[tokens.OperatorType]tokens.OperatorType{
	tokens.OpNotEq:       tokens.OpEq,
	tokens.OpNotContains: tokens.OpContains,
	tokens.OpNotRegex:    tokens.OpRegex,
	tokens.OpIsNotNone:   tokens.OpIsNone,
}

// block is one detection entry: a field map (AND), a list of field maps (OR)
// or a keyword list.
type block struct {
	name     string
	fields   []entry
	anyOf    [][]entry
	keywords []any
}

type entry struct {
	key   string
	value any
}

// Render builds Sigma rules. Selection and keyword counters are per
// instance and restart on every Generate, so a Render must not be shared
// between goroutines.
type Render struct {
	repo   *mapping.Repository
	mapper *render.QueryRender
	log    *zap.SugaredLogger

	selections int
	keywords   int
	blocks     []*block
}

func NewRender(repo *mapping.Repository, opts render.Options) *Render {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Render{
		repo:   repo,
		mapper: render.New(render.Config{Name: Name, Mappings: repo, StrictMapping: opts.ForceStrict}),
		log:    log,
	}
}

func (r *Render) Name() string { return Name }

func (r *Render) reset() {
	r.selections, r.keywords = 0, 0
	r.blocks = nil
}

// Generate renders one rule, for the first resolved source mapping.
func (r *Render) Generate(q *query.TokenizedQuery) ([]render.Output, error) {
	r.reset()
	meta := q.Meta
	if meta == nil {
		meta = query.NewMetaInfo()
	}
	m := r.repo.SourceMappings(meta.SourceMappingIDs)[0]

	cond, err := r.condition(q.Tree, m)
	if err != nil {
		return nil, err
	}
	doc, err := r.document(meta, m, cond)
	if err != nil {
		return nil, err
	}
	doc += render.Annex(q.Functions.NotSupported, "#", "")
	r.log.Debugw("rendered sigma rule", "source_mapping", m.SourceID, "selections", r.selections, "keywords", r.keywords)
	return []render.Output{{SourceMappingID: m.SourceID, Query: doc}}, nil
}

func (r *Render) newSelection() *block {
	r.selections++
	b := &block{name: fmt.Sprintf("selection%d", r.selections)}
	r.blocks = append(r.blocks, b)
	return b
}

func (r *Render) newKeywords() *block {
	r.keywords++
	b := &block{name: fmt.Sprintf("keyword%d", r.keywords)}
	r.blocks = append(r.blocks, b)
	return b
}

// condition emits blocks for n and returns the condition expression.
func (r *Render) condition(n compiler.Node, m *mapping.SourceMapping) (string, error) {
	switch v := n.(type) {
	case nil:
		return "", nil
	case compiler.Leaf:
		return r.leaf(v.Token, m)
	case *compiler.Group:
		switch v.Op {
		case compiler.OpNone:
			if len(v.Children) == 0 {
				return "", nil
			}
			return r.condition(v.Children[0], m)
		case compiler.OpNot:
			inner, err := r.condition(v.Children[0], m)
			if err != nil {
				return "", err
			}
			return "not " + paren(inner), nil
		}
		children := flatten(v)
		join := " and "
		var parts []string
		if v.Op == compiler.OpOr {
			join = " or "
			if s, ok, err := r.mergedOr(children, m); ok || err != nil {
				return s, err
			}
		} else {
			entries, rest, err := r.splitAnd(children, m)
			if err != nil {
				return "", err
			}
			if len(entries) > 0 {
				b := r.newSelection()
				b.fields = entries
				parts = append(parts, b.name)
			}
			children = rest
		}
		for _, c := range children {
			s, err := r.condition(c, m)
			if err != nil {
				return "", err
			}
			if s == "" {
				continue
			}
			if cg, ok := c.(*compiler.Group); ok && cg.Op != compiler.OpNot {
				s = paren(s)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, join), nil
	}
	return "", fmt.Errorf("sigma: unknown node %T", n)
}

func paren(s string) string {
	if strings.Contains(s, " ") {
		return "(" + s + ")"
	}
	return s
}

// flatten lifts children of nested groups with the same operator.
func flatten(g *compiler.Group) []compiler.Node {
	var out []compiler.Node
	for _, c := range g.Children {
		if cg, ok := c.(*compiler.Group); ok && cg.Op == g.Op {
			out = append(out, flatten(cg)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// mergedOr folds an OR into one block when Sigma can list it directly:
// keywords, or values of a single field.
func (r *Render) mergedOr(children []compiler.Node, m *mapping.SourceMapping) (string, bool, error) {
	if allKeywords(children) {
		b := r.newKeywords()
		for _, c := range children {
			b.keywords = append(b.keywords, keywordValue(c.(compiler.Leaf).Keyword))
		}
		return b.name, true, nil
	}
	e, ok, err := r.anyOfEntry(children, m)
	if !ok || err != nil {
		return "", false, err
	}
	b := r.newSelection()
	b.fields = []entry{e}
	return b.name, true, nil
}

// splitAnd pulls the children of an AND that fit one field map, one entry
// per distinct key; the rest are rendered as separate blocks.
func (r *Render) splitAnd(children []compiler.Node, m *mapping.SourceMapping) ([]entry, []compiler.Node, error) {
	var entries []entry
	var rest []compiler.Node
	keys := map[string]bool{}
	for _, c := range children {
		var e entry
		var ok bool
		var err error
		switch v := c.(type) {
		case compiler.Leaf:
			e, ok, err = r.entryOf(v.Token, m)
		case *compiler.Group:
			if v.Op == compiler.OpOr {
				e, ok, err = r.anyOfEntry(flatten(v), m)
			}
		}
		if err != nil {
			return nil, nil, err
		}
		if !ok || keys[e.key] {
			rest = append(rest, c)
			continue
		}
		keys[e.key] = true
		entries = append(entries, e)
	}
	return entries, rest, nil
}

// entryOf: a non-negated comparison on a field with exactly one target name.
func (r *Render) entryOf(t tokens.Token, m *mapping.SourceMapping) (entry, bool, error) {
	if t.Kind != tokens.KindFieldValue || t.FieldValue.Operator.Negated() || t.FieldValue.Operator == tokens.OpIsNotNone {
		return entry{}, false, nil
	}
	names, err := r.mapper.MapField(t.FieldValue.Field, m)
	if err != nil || len(names) != 1 {
		return entry{}, false, err
	}
	return fieldEntry(names[0], t.FieldValue.Operator, t.FieldValue.Value), true, nil
}

// anyOfEntry folds an OR of comparisons sharing one key into a value list.
func (r *Render) anyOfEntry(children []compiler.Node, m *mapping.SourceMapping) (entry, bool, error) {
	var out entry
	var values []any
	for i, c := range children {
		l, ok := c.(compiler.Leaf)
		if !ok {
			return entry{}, false, nil
		}
		e, ok, err := r.entryOf(l.Token, m)
		if !ok || err != nil || (i > 0 && e.key != out.key) {
			return entry{}, false, err
		}
		out.key = e.key
		if list, ok := e.value.([]any); ok {
			values = append(values, list...)
			continue
		}
		values = append(values, e.value)
	}
	out.value = values
	return out, len(children) > 0, nil
}

func allKeywords(ns []compiler.Node) bool {
	for _, n := range ns {
		l, ok := n.(compiler.Leaf)
		if !ok || l.Kind != tokens.KindKeyword {
			return false
		}
	}
	return len(ns) > 0
}

func (r *Render) leaf(t tokens.Token, m *mapping.SourceMapping) (string, error) {
	if t.Kind == tokens.KindKeyword {
		b := r.newKeywords()
		b.keywords = []any{keywordValue(t.Keyword)}
		return b.name, nil
	}
	fv := t.FieldValue
	op, negate := fv.Operator, false
	if p, ok := positive[op]; ok {
		op, negate = p, true
	}
	names, err := r.mapper.MapField(fv.Field, m)
	if err != nil {
		return "", err
	}
	b := r.newSelection()
	if len(names) == 1 {
		b.fields = []entry{fieldEntry(names[0], op, fv.Value)}
	} else {
		for _, n := range names {
			b.anyOf = append(b.anyOf, []entry{fieldEntry(n, op, fv.Value)})
		}
	}
	if negate {
		return "not " + b.name, nil
	}
	return b.name, nil
}

func fieldEntry(field string, op tokens.OperatorType, v tokens.Value) entry {
	if op == tokens.OpIsNone {
		return entry{key: field, value: nil}
	}
	return entry{key: field + modifiers[op], value: value(v, op)}
}

func value(v tokens.Value, op tokens.OperatorType) any {
	switch t := v.(type) {
	case tokens.Number:
		tag := "!!int"
		if !t.IsInteger() {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}
	case tokens.String:
		if op == tokens.OpRegex {
			return string(t)
		}
		return Escape.Escape(string(t), escape.Value)
	case tokens.StrValue:
		return t.Text
	case tokens.List:
		out := make([]any, 0, len(t))
		for _, it := range t {
			out = append(out, value(it, op))
		}
		return out
	}
	return tokens.Text(v)
}

func keywordValue(kw *tokens.Keyword) any {
	v := value(kw.Value, kw.Operator)
	s, ok := v.(string)
	if !ok {
		return v
	}
	if kw.Wildcards&tokens.WildcardLeading != 0 || kw.Operator == tokens.OpContains || kw.Operator == tokens.OpEndsWith {
		s = "*" + s
	}
	if kw.Wildcards&tokens.WildcardTrailing != 0 || kw.Operator == tokens.OpContains || kw.Operator == tokens.OpStartsWith {
		s += "*"
	}
	return s
}

// document lays the rule out in the conventional Sigma key order.
func (r *Render) document(meta *query.MetaInfo, m *mapping.SourceMapping, cond string) (string, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, v *yaml.Node) {
		if v != nil {
			root.Content = append(root.Content, str(key), v)
		}
	}
	add("title", optional(meta.Title))
	add("id", optional(meta.ID))
	add("description", optional(meta.Description))
	add("status", str("experimental"))
	add("author", optional(meta.Author))
	add("date", optional(meta.Date))
	add("references", strList(meta.References))
	add("tags", strList(meta.Tags))
	add("logsource", logsource(meta, m))

	detection := &yaml.Node{Kind: yaml.MappingNode}
	for _, b := range r.blocks {
		n, err := b.node()
		if err != nil {
			return "", err
		}
		detection.Content = append(detection.Content, str(b.name), n)
	}
	detection.Content = append(detection.Content, str("condition"), str(cond))
	add("detection", detection)
	add("level", str(string(meta.Severity)))
	add("falsepositives", strList(meta.FalsePositives))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("sigma yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (b *block) node() (*yaml.Node, error) {
	if b.keywords != nil {
		n := &yaml.Node{}
		return n, n.Encode(b.keywords)
	}
	if b.anyOf != nil {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, es := range b.anyOf {
			mn, err := entriesNode(es)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, mn)
		}
		return seq, nil
	}
	return entriesNode(b.fields)
}

func entriesNode(es []entry) (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range es {
		v := &yaml.Node{}
		if err := v.Encode(e.value); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, str(e.key), v)
	}
	return n, nil
}

// logsource: parsed hints win, then the mapping's own selectors.
func logsource(meta *query.MetaInfo, m *mapping.SourceMapping) *yaml.Node {
	src := map[string]string{}
	for k, v := range m.Signature.LogSources() {
		if len(v) > 0 {
			src[k] = v[0]
		}
	}
	for _, k := range []string{"product", "category", "service"} {
		if v := meta.ParsedLogSources[k]; len(v) > 0 {
			src[k] = v[0]
		}
	}
	n := &yaml.Node{Kind: yaml.MappingNode}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return logsourceRank(keys[i]) < logsourceRank(keys[j]) || (logsourceRank(keys[i]) == logsourceRank(keys[j]) && keys[i] < keys[j])
	})
	for _, k := range keys {
		n.Content = append(n.Content, str(k), str(src[k]))
	}
	return n
}

func logsourceRank(k string) int {
	switch k {
	case "product":
		return 0
	case "category":
		return 1
	case "service":
		return 2
	}
	return 3
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func optional(s string) *yaml.Node {
	if s == "" {
		return nil
	}
	return str(s)
}

func strList(ss []string) *yaml.Node {
	if len(ss) == 0 {
		return nil
	}
	n := &yaml.Node{Kind: yaml.SequenceNode}
	for _, s := range ss {
		n.Content = append(n.Content, str(s))
	}
	return n
}

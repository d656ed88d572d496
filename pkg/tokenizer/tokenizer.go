// Package tokenizer lexes dialect query text into the generic token stream.
//
// A dialect is described by a Config of regex fragments (field names, number,
// unquoted, double-quoted and single-quoted literals) and operator tables. The
// lexer walks the text left to right; value literals are tried in a fixed order
// (number, unquoted, double-quoted, single-quoted) so that ambiguous input is
// resolved the same way on every run.
package tokenizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

// LexError reports malformed input; no tokens are emitted when it is returned.
type LexError struct {
	Offset  int
	Reason  string
	Context string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s near %q", e.Offset, e.Reason, e.Context)
}

// Config describes one dialect.
type Config struct {
	// FieldPattern matches a field name; must not contain capturing groups.
	FieldPattern string
	// Number and unquoted literals must be followed by end of input,
	// whitespace or ')' (',' inside lists).
	NumValuePattern      string
	NoQuotesValuePattern string
	// Quoted patterns must capture the literal body in group 1.
	DoubleQuotesValuePattern string
	SingleQuotesValuePattern string
	// RegexValuePattern (optional) captures a regex literal body in group 1,
	// e.g. /.../. A field compared to a regex literal becomes re / not_re.
	RegexValuePattern string

	SingleValueOperators map[string]tokens.OperatorType
	MultiValueOperators  map[string]tokens.OperatorType
	// CaseInsensitiveOperators applies to alphabetic operators (like, in, matches).
	CaseInsensitiveOperators bool

	// WildcardSymbol is stripped from value boundaries for equality operators.
	WildcardSymbol string
	// WildcardByOperator overrides WildcardSymbol per operator symbol (lower-case),
	// e.g. "like": "%".
	WildcardByOperator map[string]string

	LogicalOperators   map[string]tokens.IdentifierKind
	CaseSensitiveLogic bool

	// Keywords enables bare/quoted free-text terms.
	Keywords bool
	// ImplicitAnd inserts AND between adjacent operands.
	ImplicitAnd bool

	Escape escape.Manager
}

// DefaultLogicalOperators: and/or/not.
func DefaultLogicalOperators() map[string]tokens.IdentifierKind {
	return map[string]tokens.IdentifierKind{
		"and": tokens.IdentAnd,
		"or":  tokens.IdentOr,
		"not": tokens.IdentNot,
	}
}

type Tokenizer struct {
	cfg Config

	head      *regexp.Regexp
	logic     *regexp.Regexp
	num       *regexp.Regexp
	noQuotes  *regexp.Regexp
	dQuotes   *regexp.Regexp
	sQuotes   *regexp.Regexp
	regex     *regexp.Regexp
	opSymbols map[string]string // normalized symbol -> table key
}

// New compiles cfg. It fails only on invalid regex fragments.
func New(cfg Config) (*Tokenizer, error) {
	if cfg.LogicalOperators == nil {
		cfg.LogicalOperators = DefaultLogicalOperators()
	}
	t := &Tokenizer{cfg: cfg, opSymbols: map[string]string{}}

	var ops []string
	for sym := range cfg.SingleValueOperators {
		ops = append(ops, sym)
	}
	for sym := range cfg.MultiValueOperators {
		ops = append(ops, sym)
	}
	// dài trước ngắn: "<=" phải thử trước "<"
	sort.Slice(ops, func(i, j int) bool {
		if len(ops[i]) != len(ops[j]) {
			return len(ops[i]) > len(ops[j])
		}
		return ops[i] < ops[j]
	})
	alts := make([]string, 0, len(ops))
	for _, sym := range ops {
		t.opSymbols[t.normOp(sym)] = sym
		q := strings.ReplaceAll(regexp.QuoteMeta(sym), " ", `\s+`)
		if isAlpha(sym[len(sym)-1]) {
			q += `\b`
		}
		if isAlpha(sym[0]) {
			q = `\s` + q
		}
		alts = append(alts, q)
	}
	opPat := strings.Join(alts, "|")
	if cfg.CaseInsensitiveOperators {
		opPat = "(?i:" + opPat + ")"
	}

	var err error
	compile := func(dst **regexp.Regexp, pat string) {
		if err != nil || pat == "" {
			return
		}
		*dst, err = regexp.Compile(`^(?:` + pat + `)`)
	}
	compile(&t.head, `(?P<field>`+cfg.FieldPattern+`)\s*(?P<op>`+opPat+`)\s*`)
	compile(&t.num, cfg.NumValuePattern)
	compile(&t.noQuotes, cfg.NoQuotesValuePattern)
	compile(&t.dQuotes, cfg.DoubleQuotesValuePattern)
	compile(&t.sQuotes, cfg.SingleQuotesValuePattern)
	compile(&t.regex, cfg.RegexValuePattern)

	var logic []string
	for word := range cfg.LogicalOperators {
		logic = append(logic, regexp.QuoteMeta(word))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(logic)))
	logicPat := `(` + strings.Join(logic, "|") + `)(?:\s+|$|[(])`
	if !cfg.CaseSensitiveLogic {
		logicPat = `(?i)` + logicPat
	}
	compile(&t.logic, logicPat)
	if err != nil {
		return nil, fmt.Errorf("compile tokenizer: %w", err)
	}
	return t, nil
}

// MustNew panics on invalid configuration; for package-level dialect tables.
func MustNew(cfg Config) *Tokenizer {
	t, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tokenizer) normOp(sym string) string {
	sym = strings.Join(strings.Fields(sym), " ")
	if t.cfg.CaseInsensitiveOperators {
		return strings.ToLower(sym)
	}
	return sym
}

// Tokenize lexes query. The output has implicit ANDs inserted when the
// dialect allows elision.
func (t *Tokenizer) Tokenize(query string) ([]tokens.Token, error) {
	l := &lexer{t: t, src: query}
	out, err := l.run()
	if err != nil {
		return nil, err
	}
	if t.cfg.ImplicitAnd {
		out = InsertImplicitAnd(out)
	}
	return out, nil
}

type lexer struct {
	t   *Tokenizer
	src string
	pos int
	out []tokens.Token
	// regexLit is set by scalar when the last literal was a regex.
	regexLit bool
}

func (l *lexer) rest() string { return l.src[l.pos:] }

func (l *lexer) fail(reason string) error {
	ctx := l.rest()
	if len(ctx) > 24 {
		ctx = ctx[:24]
	}
	return &LexError{Offset: l.pos, Reason: reason, Context: ctx}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) run() ([]tokens.Token, error) {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return l.out, nil
		}
		switch l.src[l.pos] {
		case '(':
			l.out = append(l.out, tokens.LParen)
			l.pos++
			continue
		case ')':
			l.out = append(l.out, tokens.RParen)
			l.pos++
			continue
		}
		if m := l.t.logic.FindStringSubmatch(l.rest()); m != nil {
			word := m[1]
			if !l.t.cfg.CaseSensitiveLogic {
				word = strings.ToLower(word)
			}
			kind, ok := l.t.cfg.LogicalOperators[word]
			if !ok {
				return nil, l.fail("unknown logical operator " + m[1])
			}
			l.out = append(l.out, tokens.NewIdentifier(kind))
			l.pos += len(m[1])
			continue
		}
		ok, err := l.fieldValue()
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}
		if l.t.cfg.Keywords {
			ok, err = l.keyword()
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
		}
		return nil, l.fail("unexpected input")
	}
}

func (l *lexer) fieldValue() (bool, error) {
	loc := l.t.head.FindStringSubmatchIndex(l.rest())
	if loc == nil {
		return false, nil
	}
	field := l.rest()[loc[2]:loc[3]]
	sym := l.t.normOp(l.rest()[loc[4]:loc[5]])
	start := l.pos
	l.pos += loc[1]

	key := l.t.opSymbols[sym]
	if op, ok := l.t.cfg.MultiValueOperators[key]; ok {
		list, err := l.list()
		if err != nil {
			return false, err
		}
		l.emitFieldValue(field, key, op, list)
		return true, nil
	}
	op := l.t.cfg.SingleValueOperators[key]
	v, err := l.scalar(false)
	if err != nil {
		return false, err
	}
	if v == nil {
		l.pos = start
		return false, l.fail(fmt.Sprintf("missing value for field %q", field))
	}
	if l.regexLit {
		l.regexLit = false
		l.emitRegex(field, op, v)
		return true, nil
	}
	l.emitFieldValue(field, key, op, v)
	return true, nil
}

func (l *lexer) keyword() (bool, error) {
	if c := l.src[l.pos]; c == '"' || c == '\'' {
		v, err := l.scalar(false)
		if err != nil || v == nil {
			return false, err
		}
		l.emitKeyword(v)
		return true, nil
	}
	if l.t.regex != nil {
		if m := l.t.regex.FindStringSubmatch(l.rest()); m != nil {
			l.pos += len(m[0])
			l.out = append(l.out, tokens.NewKeyword(tokens.Keyword{Operator: tokens.OpRegex, Value: tokens.String(unescapeSlash(m[1]))}))
			return true, nil
		}
	}
	if l.t.noQuotes == nil {
		return false, nil
	}
	m := l.t.noQuotes.FindString(l.rest())
	if m == "" || !l.boundary(l.pos+len(m), false) {
		return false, nil
	}
	l.pos += len(m)
	l.emitKeyword(tokens.String(m))
	return true, nil
}

// scalar parses one literal in the fixed order number, unquoted, double, single.
func (l *lexer) scalar(inList bool) (tokens.Value, error) {
	rest := l.rest()
	if l.t.regex != nil {
		if m := l.t.regex.FindStringSubmatch(rest); m != nil {
			l.pos += len(m[0])
			l.regexLit = !inList
			return tokens.String(unescapeSlash(m[1])), nil
		}
	}
	if l.t.num != nil {
		if m := l.t.num.FindString(rest); m != "" && l.boundary(l.pos+len(m), inList) {
			n, err := tokens.ParseNumber(m)
			if err == nil {
				l.pos += len(m)
				return n, nil
			}
		}
	}
	if l.t.noQuotes != nil {
		if m := l.t.noQuotes.FindString(rest); m != "" && l.boundary(l.pos+len(m), inList) {
			l.pos += len(m)
			return tokens.String(m), nil
		}
	}
	if l.t.dQuotes != nil {
		if m := l.t.dQuotes.FindStringSubmatch(rest); m != nil {
			l.pos += len(m[0])
			return tokens.String(l.t.cfg.Escape.Unescape(m[1], escape.DoubleQuotesValue)), nil
		}
	}
	if l.t.sQuotes != nil {
		if m := l.t.sQuotes.FindStringSubmatch(rest); m != nil {
			l.pos += len(m[0])
			return tokens.String(l.t.cfg.Escape.Unescape(m[1], escape.SingleQuotesValue)), nil
		}
	}
	if rest != "" && (rest[0] == '"' || rest[0] == '\'') {
		return nil, l.fail("unterminated quoted value")
	}
	return nil, nil
}

func (l *lexer) list() (tokens.List, error) {
	if l.pos >= len(l.src) || l.src[l.pos] != '(' {
		return nil, l.fail("expected '(' after multi-value operator")
	}
	l.pos++
	var out tokens.List
	for {
		l.skipSpace()
		if l.pos < len(l.src) && l.src[l.pos] == ')' && len(out) == 0 {
			l.pos++
			return out, nil
		}
		v, err := l.scalar(true)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, l.fail("invalid list value")
		}
		out = append(out, v)
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, l.fail("unterminated value list")
		}
		switch l.src[l.pos] {
		case ',':
			l.pos++
		case ')':
			l.pos++
			return out, nil
		default:
			return nil, l.fail("expected ',' or ')' in value list")
		}
	}
}

func (l *lexer) boundary(i int, inList bool) bool {
	if i >= len(l.src) {
		return true
	}
	switch l.src[i] {
	case ' ', '\t', '\n', '\r', ')':
		return true
	case ',':
		return inList
	}
	return false
}

func (l *lexer) wildcard(opKey string) string {
	if w, ok := l.t.cfg.WildcardByOperator[strings.ToLower(opKey)]; ok {
		return w
	}
	return l.t.cfg.WildcardSymbol
}

func (l *lexer) emitFieldValue(field, opKey string, op tokens.OperatorType, v tokens.Value) {
	fv := tokens.FieldValue{Field: tokens.NewField(strings.Trim(field, `"`)), Operator: op, Value: v}
	negate := false
	if s, ok := v.(tokens.String); ok {
		fv.Operator, fv.Value, fv.Wildcards, negate = PromoteWildcards(op, string(s), l.wildcard(opKey))
	}
	if list, ok := v.(tokens.List); ok {
		fv.Value = normalizeList(list, l.wildcard(opKey))
	}
	if negate {
		l.out = append(l.out, tokens.Not, tokens.LParen, tokens.NewFieldValue(fv), tokens.RParen)
		return
	}
	l.out = append(l.out, tokens.NewFieldValue(fv))
}

func (l *lexer) emitRegex(field string, op tokens.OperatorType, v tokens.Value) {
	if op == tokens.OpNotEq {
		op = tokens.OpNotRegex
	} else {
		op = tokens.OpRegex
	}
	fv := tokens.FieldValue{Field: tokens.NewField(strings.Trim(field, `"`)), Operator: op, Value: v}
	l.out = append(l.out, tokens.NewFieldValue(fv))
}

// unescapeSlash: "\/" inside /.../ is a literal slash.
func unescapeSlash(s string) string {
	return strings.ReplaceAll(s, `\/`, "/")
}

func (l *lexer) emitKeyword(v tokens.Value) {
	kw := tokens.Keyword{Operator: tokens.OpKeyword, Value: v}
	if s, ok := v.(tokens.String); ok {
		var op tokens.OperatorType
		op, kw.Value, kw.Wildcards, _ = PromoteWildcards(tokens.OpEq, string(s), l.t.cfg.WildcardSymbol)
		if op == tokens.OpIsNotNone {
			kw.Value = tokens.String("")
		}
	}
	l.out = append(l.out, tokens.NewKeyword(kw))
}

// PromoteWildcards strips boundary wildcards and turns equality into
// contains/startswith/endswith. negate is set when a negated equality had to
// be promoted to a non-negatable operator; the caller wraps it in NOT.
func PromoteWildcards(op tokens.OperatorType, text, sym string) (tokens.OperatorType, tokens.Value, tokens.Wildcards, bool) {
	if sym == "" || (op != tokens.OpEq && op != tokens.OpNotEq) {
		return op, stringValue(text, sym), 0, false
	}
	if text == sym {
		if op == tokens.OpEq {
			return tokens.OpIsNotNone, tokens.String(""), tokens.WildcardLeading | tokens.WildcardTrailing, false
		}
		return tokens.OpIsNone, tokens.String(""), tokens.WildcardLeading | tokens.WildcardTrailing, false
	}
	var w tokens.Wildcards
	if strings.HasPrefix(text, sym) {
		w |= tokens.WildcardLeading
		text = text[len(sym):]
	}
	if strings.HasSuffix(text, sym) && !strings.HasSuffix(text, `\`+sym) {
		w |= tokens.WildcardTrailing
		text = text[:len(text)-len(sym)]
	}
	v := stringValue(text, sym)
	switch {
	case w == tokens.WildcardLeading|tokens.WildcardTrailing:
		if op == tokens.OpNotEq {
			return tokens.OpNotContains, v, w, false
		}
		return tokens.OpContains, v, w, false
	case w == tokens.WildcardLeading:
		return tokens.OpEndsWith, v, w, op == tokens.OpNotEq
	case w == tokens.WildcardTrailing:
		return tokens.OpStartsWith, v, w, op == tokens.OpNotEq
	}
	return op, v, 0, false
}

// stringValue keeps inner wildcards as canonical '*' inside a StrValue.
func stringValue(text, sym string) tokens.Value {
	if sym == "" || !strings.Contains(text, sym) {
		return tokens.String(text)
	}
	if sym != "*" {
		text = strings.ReplaceAll(text, sym, "*")
	}
	return tokens.StrValue{Text: text, HasSpecSymbols: true}
}

func normalizeList(list tokens.List, sym string) tokens.List {
	out := make(tokens.List, 0, len(list))
	for _, v := range list {
		if s, ok := v.(tokens.String); ok {
			out = append(out, stringValue(string(s), sym))
			continue
		}
		out = append(out, v)
	}
	return out
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

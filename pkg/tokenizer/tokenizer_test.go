package tokenizer

import (
	"errors"
	"regexp"
	"testing"

	"github.com/PhucNguyen204/query_translator/pkg/escape"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

func testTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tk, err := New(Config{
		FieldPattern:             `[a-zA-Z_][a-zA-Z0-9_.]*`,
		NumValuePattern:          `-?\d+(?:\.\d+)?`,
		NoQuotesValuePattern:     `[^\s"'(),=<>!]+`,
		DoubleQuotesValuePattern: `"((?:[^"\\]|\\.)*)"`,
		SingleQuotesValuePattern: `'((?:[^'\\]|\\.)*)'`,
		SingleValueOperators: map[string]tokens.OperatorType{
			"=": tokens.OpEq, "!=": tokens.OpNotEq,
			"<": tokens.OpLt, "<=": tokens.OpLte, ">": tokens.OpGt, ">=": tokens.OpGte,
		},
		MultiValueOperators:      map[string]tokens.OperatorType{"in": tokens.OpEq},
		CaseInsensitiveOperators: true,
		WildcardSymbol:           "*",
		Keywords:                 true,
		ImplicitAnd:              true,
		Escape: escape.NewManager(map[escape.ValueType][]escape.Rule{
			escape.DoubleQuotesValue: {escape.SymbolRule(`\"`, `\`)},
		}),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return tk
}

func TestTokenizeImplicitAnd(t *testing.T) {
	tk := testTokenizer(t)
	out, err := tk.Tokenize(`EventCode=4688 Image="c:\\cmd.exe"`)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out) != 3 || !out[1].Is(tokens.IdentAnd) {
		t.Fatalf("bad tokens: %s", tokens.Format(out))
	}
	if n, ok := out[0].FieldValue.Value.(tokens.Number); !ok || n != "4688" {
		t.Fatalf("want number 4688, got %#v", out[0].FieldValue.Value)
	}
	if got := tokens.Text(out[2].FieldValue.Value); got != `c:\cmd.exe` {
		t.Fatalf("unescaped value = %q", got)
	}
}

func TestTokenizeRegexLiteral(t *testing.T) {
	tk, err := New(Config{
		FieldPattern:         `[a-zA-Z_][a-zA-Z0-9_.]*`,
		NoQuotesValuePattern: `[^\s"()=!]+`,
		RegexValuePattern:    `/((?:[^/\\]|\\.)*)/[a-zA-Z]*`,
		SingleValueOperators: map[string]tokens.OperatorType{"=": tokens.OpEq, "!=": tokens.OpNotEq},
		WildcardSymbol:       "*",
		Keywords:             true,
		ImplicitAnd:          true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := tk.Tokenize(`CommandLine=/who\/ami/i Image!=/x.*/ /mimi/`)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := tokens.Format(out); got != "CommandLine re who/ami AND Image not_re x.* AND re mimi" {
		t.Fatalf("tokens = %s", got)
	}
}

func TestInsertImplicitAndIdempotent(t *testing.T) {
	tk := testTokenizer(t)
	out, err := tk.Tokenize(`a=1 (b=2 OR c=3) NOT d=4 mimikatz`)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	again := InsertImplicitAnd(out)
	if tokens.Format(again) != tokens.Format(out) {
		t.Fatalf("second pass changed stream:\n%s\n%s", tokens.Format(out), tokens.Format(again))
	}
	want := "a eq 1 AND ( b eq 2 OR c eq 3 ) AND NOT d eq 4 AND keywords mimikatz"
	if got := tokens.Format(out); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestTokenizeWildcardPromotion(t *testing.T) {
	tk := testTokenizer(t)
	cases := []struct {
		in   string
		op   tokens.OperatorType
		text string
	}{
		{`cmd="*mimikatz*"`, tokens.OpContains, "mimikatz"},
		{`cmd=powershell*`, tokens.OpStartsWith, "powershell"},
		{`cmd=*.exe`, tokens.OpEndsWith, ".exe"},
		{`cmd=*`, tokens.OpIsNotNone, ""},
		{`cmd!="*x*"`, tokens.OpNotContains, "x"},
	}
	for _, c := range cases {
		out, err := tk.Tokenize(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if len(out) != 1 {
			t.Fatalf("%s: bad tokens %s", c.in, tokens.Format(out))
		}
		fv := out[0].FieldValue
		if fv.Operator != c.op || tokens.Text(fv.Value) != c.text {
			t.Fatalf("%s: got %s %q", c.in, fv.Operator, tokens.Text(fv.Value))
		}
	}
}

func TestTokenizeNegatedStartsWithWrapsNot(t *testing.T) {
	tk := testTokenizer(t)
	out, err := tk.Tokenize(`cmd!=foo*`)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := tokens.Format(out); got != "NOT ( cmd startswith foo )" {
		t.Fatalf("got %q", got)
	}
}

func TestTokenizeInnerWildcardKeepsSpecSymbols(t *testing.T) {
	tk := testTokenizer(t)
	out, err := tk.Tokenize(`cmd="a*b"`)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	sv, ok := out[0].FieldValue.Value.(tokens.StrValue)
	if !ok || !sv.HasSpecSymbols || sv.Text != "a*b" {
		t.Fatalf("want StrValue a*b, got %#v", out[0].FieldValue.Value)
	}
}

func TestTokenizeList(t *testing.T) {
	tk := testTokenizer(t)
	out, err := tk.Tokenize(`EventCode IN (1, "two", c*)`)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	list, ok := out[0].FieldValue.Value.(tokens.List)
	if !ok || len(list) != 3 {
		t.Fatalf("bad list: %#v", out[0].FieldValue.Value)
	}
	if _, ok := list[0].(tokens.Number); !ok {
		t.Fatalf("first item not a number: %#v", list[0])
	}
	if sv, ok := list[2].(tokens.StrValue); !ok || !sv.HasSpecSymbols {
		t.Fatalf("third item should keep wildcard: %#v", list[2])
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	tk := testTokenizer(t)
	out, err := tk.Tokenize(`a=1 b="open`)
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("want LexError, got %v", err)
	}
	if out != nil {
		t.Fatalf("tokens must not be emitted on error: %s", tokens.Format(out))
	}
	if lexErr.Offset != 6 {
		t.Fatalf("offset = %d", lexErr.Offset)
	}
}

func TestTokenizeMissingValue(t *testing.T) {
	tk := testTokenizer(t)
	if _, err := tk.Tokenize(`a= `); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExtractLogSources(t *testing.T) {
	patterns := []SourcePattern{{
		Key:     "index",
		Pattern: regexp.MustCompile(`(?i)\bindex\s*=\s*(?P<value>"[^"]*"|[^\s()]+)`),
	}}
	hints, rest := ExtractLogSources(`a=1 AND index=win AND (index="sysmon" OR b=2)`, patterns)
	if got := hints["index"]; len(got) != 2 || got[0] != "win" || got[1] != "sysmon" {
		t.Fatalf("hints = %v", hints)
	}
	if rest != "a=1 AND (b=2)" {
		t.Fatalf("rest = %q", rest)
	}
}

func TestExtractLogSourcesList(t *testing.T) {
	patterns := []SourcePattern{{
		Key:     "qid",
		Pattern: regexp.MustCompile(`(?i)\bqid\s+in\s*\((?P<values>[^)]*)\)`),
	}}
	hints, rest := ExtractLogSources(`qid IN (5000, '5001') and x = 1`, patterns)
	if got := hints["qid"]; len(got) != 2 || got[1] != "5001" {
		t.Fatalf("hints = %v", hints)
	}
	if rest != "x = 1" {
		t.Fatalf("rest = %q", rest)
	}
}

func TestExtractLogSourcesSkipsQuotedValues(t *testing.T) {
	patterns := []SourcePattern{{
		Key:     "index",
		Pattern: regexp.MustCompile(`(?i)\bindex\s*=\s*(?P<value>"[^"]*"|[^\s()]+)`),
	}}
	hints, rest := ExtractLogSources(`cmd="net view index=2 \" index=x" index=win`, patterns)
	if got := hints["index"]; len(got) != 1 || got[0] != "win" {
		t.Fatalf("hints = %v", hints)
	}
	if rest != `cmd="net view index=2 \" index=x"` {
		t.Fatalf("rest = %q", rest)
	}
}

package splunk

import (
	"errors"
	"strings"
	"testing"

	"github.com/PhucNguyen204/query_translator/mappings"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	repo, err := LoadMappings(mappings.FS)
	if err != nil {
		t.Fatalf("load mappings: %v", err)
	}
	return NewParser(repo)
}

func TestParseExtractsHintsAndFunctions(t *testing.T) {
	p := newTestParser(t)
	q, err := p.Parse(query.RawQuery{Query: `index=windows source="WinEventLog:Security" EventCode=4688 Process_Command_Line="*whoami*" | stats count by User | eval x=1`})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := q.Meta.SourceMappingIDs; len(got) != 1 || got[0] != "windows_security" {
		t.Fatalf("source mappings = %v", got)
	}
	if got := q.Meta.ParsedLogSources["source"]; len(got) != 1 || got[0] != "WinEventLog:Security" {
		t.Fatalf("source hint = %v", got)
	}
	if got := tokens.Format(q.Tokens); got != "EventCode eq 4688 AND Process_Command_Line contains whoami" {
		t.Fatalf("tokens = %s", got)
	}
	if len(q.Functions.Functions) != 1 || q.Functions.Functions[0].Name != "stats" {
		t.Fatalf("functions = %+v", q.Functions)
	}
	if len(q.Functions.NotSupported) != 1 || q.Functions.NotSupported[0] != "eval x=1" {
		t.Fatalf("not supported = %v", q.Functions.NotSupported)
	}
}

func TestRoundTrip(t *testing.T) {
	p := newTestParser(t)
	q, err := p.Parse(query.RawQuery{Query: `source="WinEventLog:Security" EventCode=4688 Process_Command_Line="*whoami*" | stats count by User`})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := NewRender(p.Mappings, render.Options{}).Generate(q)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := `source="WinEventLog:Security" EventCode=4688 AND Process_Command_Line="*whoami*" | stats count by User`
	if len(out) != 1 || out[0].Query != want {
		t.Fatalf("got %+v\nwant %s", out, want)
	}
}

func TestDialect(t *testing.T) {
	d := Dialect{Platform: Name}
	cases := []struct {
		field string
		op    tokens.OperatorType
		v     tokens.Value
		want  string
	}{
		{"Image", tokens.OpEq, tokens.String(`a"b`), `Image="a\"b"`},
		{"EventCode", tokens.OpEq, tokens.Number("1"), `EventCode=1`},
		{"Image", tokens.OpNotEq, tokens.String("x"), `Image!="x"`},
		{"Image", tokens.OpStartsWith, tokens.String("x"), `Image="x*"`},
		{"Image", tokens.OpEndsWith, tokens.String("x"), `Image="*x"`},
		{"Image", tokens.OpNotContains, tokens.String("x"), `NOT Image="*x*"`},
		{"Image", tokens.OpEq, tokens.StrValue{Text: "a*b", HasSpecSymbols: true}, `Image="a*b"`},
		{"Image", tokens.OpIsNotNone, nil, `Image=*`},
		{"Image", tokens.OpIsNone, nil, `NOT Image=*`},
		{"", tokens.OpKeyword, tokens.String("mimikatz"), `"mimikatz"`},
	}
	for _, c := range cases {
		got, err := d.Scalar(c.field, c.op, c.v)
		if err != nil {
			t.Fatalf("%s %s: %v", c.field, c.op, err)
		}
		if got != c.want {
			t.Fatalf("%s %s: got %s want %s", c.field, c.op, got, c.want)
		}
	}
	got, _ := d.In("EventCode", tokens.List{tokens.Number("1"), tokens.String("2")})
	if got != `EventCode IN (1, "2")` {
		t.Fatalf("in: %s", got)
	}
}

func TestRegexIsUnsupported(t *testing.T) {
	_, err := Dialect{Platform: Name}.Scalar("Image", tokens.OpRegex, tokens.String(".*"))
	var ue *render.UnsupportedConstructError
	if !errors.As(err, &ue) || ue.Tier != render.Hard {
		t.Fatalf("got %v", err)
	}
}

func translate(t *testing.T, p *Parser, text string) (*query.TokenizedQuery, string) {
	t.Helper()
	q, err := p.Parse(query.RawQuery{Query: text})
	if err != nil {
		t.Fatalf("parse %s: %v", text, err)
	}
	out, err := NewRender(p.Mappings, render.Options{}).Generate(q)
	if err != nil {
		t.Fatalf("generate %s: %v", text, err)
	}
	return q, out[0].Query
}

func TestRoundTripKeepsNumberLexeme(t *testing.T) {
	p := newTestParser(t)
	_, got := translate(t, p, `EventRecordID=12345678901234567891 Code=007`)
	if !strings.Contains(got, "EventRecordID=12345678901234567891") || !strings.Contains(got, "Code=007") {
		t.Fatalf("numbers changed: %s", got)
	}
}

func TestSelectorInsideQuotedValueIsKept(t *testing.T) {
	p := newTestParser(t)
	cases := map[string]string{
		`CommandLine="net view index=2 /all"`:                          `CommandLine="net view index=2 /all"`,
		`CommandLine="cmd /c findstr index=secret" Image="*\\cmd.exe"`: `CommandLine="cmd /c findstr index=secret"`,
	}
	for in, want := range cases {
		q, got := translate(t, p, in)
		if len(q.Meta.ParsedLogSources["index"]) != 0 {
			t.Fatalf("%s: index hint = %v", in, q.Meta.ParsedLogSources["index"])
		}
		if !strings.Contains(got, want) {
			t.Fatalf("%s: got %s", in, got)
		}
	}
}

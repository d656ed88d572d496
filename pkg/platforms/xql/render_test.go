package xql

import (
	"testing"

	"github.com/PhucNguyen204/query_translator/mappings"
	"github.com/PhucNguyen204/query_translator/pkg/compiler"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

func TestDialect(t *testing.T) {
	d := Dialect{}
	cases := []struct {
		field string
		op    tokens.OperatorType
		v     tokens.Value
		want  string
	}{
		{"f", tokens.OpEq, tokens.String(`a"b`), `f = "a\"b"`},
		{"f", tokens.OpEq, tokens.Number("4688"), `f = 4688`},
		{"f", tokens.OpContains, tokens.String("whoami"), `f contains "whoami"`},
		{"f", tokens.OpNotContains, tokens.String("whoami"), `f not contains "whoami"`},
		{"f", tokens.OpContains, tokens.String(`dir\`), `f ~= ".*dir\\.*"`},
		{"f", tokens.OpEndsWith, tokens.String("cmd.exe"), `f ~= ".*cmd\.exe"`},
		{"f", tokens.OpStartsWith, tokens.String("C:"), `f ~= "C\:.*"`},
		{"f", tokens.OpEq, tokens.StrValue{Text: "a*b", HasSpecSymbols: true}, `f ~= "^a.*b$"`},
		{"f", tokens.OpRegex, tokens.String(`\d+`), `f ~= "\d+"`},
		{"f", tokens.OpIsNone, tokens.String(""), `f = null`},
		{"", tokens.OpKeyword, tokens.String("mimikatz"), `_raw_log contains "mimikatz"`},
	}
	for _, c := range cases {
		got, err := d.Scalar(c.field, c.op, c.v)
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %s want %s", c.op, got, c.want)
		}
	}

	got, _ := d.In("f", tokens.List{tokens.String("a"), tokens.Number("2")})
	if got != `f in ("a", 2)` {
		t.Fatalf("in: %s", got)
	}
	got, _ = d.In("f", tokens.List{tokens.String("a"), tokens.StrValue{Text: "b*", HasSpecSymbols: true}})
	if got != `(f = "a" or f ~= "^b.*$")` {
		t.Fatalf("glob list: %s", got)
	}
}

func TestGenerate(t *testing.T) {
	repo, err := LoadMappings(mappings.FS)
	if err != nil {
		t.Fatalf("load mappings: %v", err)
	}
	f := tokens.NewField("CommandLine").WithGenericName("windows_process_creation", "CommandLine")
	tree, err := compiler.Compile([]tokens.Token{
		tokens.NewFieldValue(tokens.FieldValue{Field: f, Operator: tokens.OpContains, Value: tokens.String("whoami")}),
		tokens.Or,
		tokens.NewKeyword(tokens.Keyword{Operator: tokens.OpKeyword, Value: tokens.String("mimikatz")}),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	meta := query.NewMetaInfo()
	meta.SourceMappingIDs = []string{"windows_process_creation"}
	out, err := NewRender(repo, render.Options{}).Generate(&query.TokenizedQuery{Tree: tree, Meta: meta})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := `preset = xdr_process | filter action_process_image_command_line contains "whoami" or _raw_log contains "mimikatz"`
	if len(out) != 1 || out[0].Query != want {
		t.Fatalf("got %+v", out)
	}
}

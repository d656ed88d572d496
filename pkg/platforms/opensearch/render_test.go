package opensearch

import (
	"encoding/json"
	"strings"
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
		{"process.executable", tokens.OpEq, tokens.String(`C:\a b`), `process.executable:"C:\\a b"`},
		{"event.code", tokens.OpEq, tokens.Number("4688"), `event.code:4688`},
		{"event.code", tokens.OpNotEq, tokens.Number("1"), `NOT event.code:1`},
		{"event.code", tokens.OpGte, tokens.Number("5"), `event.code:>=5`},
		{"process.command_line", tokens.OpContains, tokens.String("a b"), `process.command_line:*a\ b*`},
		{"process.executable", tokens.OpEndsWith, tokens.String(`\cmd.exe`), `process.executable:*\\cmd.exe`},
		{"process.executable", tokens.OpStartsWith, tokens.String("C:"), `process.executable:C\:*`},
		{"process.executable", tokens.OpEq, tokens.StrValue{Text: "a*(b)", HasSpecSymbols: true}, `process.executable:a*\(b\)`},
		{"process.command_line", tokens.OpRegex, tokens.String("a/b.*"), `process.command_line:/a\/b.*/`},
		{"user.name", tokens.OpIsNotNone, tokens.String(""), `_exists_:user.name`},
		{"user.name", tokens.OpIsNone, tokens.String(""), `NOT _exists_:user.name`},
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
	got, _ := d.In("event.code", tokens.List{tokens.Number("1"), tokens.String("x")})
	if got != `event.code:(1 OR "x")` {
		t.Fatalf("in: %s", got)
	}
}

func sampleQuery(t *testing.T) *query.TokenizedQuery {
	t.Helper()
	f := tokens.NewField("CommandLine").WithGenericName("windows_process_creation", "CommandLine")
	tree, err := compiler.Compile([]tokens.Token{tokens.NewFieldValue(tokens.FieldValue{Field: f, Operator: tokens.OpContains, Value: tokens.String("whoami")})})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	meta := query.NewMetaInfo()
	meta.Title = "Whoami"
	meta.Severity = query.SeverityHigh
	meta.SourceMappingIDs = []string{"windows_process_creation"}
	return &query.TokenizedQuery{Tree: tree, Meta: meta, Functions: query.ParsedFunctions{NotSupported: []string{"eval x=1"}}}
}

func TestGenerate(t *testing.T) {
	repo, err := LoadMappings(mappings.FS)
	if err != nil {
		t.Fatalf("load mappings: %v", err)
	}
	out, err := NewRender(repo, render.Options{}).Generate(sampleQuery(t))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(out[0].Query, "process.command_line:*whoami*\n\n// ") {
		t.Fatalf("got %q", out[0].Query)
	}
}

func TestRuleEnvelope(t *testing.T) {
	repo, err := LoadMappings(mappings.FS)
	if err != nil {
		t.Fatalf("load mappings: %v", err)
	}
	out, err := NewRuleRender(repo, render.Options{}).Generate(sampleQuery(t))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	doc, annex, ok := strings.Cut(out[0].Query, "\n\n//")
	if !ok || !strings.Contains(annex, "eval x=1") {
		t.Fatalf("annex must follow the document: %q", out[0].Query)
	}
	var m Monitor
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Name != "Whoami" || m.Triggers[0].Severity != "4" {
		t.Fatalf("monitor = %+v", m)
	}
	if got := m.Inputs[0].Search.Query.Query.Bool.Must[0].QueryString.Query; got != "process.command_line:*whoami*" {
		t.Fatalf("query = %s", got)
	}
	if got := m.Inputs[0].Search.Indices; len(got) != 1 || got[0] != "winlogbeat-*" {
		t.Fatalf("indices = %v", got)
	}
}

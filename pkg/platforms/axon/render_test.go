package axon

import (
	"errors"
	"strings"
	"testing"

	"github.com/PhucNguyen204/query_translator/mappings"
	"github.com/PhucNguyen204/query_translator/pkg/compiler"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

func loadRepo(t *testing.T) *mapping.Repository {
	t.Helper()
	repo, err := LoadMappings(mappings.FS)
	if err != nil {
		t.Fatalf("load mappings: %v", err)
	}
	return repo
}

func field(name, generic, sourceID string) tokens.Field {
	return tokens.NewField(name).WithGenericName(sourceID, generic)
}

func TestDialect(t *testing.T) {
	d := Dialect{}
	cases := []struct {
		op   tokens.OperatorType
		v    tokens.Value
		want string
	}{
		{tokens.OpEq, tokens.String("cmd.exe"), `process.path = "cmd.exe"`},
		{tokens.OpNotEq, tokens.Number("4"), `process.path != 4`},
		{tokens.OpGt, tokens.Number("4"), `process.path > 4`},
		{tokens.OpContains, tokens.String("whoami"), `process.path CONTAINS "whoami"`},
		{tokens.OpStartsWith, tokens.String("C:.x"), `process.path matches "^C:\.x.*"`},
		{tokens.OpEndsWith, tokens.String("cmd.exe"), `process.path matches ".*cmd\.exe$"`},
		{tokens.OpRegex, tokens.String(`\d+`), `process.path matches "\d+"`},
		{tokens.OpEq, tokens.StrValue{Text: "a*b", HasSpecSymbols: true}, `process.path matches "^a.*b$"`},
	}
	for _, c := range cases {
		got, err := d.Scalar("process.path", c.op, c.v)
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %s want %s", c.op, got, c.want)
		}
	}
}

func TestAlternationRewrite(t *testing.T) {
	got, err := Dialect{}.Scalar("f", tokens.OpContains, tokens.StrValue{Text: "abc|de*f", HasSpecSymbols: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != `((f CONTAINS "abc") OR (f CONTAINS "de" AND f CONTAINS "f"))` {
		t.Fatalf("got %s", got)
	}
}

func TestComplexRegexIsRejected(t *testing.T) {
	_, err := Dialect{}.Scalar("process.command_line", tokens.OpContains, tokens.StrValue{Text: "[0-9]+", HasSpecSymbols: true})
	var re *render.UnsupportedRegexError
	if !errors.As(err, &re) || re.Field != "process.command_line" {
		t.Fatalf("got %v", err)
	}
}

func TestUnmappedFieldGoesToRawMessage(t *testing.T) {
	repo := loadRepo(t)
	r := NewRender(repo, render.Options{})
	m, ok := repo.Get("windows_security")
	if !ok {
		t.Fatalf("windows_security mapping missing")
	}
	got, err := r.RenderLeaf(tokens.NewFieldValue(tokens.FieldValue{
		Field: field("CommandLine", "CommandLine", "windows_security"), Operator: tokens.OpEq, Value: tokens.String("whoami"),
	}), m)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != `general_information.raw_message CONTAINS "whoami"` {
		t.Fatalf("got %s", got)
	}

	_, err = r.RenderLeaf(tokens.NewFieldValue(tokens.FieldValue{
		Field: field("CommandLine", "CommandLine", "windows_security"), Operator: tokens.OpRegex, Value: tokens.String("[0-9]+"),
	}), m)
	var re *render.UnsupportedRegexError
	if !errors.As(err, &re) || re.Field != "CommandLine" || !re.Unmapped {
		t.Fatalf("got %v", err)
	}
}

func TestGeneratePrefix(t *testing.T) {
	repo := loadRepo(t)
	tree, err := compiler.Compile([]tokens.Token{tokens.NewFieldValue(tokens.FieldValue{
		Field: field("User", "User", "windows_security"), Operator: tokens.OpEq, Value: tokens.String("bob"),
	})})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	meta := query.NewMetaInfo()
	meta.SourceMappingIDs = []string{"windows_security"}
	meta.ParsedLogSources = map[string][]string{"product": {"windows"}}
	out, err := NewRender(repo, render.Options{}).Generate(&query.TokenizedQuery{Tree: tree, Meta: meta})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := `general_information.log_source.type_name CONTAINS windows AND (account.username = "bob" OR action.target_username = "bob")`
	if len(out) != 1 || out[0].Query != want {
		t.Fatalf("got %+v", out)
	}

	meta.ParsedLogSources = nil
	out, _ = NewRender(repo, render.Options{}).Generate(&query.TokenizedQuery{Tree: tree, Meta: meta})
	if !strings.HasPrefix(out[0].Query, "general_information.log_source.type_name CONTAINS anything AND ") {
		t.Fatalf("got %s", out[0].Query)
	}
}

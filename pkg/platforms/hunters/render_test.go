package hunters

import (
	"errors"
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
		op   tokens.OperatorType
		v    tokens.Value
		want string
	}{
		{tokens.OpEq, tokens.String("O'Brien"), `f = 'O''Brien'`},
		{tokens.OpEq, tokens.Number("7"), `f = 7`},
		{tokens.OpContains, tokens.String("50%_x"), `f ILIKE '%50\%\_x%'`},
		{tokens.OpStartsWith, tokens.String("cmd"), `f ILIKE 'cmd%'`},
		{tokens.OpEndsWith, tokens.String("cmd"), `f ILIKE '%cmd'`},
		{tokens.OpEq, tokens.StrValue{Text: "a*b", HasSpecSymbols: true}, `f ILIKE 'a%b'`},
		{tokens.OpRegex, tokens.String(`.*\.exe`), `f RLIKE '.*\.exe'`},
		{tokens.OpIsNone, tokens.String(""), `f IS NULL`},
		{tokens.OpGt, tokens.Number("1"), `f > 1`},
	}
	for _, c := range cases {
		got, err := d.Scalar("f", c.op, c.v)
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %s want %s", c.op, got, c.want)
		}
	}
	got, _ := d.In("f", tokens.List{tokens.String("a"), tokens.String("b")})
	if got != `f IN ('a', 'b')` {
		t.Fatalf("in: %s", got)
	}

	_, err := d.Scalar("", tokens.OpKeyword, tokens.String("x"))
	var ue *render.UnsupportedConstructError
	if !errors.As(err, &ue) || ue.Tier != render.Hard {
		t.Fatalf("keyword: %v", err)
	}
}

func TestGenerate(t *testing.T) {
	repo, err := LoadMappings(mappings.FS)
	if err != nil {
		t.Fatalf("load mappings: %v", err)
	}
	user := tokens.NewField("User").WithGenericName("windows_security", "User")
	tree, err := compiler.Compile([]tokens.Token{
		tokens.NewFieldValue(tokens.FieldValue{Field: user, Operator: tokens.OpEq, Value: tokens.List{tokens.String("a"), tokens.String("b")}}),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	meta := query.NewMetaInfo()
	meta.SourceMappingIDs = []string{"windows_security"}
	out, err := NewRender(repo, render.Options{}).Generate(&query.TokenizedQuery{Tree: tree, Meta: meta})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := `SELECT * FROM raw.windows_security_events WHERE (subject_user_name IN ('a', 'b') OR target_user_name IN ('a', 'b'))`
	if len(out) != 1 || out[0].Query != want {
		t.Fatalf("got %+v", out)
	}
}

package query

import (
	"regexp"
	"testing"
)

func TestNewMetaInfoDefaults(t *testing.T) {
	m := NewMetaInfo()
	if m.ID == "" || m.ID == NewMetaInfo().ID {
		t.Fatalf("id must be random, got %q", m.ID)
	}
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`).MatchString(m.Date) {
		t.Fatalf("date = %q", m.Date)
	}
	if m.Severity != SeverityLow || m.License != "DRL 1.1" || m.Status != "stable" {
		t.Fatalf("defaults = %+v", m)
	}
	if len(m.SourceMappingIDs) != 1 || m.SourceMappingIDs[0] != "default" {
		t.Fatalf("source mapping ids = %v", m.SourceMappingIDs)
	}
}

func TestMetaInfoMerge(t *testing.T) {
	m := NewMetaInfo()
	id := m.ID
	m.Merge(&MetaInfo{Title: "t", Severity: "HIGH"})
	if m.Title != "t" || m.Severity != SeverityHigh || m.ID != id {
		t.Fatalf("merged = %+v", m)
	}
}

func TestSplitPipes(t *testing.T) {
	filter, segs := SplitPipes(`index=x cmd="a|b" (x=1 | y) | stats count by host | table host`)
	if filter != `index=x cmd="a|b" (x=1 | y)` {
		t.Fatalf("filter = %q", filter)
	}
	if len(segs) != 2 || segs[0] != "stats count by host" {
		t.Fatalf("segs = %q", segs)
	}
}

func TestParsePipeFunctions(t *testing.T) {
	pf := ParsePipeFunctions([]string{"stats count by host, user", "table a,b c", "eval x=1"})
	if len(pf.Functions) != 2 {
		t.Fatalf("functions = %+v", pf.Functions)
	}
	st := pf.Functions[0]
	if st.Name != "stats" || len(st.Args) != 1 || st.Args[0] != "count" || len(st.By) != 2 || st.By[1] != "user" {
		t.Fatalf("stats = %+v", st)
	}
	if got := pf.Functions[1].Args; len(got) != 3 {
		t.Fatalf("table args = %v", got)
	}
	if len(pf.NotSupported) != 1 || pf.NotSupported[0] != "eval x=1" {
		t.Fatalf("not supported = %v", pf.NotSupported)
	}
}

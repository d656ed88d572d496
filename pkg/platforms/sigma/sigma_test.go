package sigma

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/PhucNguyen204/query_translator/mappings"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
)

const whoamiRule = `
title: Whoami Discovery
id: 0f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f
description: Detects whoami with privilege flags
author: soc
date: "2024-01-01"
level: high
tags:
  - attack.discovery
logsource:
  product: windows
  category: process_creation
detection:
  selection:
    Image|endswith: '\whoami.exe'
    CommandLine|contains:
      - /all
      - /priv
  filter:
    User: SYSTEM
  condition: selection and not filter
falsepositives:
  - Admin scripts
`

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	repo, err := LoadMappings(mappings.FS)
	if err != nil {
		t.Fatalf("load mappings: %v", err)
	}
	return NewParser(repo)
}

func parse(t *testing.T, p *Parser, rule string) *query.TokenizedQuery {
	t.Helper()
	q, err := p.Parse(query.RawQuery{Query: rule})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return q
}

func TestParseRule(t *testing.T) {
	q := parse(t, newTestParser(t), whoamiRule)
	if got := q.Meta.SourceMappingIDs; len(got) != 1 || got[0] != "windows_process_creation" {
		t.Fatalf("source mappings = %v", got)
	}
	if q.Meta.Title != "Whoami Discovery" || q.Meta.Severity != query.SeverityHigh || q.Meta.Date != "2024-01-01" {
		t.Fatalf("meta = %+v", q.Meta)
	}
	want := `AND(AND(Image endswith \whoami.exe, OR(CommandLine contains /all, CommandLine contains /priv)), NOT(User eq SYSTEM))`
	if got := q.Tree.String(); got != want {
		t.Fatalf("tree = %s", got)
	}
}

func TestParseQuantifiedCondition(t *testing.T) {
	rule := `
title: t
logsource: {product: windows, category: process_creation}
detection:
  selection_img:
    Image|endswith: x.exe
  selection_parent:
    ParentImage|endswith: y.exe
  filter:
    User: SYSTEM
  condition: 1 of selection_* and not filter
`
	q := parse(t, newTestParser(t), rule)
	want := "AND(OR(Image endswith x.exe, ParentImage endswith y.exe), NOT(User eq SYSTEM))"
	if got := q.Tree.String(); got != want {
		t.Fatalf("tree = %s", got)
	}

	rule = strings.Replace(rule, "1 of selection_* and not filter", "all of them", 1)
	q = parse(t, newTestParser(t), rule)
	want = "AND(Image endswith x.exe, ParentImage endswith y.exe, User eq SYSTEM)"
	if got := q.Tree.String(); got != want {
		t.Fatalf("tree = %s", got)
	}
}

func TestParseAggregationIsNotSupported(t *testing.T) {
	rule := `
title: t
detection:
  selection:
    EventID: 4625
  condition: selection | count() by User > 5
`
	q := parse(t, newTestParser(t), rule)
	if len(q.Functions.NotSupported) != 1 || q.Functions.NotSupported[0] != "count() by User > 5" {
		t.Fatalf("not supported = %v", q.Functions.NotSupported)
	}
	if got := q.Tree.String(); got != "EventID eq 4625" {
		t.Fatalf("tree = %s", got)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"modifier": "detection:\n  sel:\n    CommandLine|base64: x\n  condition: sel\n",
		"unknown":  "detection:\n  sel:\n    Image: x\n  condition: other\n",
		"missing":  "detection:\n  sel:\n    Image: x\n",
		"count":    "detection:\n  sel:\n    Image: x\n  condition: 2 of sel*\n",
	}
	p := newTestParser(t)
	for name, rule := range cases {
		if _, err := p.Parse(query.RawQuery{Query: rule}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	p := newTestParser(t)
	q := parse(t, p, whoamiRule)
	r := NewRender(p.Mappings, render.Options{})

	out, err := r.Generate(q)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(out) != 1 || out[0].SourceMappingID != "windows_process_creation" {
		t.Fatalf("outputs = %+v", out)
	}

	var doc struct {
		Title     string            `yaml:"title"`
		Level     string            `yaml:"level"`
		Logsource map[string]string `yaml:"logsource"`
		Detection map[string]any    `yaml:"detection"`
	}
	if err := yaml.Unmarshal([]byte(out[0].Query), &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out[0].Query)
	}
	if doc.Title != "Whoami Discovery" || doc.Level != "high" {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Logsource["product"] != "windows" || doc.Logsource["category"] != "process_creation" {
		t.Fatalf("logsource = %v", doc.Logsource)
	}
	if got := doc.Detection["condition"]; got != "selection1 and not selection2" {
		t.Fatalf("condition = %v", got)
	}
	sel, ok := doc.Detection["selection1"].(map[string]any)
	if !ok || sel[`Image|endswith`] != `\whoami.exe` {
		t.Fatalf("selection1 = %v", doc.Detection["selection1"])
	}
	if list, ok := sel["CommandLine|contains"].([]any); !ok || len(list) != 2 || list[0] != "/all" {
		t.Fatalf("CommandLine|contains = %v", sel["CommandLine|contains"])
	}

	// key order follows the conventional layout
	s := out[0].Query
	if !(strings.Index(s, "title:") < strings.Index(s, "logsource:") && strings.Index(s, "logsource:") < strings.Index(s, "detection:") && strings.Index(s, "detection:") < strings.Index(s, "level:")) {
		t.Fatalf("key order:\n%s", s)
	}

	again, err := r.Generate(q)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if again[0].Query != out[0].Query {
		t.Fatalf("second run differs:\n%s\n---\n%s", out[0].Query, again[0].Query)
	}
}

func TestGenerateKeywords(t *testing.T) {
	rule := `
title: kw
detection:
  keywords:
    - mimikatz
    - sekurlsa*
  condition: keywords
`
	p := newTestParser(t)
	out, err := NewRender(p.Mappings, render.Options{}).Generate(parse(t, p, rule))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var doc struct {
		Detection map[string]any `yaml:"detection"`
	}
	if err := yaml.Unmarshal([]byte(out[0].Query), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Detection["condition"] != "keyword1" {
		t.Fatalf("condition = %v", doc.Detection["condition"])
	}
	kws, ok := doc.Detection["keyword1"].([]any)
	if !ok || len(kws) != 2 || kws[0] != "mimikatz" || kws[1] != "sekurlsa*" {
		t.Fatalf("keywords = %v", doc.Detection["keyword1"])
	}
}

func TestGenerateAnnexesUnsupported(t *testing.T) {
	rule := `
title: t
detection:
  selection:
    EventID: 4625
  condition: selection | count() by User > 5
`
	p := newTestParser(t)
	out, err := NewRender(p.Mappings, render.Options{}).Generate(parse(t, p, rule))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out[0].Query, "\n\n# ") || !strings.HasSuffix(out[0].Query, "# count() by User > 5") {
		t.Fatalf("annex missing:\n%s", out[0].Query)
	}
}

func TestNumbersKeepTheirText(t *testing.T) {
	rule := `
title: n
detection:
  selection:
    EventRecordID: 12345678901234567891
    Code: 007
  condition: selection
`
	p := newTestParser(t)
	q := parse(t, p, rule)
	if got := q.Tree.String(); got != "AND(EventRecordID eq 12345678901234567891, Code eq 007)" {
		t.Fatalf("tree = %s", got)
	}
	out, err := NewRender(p.Mappings, render.Options{}).Generate(q)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	again := parse(t, p, out[0].Query)
	if got := again.Tree.String(); got != q.Tree.String() {
		t.Fatalf("round trip tree = %s\n%s", got, out[0].Query)
	}
}

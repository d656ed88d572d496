package opensearch

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
)

const RuleName = "opensearch_rule"

var ruleSeverity = render.SeverityScale{Critical: "5", High: "4", Medium: "3", Low: "2"}

// Monitor is the subset of an OpenSearch alerting query-level monitor the
// renderer fills in.
type Monitor struct {
	Type        string           `json:"type"`
	MonitorType string           `json:"monitor_type"`
	Name        string           `json:"name"`
	Enabled     bool             `json:"enabled"`
	Schedule    Schedule         `json:"schedule"`
	Inputs      []MonitorInput   `json:"inputs"`
	Triggers    []MonitorTrigger `json:"triggers"`
}

type Schedule struct {
	Period struct {
		Interval int    `json:"interval"`
		Unit     string `json:"unit"`
	} `json:"period"`
}

type MonitorInput struct {
	Search struct {
		Indices []string    `json:"indices"`
		Query   SearchQuery `json:"query"`
	} `json:"search"`
}

type SearchQuery struct {
	Size  int `json:"size"`
	Query struct {
		Bool struct {
			Must []QueryString `json:"must"`
		} `json:"bool"`
	} `json:"query"`
}

type QueryString struct {
	QueryString struct {
		Query           string `json:"query"`
		AnalyzeWildcard bool   `json:"analyze_wildcard"`
	} `json:"query_string"`
}

type MonitorTrigger struct {
	Name      string `json:"name"`
	Severity  string `json:"severity"`
	Condition struct {
		Script struct {
			Source string `json:"source"`
			Lang   string `json:"lang"`
		} `json:"script"`
	} `json:"condition"`
	Actions []any `json:"actions"`
}

// NewMonitor wraps a query_string query into a monitor that fires on any hit.
func NewMonitor(q string, indices []string, meta *query.MetaInfo) Monitor {
	m := Monitor{Type: "monitor", MonitorType: "query_level_monitor", Name: meta.Title, Enabled: true}
	m.Schedule.Period.Interval = 5
	m.Schedule.Period.Unit = "MINUTES"

	var in MonitorInput
	in.Search.Indices = indices
	var qs QueryString
	qs.QueryString.Query = q
	qs.QueryString.AnalyzeWildcard = true
	in.Search.Query.Query.Bool.Must = []QueryString{qs}
	m.Inputs = []MonitorInput{in}

	t := MonitorTrigger{Name: meta.Title, Severity: ruleSeverity.Lookup(meta.Severity), Actions: []any{}}
	t.Condition.Script.Source = "ctx.results[0].hits.total.value > 0"
	t.Condition.Script.Lang = "painless"
	m.Triggers = []MonitorTrigger{t}
	return m
}

func indices(m *mapping.SourceMapping) []string {
	if idx := m.Signature.String(); idx != "" {
		return []string{idx}
	}
	return []string{"*"}
}

func envelope(q string, m *mapping.SourceMapping, meta *query.MetaInfo) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(NewMonitor(q, indices(m), meta)); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// NewRuleRender renders the same query wrapped in a monitor JSON document;
// the unsupported-functions annex follows the document.
func NewRuleRender(repo *mapping.Repository, opts render.Options) *render.QueryRender {
	cfg := config(RuleName, repo, opts)
	cfg.Envelope = envelope
	return render.New(cfg)
}

package cti

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoIndicators: nothing in the input maps to a field of the platform.
var ErrNoIndicators = errors.New("no indicator maps to a platform field")

// Template describes how a platform writes an indicator hunt. Values in one
// group share a type and are joined with OrOperator inside OrGroup; groups
// are joined with GroupOrOperator. FinalForOne/FinalForMany wrap the result
// depending on the number of groups. All templates are fmt formats.
type Template struct {
	FieldValue      string // field, value
	OrOperator      string
	OrGroup         string // joined values
	GroupOrOperator string
	FinalForOne     string
	FinalForMany    string
}

// QualysName: Qualys EDR only has an indicator renderer.
const QualysName = "qualys"

var (
	CrowdStrikeTemplate = Template{
		FieldValue:      `%s="%s"`,
		OrOperator:      " OR ",
		OrGroup:         "(%s)",
		GroupOrOperator: " OR ",
		FinalForOne:     "%s",
		FinalForMany:    "(%s)",
	}
	QualysTemplate = Template{
		FieldValue:      "%s:`%s`",
		OrOperator:      " or ",
		OrGroup:         "(%s)",
		GroupOrOperator: " or ",
		FinalForOne:     "%s",
		FinalForMany:    "(%s)",
	}
)

// Renderer is immutable after construction and safe to share.
type Renderer struct {
	Name     string
	Template Template
	// Fields maps an indicator type to the platform fields searched for it.
	Fields map[Type][]string
}

type rawFields struct {
	Platform string              `yaml:"platform"`
	Fields   map[string][]string `yaml:"fields"`
}

// LoadRenderer reads cti/<name>.yml from fsys.
func LoadRenderer(fsys fs.FS, name string, tpl Template) (*Renderer, error) {
	b, err := fs.ReadFile(fsys, path.Join("cti", name+".yml"))
	if err != nil {
		return nil, fmt.Errorf("cti %s: %w", name, err)
	}
	var raw rawFields
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("cti %s: %w", name, err)
	}
	r := &Renderer{Name: name, Template: tpl, Fields: map[Type][]string{}}
	for k, v := range raw.Fields {
		t := Type(strings.ToLower(k))
		if !known(t) {
			return nil, fmt.Errorf("cti %s: unknown indicator type %q", name, k)
		}
		r.Fields[t] = v
	}
	return r, nil
}

func known(t Type) bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// Render builds one query per chunk of at most perQuery indicators
// (perQuery <= 0: a single query). Indicators whose type the platform
// has no field for are skipped.
func (r *Renderer) Render(inds []Indicator, perQuery int) ([]string, error) {
	var mapped []Indicator
	for _, t := range Types {
		if len(r.Fields[t]) == 0 {
			continue
		}
		for _, ind := range inds {
			if ind.Type == t {
				mapped = append(mapped, ind)
			}
		}
	}
	if len(mapped) == 0 {
		return nil, ErrNoIndicators
	}
	if perQuery <= 0 {
		perQuery = len(mapped)
	}
	var out []string
	for start := 0; start < len(mapped); start += perQuery {
		end := min(start+perQuery, len(mapped))
		out = append(out, r.chunk(mapped[start:end]))
	}
	return out, nil
}

// chunk: indicators are already ordered by type, so groups are runs.
func (r *Renderer) chunk(inds []Indicator) string {
	tpl := r.Template
	var groups, cur []string
	flush := func() {
		if len(cur) > 0 {
			groups = append(groups, fmt.Sprintf(tpl.OrGroup, strings.Join(cur, tpl.OrOperator)))
			cur = nil
		}
	}
	for i, ind := range inds {
		if i > 0 && ind.Type != inds[i-1].Type {
			flush()
		}
		for _, f := range r.Fields[ind.Type] {
			cur = append(cur, fmt.Sprintf(tpl.FieldValue, f, ind.Value))
		}
	}
	flush()
	if len(groups) > 1 {
		return fmt.Sprintf(tpl.FinalForMany, strings.Join(groups, tpl.GroupOrOperator))
	}
	return fmt.Sprintf(tpl.FinalForOne, groups[0])
}

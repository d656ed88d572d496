package mapping

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawRecord struct {
	Platform         string                `yaml:"platform"`
	Source           string                `yaml:"source"`
	LogSource        map[string]stringList `yaml:"log_source"`
	DefaultLogSource map[string]string     `yaml:"default_log_source"`
	FieldMapping     map[string]stringList `yaml:"field_mapping"`
}

// stringList accepts a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*s = stringList{n.Value}
		return nil
	case yaml.SequenceNode:
		out := make(stringList, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list items must be scalars", c.Line)
			}
			out = append(out, c.Value)
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list", n.Line)
	}
}

// ParseRecord decodes one YAML mapping record.
func ParseRecord(b []byte, factory SignatureFactory) (*SourceMapping, error) {
	var rr rawRecord
	if err := yaml.Unmarshal(b, &rr); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rr.Source) == "" {
		return nil, errors.New("missing source id")
	}
	logSource := make(map[string][]string, len(rr.LogSource))
	for k, v := range rr.LogSource {
		logSource[k] = []string(v)
	}
	fields := NewFieldsMapping()
	for generic, platform := range rr.FieldMapping {
		fields.AddMapping(generic, platform...)
	}
	return &SourceMapping{
		SourceID:  rr.Source,
		Signature: factory(logSource, rr.DefaultLogSource),
		Fields:    fields,
	}, nil
}

// LoadRepository reads every *.yml / *.yaml record under dir (non-recursive,
// lexical order) into a repository for platform.
func LoadRepository(fsys fs.FS, dir, platform string, factory SignatureFactory) (*Repository, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read mappings %s: %w", dir, err)
	}
	var records []*SourceMapping
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(e.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		p := path.Join(dir, e.Name())
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		m, err := ParseRecord(b, factory)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", p, err)
		}
		records = append(records, m)
	}
	return NewRepository(platform, records), nil
}

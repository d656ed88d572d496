package mapping

import (
	"maps"
	"sort"
	"strings"
)

// LogSourceSignature identifies which data sources a mapping applies to.
type LogSourceSignature interface {
	// IsSuitable reports whether the parsed source hints fit this signature.
	IsSuitable(hints map[string][]string) bool
	// String is the display form, used as query prefix or table name.
	String() string
	// LogSources returns the selector values the record was declared with.
	LogSources() map[string][]string
}

// Formatter builds the display form from a record's default_log_source.
type Formatter func(defaultLogSource map[string]string) string

// SignatureFactory builds a platform signature from one mapping record.
type SignatureFactory func(logSource map[string][]string, defaultLogSource map[string]string) LogSourceSignature

// SetSignature matches when, for every hinted key, the hinted values are a
// subset of the signature's values (case-insensitive).
type SetSignature struct {
	sources map[string][]string
	display string
}

func NewSetSignature(sources map[string][]string, display string) *SetSignature {
	return &SetSignature{sources: cloneSources(sources), display: display}
}

func (s *SetSignature) IsSuitable(hints map[string][]string) bool {
	for key, values := range hints {
		have := s.sources[key]
		for _, v := range values {
			if !containsFold(have, v) {
				return false
			}
		}
	}
	return true
}

func (s *SetSignature) String() string { return s.display }

func (s *SetSignature) LogSources() map[string][]string { return cloneSources(s.sources) }

// ExactSignature matches when every hinted value equals the signature's
// single value for that key (Sigma product/service/category).
type ExactSignature struct {
	sources map[string]string
	display string
}

func NewExactSignature(sources map[string]string, display string) *ExactSignature {
	return &ExactSignature{sources: maps.Clone(sources), display: display}
}

func (s *ExactSignature) IsSuitable(hints map[string][]string) bool {
	for key, values := range hints {
		have, ok := s.sources[key]
		if !ok {
			return false
		}
		for _, v := range values {
			if !strings.EqualFold(have, v) {
				return false
			}
		}
	}
	return true
}

func (s *ExactSignature) String() string { return s.display }

func (s *ExactSignature) LogSources() map[string][]string {
	out := make(map[string][]string, len(s.sources))
	for k, v := range s.sources {
		out[k] = []string{v}
	}
	return out
}

// SetFactory returns a factory producing SetSignature with display built by f.
func SetFactory(f Formatter) SignatureFactory {
	return func(logSource map[string][]string, def map[string]string) LogSourceSignature {
		return NewSetSignature(logSource, format(f, def))
	}
}

// ExactFactory: first value of every log_source key becomes the exact value.
func ExactFactory(f Formatter) SignatureFactory {
	return func(logSource map[string][]string, def map[string]string) LogSourceSignature {
		exact := make(map[string]string, len(logSource))
		for k, v := range logSource {
			if len(v) > 0 {
				exact[k] = v[0]
			}
		}
		return NewExactSignature(exact, format(f, def))
	}
}

// KeyValueFormatter renders default_log_source as `k<sep>"v"` pairs joined by
// joiner, keys in the given order first and the rest sorted.
func KeyValueFormatter(sep, joiner string, quote bool, order ...string) Formatter {
	return func(def map[string]string) string {
		keys := orderedKeys(def, order)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			v := def[k]
			if quote {
				v = `"` + v + `"`
			}
			parts = append(parts, k+sep+v)
		}
		return strings.Join(parts, joiner)
	}
}

// ValueFormatter renders the value of key only, e.g. a table or dataset name.
func ValueFormatter(key string) Formatter {
	return func(def map[string]string) string { return def[key] }
}

func format(f Formatter, def map[string]string) string {
	if f == nil || len(def) == 0 {
		return ""
	}
	return f(def)
}

func orderedKeys(m map[string]string, order []string) []string {
	seen := map[string]bool{}
	var keys []string
	for _, k := range order {
		if _, ok := m[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func containsFold(list []string, v string) bool {
	for _, it := range list {
		if strings.EqualFold(it, v) {
			return true
		}
	}
	return false
}

func cloneSources(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Package mapping holds per-platform source mappings (log-source signature +
// field mapping) and resolves which of them fit a parsed query.
package mapping

// DefaultMappingName is the id of the fallback mapping present in every repository.
const DefaultMappingName = "default"

// SourceMapping is one repository record.
type SourceMapping struct {
	SourceID  string
	Signature LogSourceSignature
	Fields    FieldsMapping
}

// Repository is read-only after construction and safe for concurrent use.
type Repository struct {
	platform string
	order    []string
	byID     map[string]*SourceMapping
	def      *SourceMapping
}

// NewRepository builds a repository from records in their declared order.
// The default mapping's fields are the union of every record, with entries
// declared on the default record itself taking precedence.
func NewRepository(platform string, records []*SourceMapping) *Repository {
	r := &Repository{platform: platform, byID: make(map[string]*SourceMapping, len(records)+1)}
	var def *SourceMapping
	for _, m := range records {
		if m.SourceID == DefaultMappingName {
			def = m
			continue
		}
		if _, dup := r.byID[m.SourceID]; dup {
			continue
		}
		r.order = append(r.order, m.SourceID)
		r.byID[m.SourceID] = m
	}

	union := NewFieldsMapping()
	sig := LogSourceSignature(NewSetSignature(nil, ""))
	if def != nil {
		union.mergeMissing(def.Fields)
		if def.Signature != nil {
			sig = def.Signature
		}
	}
	for _, id := range r.order {
		union.mergeMissing(r.byID[id].Fields)
	}
	r.def = &SourceMapping{SourceID: DefaultMappingName, Signature: sig, Fields: union}
	r.byID[DefaultMappingName] = r.def
	return r
}

func (r *Repository) Platform() string { return r.platform }

// Get returns the mapping with the given id.
func (r *Repository) Get(id string) (*SourceMapping, bool) {
	m, ok := r.byID[id]
	return m, ok
}

func (r *Repository) Default() *SourceMapping { return r.def }

// Mappings returns the non-default mappings in repository order.
func (r *Repository) Mappings() []*SourceMapping {
	out := make([]*SourceMapping, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// SourceMappings selects mappings by id for rendering; unknown ids are skipped
// and an empty selection falls back to the default mapping.
func (r *Repository) SourceMappings(ids []string) []*SourceMapping {
	var out []*SourceMapping
	seen := map[string]bool{}
	for _, id := range ids {
		if m, ok := r.byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []*SourceMapping{r.def}
	}
	return out
}

// Resolve picks the mappings able to serve the required (platform) field names.
//
// A mapping is suitable when its signature accepts hints and its fields
// mapping covers every required field. When hints are present but no
// signature accepts them, hints are ignored and matching is done on fields
// alone: producing a translation wins over strict source attribution. The
// result is never empty; without any suitable mapping it is {default}.
func (r *Repository) Resolve(required []string, hints map[string][]string) []*SourceMapping {
	useHints := len(hints) > 0
	if useHints {
		matched := false
		for _, id := range r.order {
			if r.byID[id].Signature.IsSuitable(hints) {
				matched = true
				break
			}
		}
		useHints = matched
	}

	var out []*SourceMapping
	for _, id := range r.order {
		m := r.byID[id]
		if useHints && !m.Signature.IsSuitable(hints) {
			continue
		}
		if m.Fields.IsSuitable(required) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []*SourceMapping{r.def}
	}
	return out
}

// IDs lists source ids of ms.
func IDs(ms []*SourceMapping) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.SourceID)
	}
	return out
}

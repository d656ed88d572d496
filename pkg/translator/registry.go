package translator

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"go.uber.org/multierr"

	"github.com/PhucNguyen204/query_translator/pkg/cti"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/parser"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/axon"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/crowdstrike"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/hunters"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/logscale"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/opensearch"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/qradar"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/sigma"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/splunk"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/xql"
	"github.com/PhucNguyen204/query_translator/pkg/render"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// ParserFactory builds a fresh parser for one translation.
type ParserFactory func() parser.Parser

// RendererFactory builds a fresh renderer for one translation. Renderers may
// hold per-call counters, so instances are never shared.
type RendererFactory func(opts render.Options) render.Renderer

// Registry maps platform ids to factories. It is filled once at startup and
// only read afterwards.
type Registry struct {
	parsers   map[string]ParserFactory
	renderers map[string]RendererFactory
	// CTI renderers are stateless and shared.
	ctis map[string]*cti.Renderer
}

func NewRegistry() *Registry {
	return &Registry{
		parsers:   map[string]ParserFactory{},
		renderers: map[string]RendererFactory{},
		ctis:      map[string]*cti.Renderer{},
	}
}

func (r *Registry) RegisterParser(name string, f ParserFactory) {
	r.parsers[name] = f
}

func (r *Registry) RegisterRenderer(name string, f RendererFactory) {
	r.renderers[name] = f
}

func (r *Registry) Parser(name string) (parser.Parser, error) {
	f, ok := r.parsers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %q", ErrUnknownPlatform, name)
	}
	return f(), nil
}

func (r *Registry) Renderer(name string, opts render.Options) (render.Renderer, error) {
	f, ok := r.renderers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no renderer for %q", ErrUnknownPlatform, name)
	}
	return f(opts), nil
}

func (r *Registry) RegisterCTI(rd *cti.Renderer) {
	r.ctis[rd.Name] = rd
}

func (r *Registry) CTI(name string) (*cti.Renderer, error) {
	rd, ok := r.ctis[name]
	if !ok {
		return nil, fmt.Errorf("%w: no indicator renderer for %q", ErrUnknownPlatform, name)
	}
	return rd, nil
}

// Parsers lists registered source platforms, sorted.
func (r *Registry) Parsers() []string { return sortedKeys(r.parsers) }

// Renderers lists registered target platforms, sorted.
func (r *Registry) Renderers() []string { return sortedKeys(r.renderers) }

// CTIRenderers lists platforms that render indicator lists, sorted.
func (r *Registry) CTIRenderers() []string { return sortedKeys(r.ctis) }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry loads every platform's mappings from fsys and registers
// the built-in parsers and renderers. Load errors of all platforms are
// reported together.
func DefaultRegistry(fsys fs.FS) (*Registry, error) {
	var errs error
	load := func(fn func(fs.FS) (*mapping.Repository, error)) *mapping.Repository {
		repo, err := fn(fsys)
		errs = multierr.Append(errs, err)
		return repo
	}
	splunkRepo := load(splunk.LoadMappings)
	crowdstrikeRepo := load(crowdstrike.LoadMappings)
	qradarRepo := load(qradar.LoadMappings)
	axonRepo := load(axon.LoadMappings)
	opensearchRepo := load(opensearch.LoadMappings)
	xqlRepo := load(xql.LoadMappings)
	huntersRepo := load(hunters.LoadMappings)
	sigmaRepo := load(sigma.LoadMappings)
	logscaleRepo := load(logscale.LoadMappings)
	loadCTI := func(name string, tpl cti.Template) *cti.Renderer {
		rd, err := cti.LoadRenderer(fsys, name, tpl)
		errs = multierr.Append(errs, err)
		return rd
	}
	crowdstrikeCTI := loadCTI(crowdstrike.Name, cti.CrowdStrikeTemplate)
	qualysCTI := loadCTI(cti.QualysName, cti.QualysTemplate)
	if errs != nil {
		return nil, fmt.Errorf("load mappings: %w", errs)
	}

	r := NewRegistry()
	r.RegisterParser(splunk.Name, func() parser.Parser { return splunk.NewParser(splunkRepo) })
	r.RegisterParser(qradar.Name, func() parser.Parser { return qradar.NewParser(qradarRepo) })
	r.RegisterParser(sigma.Name, func() parser.Parser { return sigma.NewParser(sigmaRepo) })
	r.RegisterParser(logscale.Name, func() parser.Parser { return logscale.NewParser(logscaleRepo) })
	r.RegisterParser(logscale.AlertName, func() parser.Parser { return logscale.NewAlertParser(logscaleRepo) })

	r.RegisterRenderer(splunk.Name, func(o render.Options) render.Renderer { return splunk.NewRender(splunkRepo, o) })
	r.RegisterRenderer(crowdstrike.Name, func(o render.Options) render.Renderer { return crowdstrike.NewRender(crowdstrikeRepo, o) })
	r.RegisterRenderer(axon.Name, func(o render.Options) render.Renderer { return axon.NewRender(axonRepo, o) })
	r.RegisterRenderer(opensearch.Name, func(o render.Options) render.Renderer { return opensearch.NewRender(opensearchRepo, o) })
	r.RegisterRenderer(opensearch.RuleName, func(o render.Options) render.Renderer { return opensearch.NewRuleRender(opensearchRepo, o) })
	r.RegisterRenderer(xql.Name, func(o render.Options) render.Renderer { return xql.NewRender(xqlRepo, o) })
	r.RegisterRenderer(hunters.Name, func(o render.Options) render.Renderer { return hunters.NewRender(huntersRepo, o) })
	r.RegisterRenderer(sigma.Name, func(o render.Options) render.Renderer { return sigma.NewRender(sigmaRepo, o) })

	r.RegisterCTI(crowdstrikeCTI)
	r.RegisterCTI(qualysCTI)
	return r, nil
}

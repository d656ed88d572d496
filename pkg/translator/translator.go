// Package translator wires parsers and renderers into the translate
// operation: one source dialect in, one target dialect out.
package translator

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PhucNguyen204/query_translator/pkg/cti"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/parser"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
)

// -------------------- Config --------------------

type Config struct {
	// Bật strict mapping cho mọi renderer
	StrictMapping bool `json:"strict_mapping"`

	// Số rule dịch song song trong TranslateBatch
	BatchConcurrency int `json:"batch_concurrency"`
}

func DefaultConfig() Config {
	return Config{
		StrictMapping:    false,
		BatchConcurrency: runtime.NumCPU(),
	}
}

func (c Config) WithStrictMapping(enable bool) Config {
	c.StrictMapping = enable
	return c
}

func (c Config) WithBatchConcurrency(n int) Config {
	c.BatchConcurrency = n
	return c
}

// -------------------- Translator --------------------

type Request struct {
	Query  string
	Source string
	Target string
	Meta   *query.MetaInfo
}

type Result struct {
	RuleID  string          `json:"rule_id"`
	Title   string          `json:"title"`
	Source  string          `json:"source"`
	Target  string          `json:"target"`
	Outputs []render.Output `json:"results"`
}

// RuleError carries the identity of the rule that failed so batch callers can
// report it next to the other results.
type RuleError struct {
	RuleID string
	Title  string
	Source string
	Target string
	Err    error
}

func (e *RuleError) Error() string {
	name := e.Title
	if name == "" {
		name = e.RuleID
	}
	return fmt.Sprintf("translate %s -> %s (%s): %v", e.Source, e.Target, name, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

type Translator struct {
	reg *Registry
	cfg Config
	log *zap.SugaredLogger
}

func New(reg *Registry, cfg Config, log *zap.SugaredLogger) *Translator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	return &Translator{reg: reg, cfg: cfg, log: log}
}

func (t *Translator) Registry() *Registry { return t.reg }

// Translate runs tokenize → compile → resolve → render for one rule.
// Identical source and target return the query unchanged.
func (t *Translator) Translate(ctx context.Context, req Request) (*Result, error) {
	fail := func(meta *query.MetaInfo, err error) (*Result, error) {
		re := &RuleError{Source: req.Source, Target: req.Target, Err: err}
		if meta != nil {
			re.RuleID, re.Title = meta.ID, meta.Title
		}
		return nil, re
	}
	if err := ctx.Err(); err != nil {
		return fail(req.Meta, err)
	}
	if req.Source == req.Target {
		if _, err := t.reg.Parser(req.Source); err != nil {
			return fail(req.Meta, err)
		}
		res := &Result{Source: req.Source, Target: req.Target, Outputs: []render.Output{{SourceMappingID: mapping.DefaultMappingName, Query: req.Query}}}
		if req.Meta != nil {
			res.RuleID, res.Title = req.Meta.ID, req.Meta.Title
		}
		return res, nil
	}

	p, err := t.reg.Parser(req.Source)
	if err != nil {
		return fail(req.Meta, err)
	}
	r, err := t.reg.Renderer(req.Target, render.Options{Logger: t.log, ForceStrict: t.cfg.StrictMapping})
	if err != nil {
		return fail(req.Meta, err)
	}
	q, err := p.Parse(query.RawQuery{Query: req.Query, Language: req.Source, Meta: req.Meta})
	if err != nil {
		meta := req.Meta
		var pe *parser.Error
		if errors.As(err, &pe) && pe.Meta != nil {
			meta = pe.Meta
		}
		return fail(meta, fmt.Errorf("parse: %w", err))
	}
	outs, err := r.Generate(q)
	if err != nil {
		return fail(q.Meta, fmt.Errorf("render: %w", err))
	}
	t.log.Debugw("translated rule", "rule_id", q.Meta.ID, "source", req.Source, "target", req.Target, "source_mappings", q.Meta.SourceMappingIDs)
	return &Result{RuleID: q.Meta.ID, Title: q.Meta.Title, Source: req.Source, Target: req.Target, Outputs: outs}, nil
}

// IOCRequest asks for hunting queries built from the indicators found in Text.
type IOCRequest struct {
	Text     string
	Target   string
	PerQuery int // indicators per query; <= 0 means one query
}

type IOCResult struct {
	Target     string          `json:"target"`
	Indicators []cti.Indicator `json:"indicators"`
	Queries    []string        `json:"queries"`
}

// TranslateIOCs extracts indicators from free text and renders them with the
// target's indicator renderer. cti.ErrNoIndicators is returned when nothing
// usable was found.
func (t *Translator) TranslateIOCs(ctx context.Context, req IOCRequest) (*IOCResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rd, err := t.reg.CTI(req.Target)
	if err != nil {
		return nil, err
	}
	inds := cti.Extract(req.Text)
	queries, err := rd.Render(inds, req.PerQuery)
	if err != nil {
		return nil, fmt.Errorf("render indicators: %w", err)
	}
	t.log.Debugw("translated indicators", "target", req.Target, "indicators", len(inds), "queries", len(queries))
	return &IOCResult{Target: req.Target, Indicators: inds, Queries: queries}, nil
}

// Outcome is one rule of a batch: exactly one of Result and Err is set.
type Outcome struct {
	Result *Result
	Err    *RuleError
}

// TranslateBatch translates rules concurrently, bounded by BatchConcurrency.
// Per-rule failures are returned in their Outcome; the returned error is only
// set when ctx is cancelled.
func (t *Translator) TranslateBatch(ctx context.Context, reqs []Request) ([]Outcome, error) {
	out := make([]Outcome, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.BatchConcurrency)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := t.Translate(gctx, reqs[i])
			if err != nil {
				re := &RuleError{Source: reqs[i].Source, Target: reqs[i].Target, Err: err}
				errors.As(err, &re)
				t.log.Warnw("rule translation failed", "rule_id", re.RuleID, "title", re.Title, "error", re.Err)
				out[i].Err = re
				return nil
			}
			out[i].Result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("translate batch: %w", err)
	}
	return out, nil
}

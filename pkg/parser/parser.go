// Package parser holds the source-side plumbing shared by platform parsers:
// tokenize, compile, resolve mappings and attach generic field names.
package parser

import (
	"fmt"

	"github.com/PhucNguyen204/query_translator/pkg/compiler"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/tokenizer"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

// Parser turns raw input of one platform into a tokenized query.
type Parser interface {
	Name() string
	Parse(raw query.RawQuery) (*query.TokenizedQuery, error)
}

// Error is a parse failure raised after the rule metadata was read, so
// callers can still report which rule failed.
type Error struct {
	Meta *query.MetaInfo
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Base is embedded by platform parsers.
type Base struct {
	Tokenizer *tokenizer.Tokenizer
	Mappings  *mapping.Repository
}

// Build tokenizes filter, resolves source mappings for the fields it uses
// (narrowed by hints) and returns the container for renderers.
func (b Base) Build(filter string, hints map[string][]string, meta *query.MetaInfo, fns query.ParsedFunctions) (*query.TokenizedQuery, error) {
	ts, err := b.Tokenizer.Tokenize(filter)
	if err != nil {
		return nil, err
	}
	return b.FromTokens(ts, hints, meta, fns)
}

// FromTokens is Build for parsers that produce tokens themselves.
func (b Base) FromTokens(ts []tokens.Token, hints map[string][]string, meta *query.MetaInfo, fns query.ParsedFunctions) (*query.TokenizedQuery, error) {
	if meta == nil {
		meta = query.NewMetaInfo()
	}
	fields := tokens.FieldNames(ts)
	resolved := b.Mappings.Resolve(fields, hints)
	AttachGenericNames(ts, resolved, b.Mappings.Default())

	tree, err := compiler.Compile(ts)
	if err != nil {
		return nil, &Error{Meta: meta, Err: fmt.Errorf("compile: %w", err)}
	}

	meta.QueryFields = fields
	meta.SourceMappingIDs = mapping.IDs(resolved)
	if len(hints) > 0 {
		meta.ParsedLogSources = hints
	}
	return &query.TokenizedQuery{Tokens: ts, Tree: tree, Meta: meta, Functions: fns}, nil
}

// AttachGenericNames records, per resolved source mapping, the generic name of
// every field token. The default mapping entry is always attached so
// renderers have a fallback for target mappings the source never resolved.
func AttachGenericNames(ts []tokens.Token, resolved []*mapping.SourceMapping, def *mapping.SourceMapping) {
	candidates := append(append([]*mapping.SourceMapping(nil), resolved...), def)
	for _, t := range ts {
		if t.Kind != tokens.KindFieldValue {
			continue
		}
		f := t.FieldValue.Field
		for _, m := range candidates {
			if g, ok := m.Fields.GenericFieldName(f.SourceName); ok {
				f = f.WithGenericName(m.SourceID, g)
			}
		}
		t.FieldValue.Field = f
	}
}

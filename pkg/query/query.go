// Package query holds the containers that flow between parsers and renderers.
package query

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PhucNguyen204/query_translator/pkg/compiler"
	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity normalizes s; unknown values map to low.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MetaInfo is rule metadata carried from parser to renderer. One per rule.
type MetaInfo struct {
	ID             string
	Title          string
	Description    string
	Author         string
	Date           string
	License        string
	Severity       Severity
	Status         string
	References     []string
	Tags           []string
	FalsePositives []string

	// SourceMappingIDs are filled by the resolver.
	SourceMappingIDs []string
	// ParsedLogSources are the source hints found in the query or envelope.
	ParsedLogSources map[string][]string
	// QueryFields are the source field names referenced by the query.
	QueryFields []string
}

// NewMetaInfo returns metadata with generated defaults.
func NewMetaInfo() *MetaInfo {
	return &MetaInfo{
		ID:               uuid.NewString(),
		Date:             time.Now().Format("2006-01-02"),
		License:          "DRL 1.1",
		Severity:         SeverityLow,
		Status:           "stable",
		SourceMappingIDs: []string{mapping.DefaultMappingName},
		ParsedLogSources: map[string][]string{},
	}
}

// Merge copies non-empty fields of other over m.
func (m *MetaInfo) Merge(other *MetaInfo) {
	if other == nil {
		return
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&m.ID, other.ID)
	set(&m.Title, other.Title)
	set(&m.Description, other.Description)
	set(&m.Author, other.Author)
	set(&m.Date, other.Date)
	set(&m.License, other.License)
	set(&m.Status, other.Status)
	if other.Severity != "" {
		m.Severity = ParseSeverity(string(other.Severity))
	}
	if len(other.References) > 0 {
		m.References = other.References
	}
	if len(other.Tags) > 0 {
		m.Tags = other.Tags
	}
	if len(other.FalsePositives) > 0 {
		m.FalsePositives = other.FalsePositives
	}
}

// RawQuery is unparsed input plus whatever metadata the caller already knows.
type RawQuery struct {
	Query    string
	Language string
	Meta     *MetaInfo
}

// TokenizedQuery is the parser output consumed by renderers.
type TokenizedQuery struct {
	Tokens    []tokens.Token
	Tree      *compiler.Group
	Meta      *MetaInfo
	Functions ParsedFunctions
}

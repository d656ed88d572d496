package render

import "fmt"

// Tier of an unsupported construct: Hard aborts the rule, Soft is rendered
// as a visible "not supported" note.
type Tier int

const (
	Hard Tier = iota
	Soft
)

type UnsupportedConstructError struct {
	Platform  string
	Construct string
	Tier      Tier
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("%s: unsupported construct %s", e.Platform, e.Construct)
}

// UnsupportedRegexError: a regex the platform cannot express safely.
type UnsupportedRegexError struct {
	Platform string
	Field    string
	Value    string
	// Unmapped is set when the field had no mapping and the raw-message
	// fallback could not render the value either.
	Unmapped bool
}

func (e *UnsupportedRegexError) Error() string {
	if e.Unmapped {
		return fmt.Sprintf("complex regex is not supported for unmapped field %s on %s: %q", e.Field, e.Platform, e.Value)
	}
	return fmt.Sprintf("complex regex is not supported for field %s on %s: %q", e.Field, e.Platform, e.Value)
}

// StrictMappingError: strict platform without a mapping for the field.
type StrictMappingError struct {
	Platform string
	Field    string
	SourceID string
}

func (e *StrictMappingError) Error() string {
	return fmt.Sprintf("%s: field %s is not mapped for source %s", e.Platform, e.Field, e.SourceID)
}

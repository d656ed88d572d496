// Package mappings embeds the per-platform source mapping records.
// Each platform has its own directory with a default.yml; cti/ holds the
// indicator field tables.
package mappings

import "embed"

//go:embed */*.yml
var FS embed.FS

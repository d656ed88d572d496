package render

import (
	"strings"

	ac "github.com/petar-dambovaliev/aho-corasick"
)

// Quét một lượt tất cả marker bằng Aho–Corasick thay vì strings.Contains từng cái.
var (
	regexMarkers   = []string{"|", "*", "[", "]", "(", ")", "{", "}", "+", "?", "^", "$", `\d`, `\w`, `\s`}
	complexMarkers = []string{"[", "]", "(", ")", "{", "}", "+", "?", "^", "$", `\d`, `\w`, `\s`}

	regexScanner   = buildScanner(regexMarkers)
	complexScanner = buildScanner(complexMarkers)
)

func buildScanner(patterns []string) ac.AhoCorasick {
	b := ac.NewAhoCorasickBuilder(ac.Opts{
		MatchKind: ac.LeftMostLongestMatch,
	})
	return b.Build(patterns)
}

// IsRegexLike reports whether value carries alternation, glob or regex syntax.
func IsRegexLike(value string) bool {
	return len(regexScanner.FindAll(value)) > 0
}

// IsComplexRegex reports bracket, quantifier, anchor or class syntax that
// cannot be rewritten into plain substring checks.
func IsComplexRegex(value string) bool {
	return len(complexScanner.FindAll(value)) > 0
}

// SplitAlternation splits on unescaped '|' and then each alternative on
// unescaped '*': "abc|de*f" -> [[abc] [de f]]. Empty pieces are dropped.
func SplitAlternation(value string) [][]string {
	var out [][]string
	for _, alt := range splitUnescaped(value, '|') {
		var parts []string
		for _, p := range splitUnescaped(alt, '*') {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			out = append(out, parts)
		}
	}
	return out
}

func splitUnescaped(s string, sep byte) []string {
	var out []string
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == sep && (i == 0 || s[i-1] != '\\') {
			out = append(out, b.String())
			b.Reset()
			continue
		}
		b.WriteByte(s[i])
	}
	return append(out, b.String())
}

// AlternationContains renders SplitAlternation(value) as an OR of AND-ed
// contains clauses produced by clause, each alternative parenthesized.
func AlternationContains(value, or, and string, clause func(part string) string) string {
	groups := SplitAlternation(value)
	alts := make([]string, 0, len(groups))
	for _, parts := range groups {
		cs := make([]string, 0, len(parts))
		for _, p := range parts {
			cs = append(cs, clause(p))
		}
		alts = append(alts, "("+strings.Join(cs, " "+and+" ")+")")
	}
	if len(alts) == 1 {
		return alts[0]
	}
	return "(" + strings.Join(alts, " "+or+" ") + ")"
}

package tokenizer

import (
	"regexp"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

// InsertImplicitAnd adds AND between two operands that the dialect wrote
// side by side ("a=1 b=2", "a=1 (b=2)", "a=1 NOT b=2"). Running it on its own
// output changes nothing.
func InsertImplicitAnd(ts []tokens.Token) []tokens.Token {
	out := make([]tokens.Token, 0, len(ts))
	for i, t := range ts {
		if i > 0 && endsOperand(ts[i-1]) && startsOperand(t) {
			out = append(out, tokens.And)
		}
		out = append(out, t)
	}
	return out
}

func endsOperand(t tokens.Token) bool {
	return t.IsLeaf() || t.Is(tokens.IdentRParen)
}

func startsOperand(t tokens.Token) bool {
	return t.IsLeaf() || t.Is(tokens.IdentLParen) || t.Is(tokens.IdentNot)
}

// SourcePattern extracts one log-source key. Pattern must define either a
// "value" group (single value) or a "values" group (comma separated list).
// It should also consume the trailing connector (" and ", " or ", spaces) so
// the remaining query stays well formed.
type SourcePattern struct {
	Key     string
	Pattern *regexp.Regexp
	// Normalize maps a raw value, e.g. numeric qid or quoted string.
	Normalize func(string) string
}

var (
	listItem       = regexp.MustCompile(`'(?:[^']|'')*'|"[^"]*"|[^,\s]+`)
	danglingLead   = regexp.MustCompile(`(?i)^\s*(?:and|or)\s+`)
	danglingTrail  = regexp.MustCompile(`(?i)\s+(?:and|or)\s*$`)
	emptyParens    = regexp.MustCompile(`\(\s*\)`)
	danglingInside = regexp.MustCompile(`(?i)\(\s*(?:and|or)\s+|\s+(?:and|or)\s*\)`)
	doubleConn     = regexp.MustCompile(`(?i)\b(and|or)(?:\s+(?:and|or)\b)+`)
	spaces         = regexp.MustCompile(`\s+`)
)

// ExtractLogSources removes every log-source selector matched by patterns
// from query and returns the collected hints keyed by SourcePattern.Key.
// Each pattern is applied until it no longer matches. Matches starting
// inside a quoted literal belong to a value and are left alone.
func ExtractLogSources(query string, patterns []SourcePattern) (map[string][]string, string) {
	out := map[string][]string{}
	for _, sp := range patterns {
		vi := sp.Pattern.SubexpIndex("value")
		li := sp.Pattern.SubexpIndex("values")
		for {
			loc := firstUnquoted(sp.Pattern, query)
			if loc == nil {
				break
			}
			var values []string
			if vi > 0 && loc[2*vi] >= 0 {
				values = append(values, query[loc[2*vi]:loc[2*vi+1]])
			}
			if li > 0 && loc[2*li] >= 0 {
				values = append(values, listItem.FindAllString(query[loc[2*li]:loc[2*li+1]], -1)...)
			}
			for _, v := range values {
				v = trimQuotes(v)
				if sp.Normalize != nil {
					v = sp.Normalize(v)
				}
				out[sp.Key] = append(out[sp.Key], v)
			}
			query = query[:loc[0]] + " " + query[loc[1]:]
		}
	}
	return out, cleanQuery(query)
}

func firstUnquoted(re *regexp.Regexp, s string) []int {
	spans := quotedSpans(s)
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		if !insideSpan(spans, loc[0]) {
			return loc
		}
	}
	return nil
}

// quotedSpans lists [open, close] offsets of '...' and "..." literals.
// Backslash escapes the next byte inside double quotes only; an
// unterminated quote runs to the end.
func quotedSpans(s string) [][2]int {
	var spans [][2]int
	var quote byte
	open := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				spans = append(spans, [2]int{open, i})
				quote = 0
			}
		case c == '"' || c == '\'':
			quote, open = c, i
		}
	}
	if quote != 0 {
		spans = append(spans, [2]int{open, len(s)})
	}
	return spans
}

func insideSpan(spans [][2]int, pos int) bool {
	for _, sp := range spans {
		if pos > sp[0] && pos <= sp[1] {
			return true
		}
	}
	return false
}

func trimQuotes(v string) string {
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
		if v != "" && strings.Contains(v, "''") {
			v = strings.ReplaceAll(v, "''", "'")
		}
	}
	return v
}

func cleanQuery(q string) string {
	for {
		prev := q
		q = emptyParens.ReplaceAllString(q, " ")
		q = danglingInside.ReplaceAllStringFunc(q, func(s string) string {
			if strings.Contains(s, "(") {
				return "("
			}
			return ")"
		})
		q = doubleConn.ReplaceAllString(q, "${1}")
		q = danglingLead.ReplaceAllString(q, "")
		q = danglingTrail.ReplaceAllString(q, "")
		if q == prev {
			break
		}
	}
	return strings.TrimSpace(spaces.ReplaceAllString(q, " "))
}

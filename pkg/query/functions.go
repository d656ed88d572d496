package query

import "strings"

// Function is one recognized aggregation/statistics call.
type Function struct {
	Name string
	Args []string
	By   []string
	Raw  string
}

// ParsedFunctions: recognized calls in order, plus segments kept verbatim
// because nothing understood them.
type ParsedFunctions struct {
	Functions    []Function
	NotSupported []string
}

var pipeFunctions = map[string]bool{
	"stats": true, "table": true, "fields": true, "head": true, "sort": true, "dedup": true,
}

// SplitPipes splits text on '|' outside quotes and parentheses.
// The first segment is the filter; the rest are function segments.
func SplitPipes(text string) (string, []string) {
	var segs []string
	var quote byte
	depth, start := 0, 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == '|' && depth == 0:
			segs = append(segs, strings.TrimSpace(text[start:i]))
			start = i + 1
		}
	}
	segs = append(segs, strings.TrimSpace(text[start:]))
	return segs[0], segs[1:]
}

// ParsePipeFunctions parses SPL-like `name args [by fields]` segments.
func ParsePipeFunctions(segments []string) ParsedFunctions {
	var out ParsedFunctions
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		fields := strings.Fields(seg)
		name := strings.ToLower(fields[0])
		if !pipeFunctions[name] {
			out.NotSupported = append(out.NotSupported, seg)
			continue
		}
		fn := Function{Name: name, Raw: seg}
		args := fields[1:]
		for i, a := range args {
			if strings.EqualFold(a, "by") {
				fn.By = splitList(args[i+1:])
				args = args[:i]
				break
			}
		}
		fn.Args = splitList(args)
		out.Functions = append(out.Functions, fn)
	}
	return out
}

func splitList(words []string) []string {
	var out []string
	for _, w := range words {
		for _, p := range strings.Split(w, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

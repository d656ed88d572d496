package sigma

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

type tok struct{ kind, val string } // id|of|op|lpar|rpar

var reQuantifier = regexp.MustCompile(`^(?i)(\d+|all)$`)

func tokenize(s string) []tok {
	s = strings.NewReplacer("(", " ( ", ")", " ) ").Replace(s)
	parts := strings.Fields(s)
	out := make([]tok, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		p := parts[i]
		// "1 of sel*", "all of them"
		if reQuantifier.MatchString(p) && i+2 < len(parts) && strings.EqualFold(parts[i+1], "of") {
			out = append(out, tok{kind: "of", val: strings.ToLower(p) + " " + parts[i+2]})
			i += 2
			continue
		}
		switch strings.ToLower(p) {
		case "and", "or", "not":
			out = append(out, tok{kind: "op", val: strings.ToLower(p)})
		case "(":
			out = append(out, tok{kind: "lpar"})
		case ")":
			out = append(out, tok{kind: "rpar"})
		default:
			out = append(out, tok{kind: "id", val: p})
		}
	}
	return out
}

func prec(op string) int {
	switch op {
	case "not":
		return 3
	case "and":
		return 2
	case "or":
		return 1
	default:
		return 0
	}
}

func toRPN(ts []tok) ([]tok, error) {
	var out, st []tok
	for _, t := range ts {
		switch t.kind {
		case "id", "of":
			out = append(out, t)
		case "op":
			// not là toán tử một ngôi, kết hợp phải
			for t.val != "not" && len(st) > 0 && st[len(st)-1].kind == "op" && prec(st[len(st)-1].val) >= prec(t.val) {
				out = append(out, st[len(st)-1])
				st = st[:len(st)-1]
			}
			st = append(st, t)
		case "lpar":
			st = append(st, t)
		case "rpar":
			for len(st) > 0 && st[len(st)-1].kind != "lpar" {
				out = append(out, st[len(st)-1])
				st = st[:len(st)-1]
			}
			if len(st) == 0 {
				return nil, errors.New("unbalanced )")
			}
			st = st[:len(st)-1]
		}
	}
	for len(st) > 0 {
		if st[len(st)-1].kind == "lpar" {
			return nil, errors.New("unbalanced (")
		}
		out = append(out, st[len(st)-1])
		st = st[:len(st)-1]
	}
	return out, nil
}

// expandCondition rewrites a condition into generic tokens, replacing each
// selection reference by its parenthesized detection tokens. Precedence
// (not > and > or) is made explicit with parentheses.
func expandCondition(cond string, selections map[string][]tokens.Token, names []string) ([]tokens.Token, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil, errors.New("empty condition")
	}
	rpn, err := toRPN(tokenize(cond))
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", cond, err)
	}
	var st [][]tokens.Token
	pop := func() []tokens.Token { v := st[len(st)-1]; st = st[:len(st)-1]; return v }
	for _, t := range rpn {
		switch t.kind {
		case "id":
			ts, ok := selections[t.val]
			if !ok {
				return nil, fmt.Errorf("condition %q: unknown selection %s", cond, t.val)
			}
			st = append(st, wrap(ts))
		case "of":
			ts, err := quantified(t.val, selections, names)
			if err != nil {
				return nil, fmt.Errorf("condition %q: %w", cond, err)
			}
			st = append(st, ts)
		case "op":
			switch t.val {
			case "not":
				if len(st) < 1 {
					return nil, fmt.Errorf("condition %q: not without operand", cond)
				}
				a := pop()
				st = append(st, wrap(append([]tokens.Token{tokens.Not}, a...)))
			case "and", "or":
				if len(st) < 2 {
					return nil, fmt.Errorf("condition %q: %s without operands", cond, t.val)
				}
				join := tokens.And
				if t.val == "or" {
					join = tokens.Or
				}
				b, a := pop(), pop()
				expr := make([]tokens.Token, 0, len(a)+len(b)+1)
				expr = append(append(append(expr, a...), join), b...)
				st = append(st, wrap(expr))
			}
		}
	}
	if len(st) != 1 {
		return nil, fmt.Errorf("condition %q: dangling operands", cond)
	}
	return st[0], nil
}

func quantified(expr string, selections map[string][]tokens.Token, names []string) ([]tokens.Token, error) {
	q, pattern, _ := strings.Cut(expr, " ")
	join := tokens.Or
	switch q {
	case "all":
		join = tokens.And
	case "1":
	default:
		return nil, fmt.Errorf("%s of %s is not supported", q, pattern)
	}
	matched := matchSelections(pattern, names)
	if len(matched) == 0 {
		return nil, fmt.Errorf("no selection matches %s", pattern)
	}
	var out []tokens.Token
	for i, name := range matched {
		if i > 0 {
			out = append(out, join)
		}
		out = append(out, wrap(selections[name])...)
	}
	return wrap(out), nil
}

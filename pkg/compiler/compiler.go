// Package compiler turns a flat token stream into a tree of AND/OR/NOT groups.
package compiler

import (
	"fmt"
	"strings"

	"github.com/PhucNguyen204/query_translator/pkg/tokens"
)

type Op int

const (
	OpNone Op = iota // bọc một lá duy nhất
	OpAnd
	OpOr
	OpNot
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpNot:
		return "NOT"
	default:
		return "NONE"
	}
}

// Node is *Group or Leaf.
type Node interface {
	node()
	String() string
}

// Leaf wraps a FieldValue or Keyword token.
type Leaf struct {
	tokens.Token
}

// Group is an operator over its children. NOT groups have exactly one child;
// OpNone groups only appear as the root around a single leaf.
type Group struct {
	Op       Op
	Children []Node
}

func (*Group) node() {}
func (Leaf) node()   {}

func (g *Group) String() string {
	parts := make([]string, 0, len(g.Children))
	for _, c := range g.Children {
		parts = append(parts, c.String())
	}
	if g.Op == OpNone {
		return strings.Join(parts, " ")
	}
	return g.Op.String() + "(" + strings.Join(parts, ", ") + ")"
}

// UnbalancedGroupError: unmatched parenthesis or a NOT without operand.
type UnbalancedGroupError struct {
	Position int
	Reason   string
}

func (e *UnbalancedGroupError) Error() string {
	return fmt.Sprintf("unbalanced group at token %d: %s", e.Position, e.Reason)
}

// NormalizeNot wraps a leaf directly following NOT in parentheses, so NOT
// always applies to a delimited group and never absorbs the next AND/OR.
func NormalizeNot(ts []tokens.Token) []tokens.Token {
	out := make([]tokens.Token, 0, len(ts))
	for i := 0; i < len(ts); i++ {
		out = append(out, ts[i])
		if ts[i].Is(tokens.IdentNot) && i+1 < len(ts) && ts[i+1].IsLeaf() {
			out = append(out, tokens.LParen, ts[i+1], tokens.RParen)
			i++
		}
	}
	return out
}

// Compile normalizes NOT scope and builds the expression tree. The returned
// group is never nil; an empty input yields an AND group without children.
func Compile(ts []tokens.Token) (*Group, error) {
	p := &parser{toks: NormalizeNot(ts)}
	n, err := p.scope(0)
	if err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case nil:
		return &Group{Op: OpAnd}, nil
	case *Group:
		return v, nil
	default:
		return &Group{Op: OpNone, Children: []Node{v}}, nil
	}
}

type parser struct {
	toks []tokens.Token
	pos  int
}

// scope đọc đến ')' (depth > 0) hoặc hết input.
func (p *parser) scope(depth int) (Node, error) {
	var acc *Group
	pending := OpNone
	add := func(n Node) {
		if n == nil {
			return
		}
		op := pending
		if op == OpNone {
			op = OpAnd
		}
		pending = OpNone
		switch {
		case acc == nil:
			acc = &Group{Op: op, Children: []Node{n}}
		case len(acc.Children) == 1:
			acc.Op = op
			acc.Children = append(acc.Children, n)
		case acc.Op == op:
			acc.Children = append(acc.Children, n)
		default:
			// chuỗi trái-kết-hợp: a AND b OR c -> OR(AND(a,b), c)
			acc = &Group{Op: op, Children: []Node{acc, n}}
		}
	}

	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch {
		case t.Is(tokens.IdentRParen):
			if depth == 0 {
				return nil, &UnbalancedGroupError{Position: p.pos, Reason: "unmatched ')'"}
			}
			p.pos++
			return finalize(acc), nil
		case t.Is(tokens.IdentAnd):
			pending = OpAnd
			p.pos++
		case t.Is(tokens.IdentOr):
			pending = OpOr
			p.pos++
		default:
			n, err := p.operand(depth)
			if err != nil {
				return nil, err
			}
			add(n)
		}
	}
	if depth > 0 {
		return nil, &UnbalancedGroupError{Position: p.pos, Reason: "unmatched '('"}
	}
	return finalize(acc), nil
}

// operand reads one leaf, parenthesized scope or NOT expression.
func (p *parser) operand(depth int) (Node, error) {
	t := p.toks[p.pos]
	switch {
	case t.IsLeaf():
		p.pos++
		return Leaf{Token: t}, nil
	case t.Is(tokens.IdentLParen):
		p.pos++
		return p.scope(depth + 1)
	case t.Is(tokens.IdentNot):
		at := p.pos
		p.pos++
		if p.pos >= len(p.toks) || p.toks[p.pos].Is(tokens.IdentRParen) ||
			p.toks[p.pos].Is(tokens.IdentAnd) || p.toks[p.pos].Is(tokens.IdentOr) {
			return nil, &UnbalancedGroupError{Position: at, Reason: "NOT without operand"}
		}
		// NOT là đơn ngôi: chỉ lấy đúng một toán hạng rồi trả về scope cha
		n, err := p.operand(depth)
		if err != nil {
			return nil, err
		}
		if n == nil {
			// NOT ()
			return nil, &UnbalancedGroupError{Position: at, Reason: "NOT without operand"}
		}
		return &Group{Op: OpNot, Children: []Node{n}}, nil
	default:
		return nil, fmt.Errorf("compile: unexpected %s token at %d", t, p.pos)
	}
}

func finalize(g *Group) Node {
	if g == nil || len(g.Children) == 0 {
		return nil
	}
	if len(g.Children) == 1 && g.Op != OpNot {
		return g.Children[0]
	}
	return g
}

// Fields returns distinct source field names referenced under n, first-seen order.
func Fields(n Node) []string {
	var out []string
	seen := map[string]struct{}{}
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *Group:
			for _, c := range v.Children {
				walk(c)
			}
		case Leaf:
			if v.Kind != tokens.KindFieldValue {
				return
			}
			name := v.FieldValue.Field.SourceName
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	walk(n)
	return out
}

// Walk calls fn for every leaf under n in order.
func Walk(n Node, fn func(Leaf)) {
	switch v := n.(type) {
	case *Group:
		for _, c := range v.Children {
			Walk(c, fn)
		}
	case Leaf:
		fn(v)
	}
}

package escape

import "testing"

func TestEscapeDoubleQuotesRoundTrip(t *testing.T) {
	m := NewManager(map[ValueType][]Rule{
		DoubleQuotesValue: {SymbolRule(`\"`, `\`)},
	})
	in := `he said "hi"`
	esc := m.Escape(in, DoubleQuotesValue)
	if esc != `he said \"hi\"` {
		t.Fatalf("escaped = %q", esc)
	}
	if got := m.Unescape(esc, DoubleQuotesValue); got != in {
		t.Fatalf("round trip = %q", got)
	}
}

func TestEscapeBackslashBeforeQuote(t *testing.T) {
	m := NewManager(map[ValueType][]Rule{
		Value: {SymbolRule(`\"`, `\`)},
	})
	in := `c:\temp\"x`
	if got := m.Unescape(m.Escape(in, Value), Value); got != in {
		t.Fatalf("round trip = %q", got)
	}
}

func TestEscapeRegexClassWithDash(t *testing.T) {
	m := NewManager(map[ValueType][]Rule{
		RegexValue: {SymbolRule(`.-[]`, `\`)},
	})
	if got := m.Escape("a.b-c[d]", RegexValue); got != `a\.b\-c\[d\]` {
		t.Fatalf("escaped = %q", got)
	}
}

func TestEscapeUnknownTypeUnchanged(t *testing.T) {
	m := NewManager(map[ValueType][]Rule{
		SingleQuotesValue: {ReplaceRule(`'`, `''`)},
	})
	if got := m.Escape(`it's`, DoubleQuotesValue); got != `it's` {
		t.Fatalf("got %q", got)
	}
	if got := m.Escape(`it's`, SingleQuotesValue); got != `it''s` {
		t.Fatalf("got %q", got)
	}
	if m.Has(RegexValue) || !m.Has(SingleQuotesValue) {
		t.Fatalf("Has mismatch")
	}
}

func TestZeroManagerEscapesNothing(t *testing.T) {
	var m Manager
	if got := m.Escape(`"x"`, Value); got != `"x"` {
		t.Fatalf("got %q", got)
	}
}

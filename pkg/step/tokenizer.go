package step

import (
	"strconv"
	"strings"
)

// dateTypes are the typed wrappers whose string payload is a date or time.
var dateTypes = map[string]bool{
	"IFCDATE":      true,
	"IFCDATETIME":  true,
	"IFCTIME":      true,
	"IFCTIMESTAMP": true,
}

// tokenizer decodes the attribute list of one record. Decode problems are
// counted, never returned: the offending token is kept as KindRaw.
type tokenizer struct {
	s        string
	pos      int
	failures int
}

// ParseAttributes decodes a comma separated attribute list (the text
// between the outer parentheses of a record). The second result counts
// tokens that could not be decoded and were kept verbatim.
func ParseAttributes(s string) ([]Value, int) {
	t := &tokenizer{s: s}
	vals := t.list(len(s))
	return vals, t.failures
}

// list reads values separated by commas until a closing parenthesis or
// end. The closing parenthesis is consumed.
func (t *tokenizer) list(end int) []Value {
	var vals []Value
	for {
		t.skipSpace()
		if t.pos >= end {
			return vals
		}
		if t.s[t.pos] == ')' {
			t.pos++
			return vals
		}
		vals = append(vals, t.value())
		t.skipSpace()
		if t.pos < end && t.s[t.pos] == ',' {
			t.pos++
		}
	}
}

func (t *tokenizer) skipSpace() {
	for t.pos < len(t.s) {
		switch t.s[t.pos] {
		case ' ', '\t', '\r', '\n':
			t.pos++
		default:
			return
		}
	}
}

func (t *tokenizer) value() Value {
	c := t.s[t.pos]
	switch {
	case c == '$':
		t.pos++
		return Null
	case c == '*':
		t.pos++
		return Value{Kind: KindDerived}
	case c == '#':
		return t.ref()
	case c == '\'':
		return t.str()
	case c == '.':
		return t.enum()
	case c == '(':
		t.pos++
		return Value{Kind: KindList, List: t.list(len(t.s))}
	case c == '"':
		return t.binary()
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return t.number()
	case isIdentStart(c):
		return t.typed()
	}
	return t.raw()
}

func (t *tokenizer) ref() Value {
	start := t.pos
	t.pos++
	for t.pos < len(t.s) && isDigit(t.s[t.pos]) {
		t.pos++
	}
	id, err := strconv.Atoi(t.s[start+1 : t.pos])
	if err != nil {
		t.failures++
		return Value{Kind: KindRaw, Str: t.s[start:t.pos]}
	}
	return Value{Kind: KindRef, Ref: id}
}

func (t *tokenizer) str() Value {
	t.pos++ // opening quote
	var b strings.Builder
	closed := false
	for t.pos < len(t.s) {
		c := t.s[t.pos]
		if c == '\'' {
			if t.pos+1 < len(t.s) && t.s[t.pos+1] == '\'' {
				b.WriteByte('\'')
				t.pos += 2
				continue
			}
			t.pos++
			closed = true
			break
		}
		b.WriteByte(c)
		t.pos++
	}
	if !closed {
		t.failures++
		return Value{Kind: KindRaw, Str: b.String()}
	}
	decoded, ok := DecodeString(b.String())
	if !ok {
		t.failures++
	}
	return Value{Kind: KindString, Str: decoded}
}

func (t *tokenizer) enum() Value {
	start := t.pos
	t.pos++
	end := strings.IndexByte(t.s[t.pos:], '.')
	if end < 0 {
		t.failures++
		t.pos = t.delimiter()
		return Value{Kind: KindRaw, Str: t.s[start:t.pos]}
	}
	name := t.s[t.pos : t.pos+end]
	t.pos += end + 1

	switch name {
	case "T":
		return Value{Kind: KindBoolean, Bool: True}
	case "F":
		return Value{Kind: KindBoolean, Bool: False}
	case "U":
		return Value{Kind: KindBoolean, Bool: Unknown}
	}
	return Value{Kind: KindEnum, Str: name}
}

func (t *tokenizer) number() Value {
	start := t.pos
	t.pos = t.delimiter()
	tok := strings.TrimSpace(t.s[start:t.pos])

	if !strings.ContainsAny(tok, ".eE") {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return Value{Kind: KindInteger, Int: n}
		}
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		t.failures++
		return Value{Kind: KindRaw, Str: tok}
	}
	return Value{Kind: KindNumber, Num: f}
}

// typed reads a wrapper such as IFCLABEL('x') or IFCBOOLEAN(.T.).
func (t *tokenizer) typed() Value {
	start := t.pos
	for t.pos < len(t.s) && isIdentPart(t.s[t.pos]) {
		t.pos++
	}
	name := strings.ToUpper(t.s[start:t.pos])
	t.skipSpace()
	if t.pos >= len(t.s) || t.s[t.pos] != '(' {
		t.failures++
		return Value{Kind: KindRaw, Str: t.s[start:t.pos]}
	}
	t.pos++
	inner := t.list(len(t.s))

	var v Value
	switch len(inner) {
	case 0:
		v = Null
	case 1:
		v = inner[0]
	default:
		v = Value{Kind: KindList, List: inner}
	}
	v.TypeName = name
	if dateTypes[name] && v.Kind == KindString {
		v.Kind = KindDate
	}
	return v
}

// binary keeps a "..." hex literal verbatim; nothing in this package
// interprets binary attributes.
func (t *tokenizer) binary() Value {
	start := t.pos
	end := strings.IndexByte(t.s[start+1:], '"')
	if end < 0 {
		return t.raw()
	}
	t.pos = start + end + 2
	return Value{Kind: KindRaw, Str: t.s[start:t.pos]}
}

func (t *tokenizer) raw() Value {
	start := t.pos
	t.pos = t.delimiter()
	if t.pos == start {
		t.pos++
	}
	t.failures++
	return Value{Kind: KindRaw, Str: t.s[start:t.pos]}
}

// delimiter returns the index of the next top-level ',' or ')'.
func (t *tokenizer) delimiter() int {
	i := t.pos
	for i < len(t.s) && t.s[i] != ',' && t.s[i] != ')' {
		i++
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

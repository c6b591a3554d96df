package structstream

import (
	"strconv"
	"strings"
)

// ParsePartial parses text that may be an arbitrarily truncated JSON document
// and returns the best reconstruction, implicitly closing open strings, arrays
// and objects. It reports ok=false when no value can be recovered at all
// (empty input, or input that never reaches a '{' or '[').
//
// ParsePartial never fails on truncation: a string cut mid-escape is closed at
// the cut point, a dangling object key with no value is dropped, a number cut
// mid-digit keeps the digits seen so far, and a trailing comma with no element
// after it is ignored. The same input always yields the same Value.
func ParsePartial(text string) (Value, bool) {
	trimmed := normalizePayload(text)
	if trimmed == "" {
		return Null, false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return Null, false
	}
	p := partialParser{src: trimmed}
	v, ok := p.parseValue()
	if !ok {
		return Null, false
	}
	return v, true
}

// normalizePayload strips markdown code fences and any prose before the first
// JSON opener. Models frequently wrap structured output in ```json fences even
// when asked not to.
func normalizePayload(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			return ""
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.IndexAny(s, "{["); start > 0 {
		s = s[start:]
	}
	return s
}

type partialParser struct {
	src string
	pos int
}

func (p *partialParser) eof() bool { return p.pos >= len(p.src) }

func (p *partialParser) peek() byte { return p.src[p.pos] }

func (p *partialParser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// parseValue parses one JSON value starting at the current position. ok=false
// means nothing consumable was found (end of input before any value byte).
func (p *partialParser) parseValue() (Value, bool) {
	p.skipSpace()
	if p.eof() {
		return Null, false
	}
	switch c := p.peek(); {
	case c == '{':
		return p.parseObject(), true
	case c == '[':
		return p.parseArray(), true
	case c == '"':
		return p.parseString(), true
	case c == 't' || c == 'f' || c == 'n':
		return p.parseLiteral(), true
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber(), true
	default:
		// Unexpected byte: consume it so the caller's loop makes progress,
		// then report nothing found.
		p.pos++
		return Null, false
	}
}

func (p *partialParser) parseObject() Value {
	p.pos++ // consume '{'
	obj := Value{Kind: KindObject, Obj: map[string]Value{}}
	for {
		p.skipSpace()
		if p.eof() {
			obj.Partial = true
			return obj
		}
		if p.peek() == '}' {
			p.pos++
			return obj
		}
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() != '"' {
			// Unparseable member start; drop the rest of the object.
			obj.Partial = true
			p.skipToEnd()
			return obj
		}
		key := p.parseString()
		if key.Partial {
			// Key cut mid-stream; its value has not begun, discard it.
			obj.Partial = true
			return obj
		}
		p.skipSpace()
		if p.eof() {
			// Dangling key with no colon yet.
			obj.Partial = true
			return obj
		}
		if p.peek() != ':' {
			obj.Partial = true
			p.skipToEnd()
			return obj
		}
		p.pos++ // consume ':'
		val, ok := p.parseValue()
		if !ok {
			// Key with no value started; drop the key.
			obj.Partial = true
			return obj
		}
		obj.Obj[key.Str] = val
		if val.Partial {
			obj.Partial = true
		}
	}
}

func (p *partialParser) parseArray() Value {
	p.pos++ // consume '['
	arr := Value{Kind: KindArray}
	for {
		p.skipSpace()
		if p.eof() {
			arr.Partial = true
			return arr
		}
		switch p.peek() {
		case ']':
			p.pos++
			return arr
		case ',':
			p.pos++
			continue
		}
		el, ok := p.parseValue()
		if !ok {
			arr.Partial = true
			return arr
		}
		arr.Arr = append(arr.Arr, el)
		if el.Partial {
			arr.Partial = true
		}
	}
}

func (p *partialParser) parseString() Value {
	p.pos++ // consume opening '"'
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		if c == '"' {
			p.pos++
			return Value{Kind: KindString, Str: b.String()}
		}
		if c != '\\' {
			b.WriteByte(c)
			p.pos++
			continue
		}
		// Escape sequence. If it is cut off, close the string at the cut.
		if p.pos+1 >= len(p.src) {
			p.pos = len(p.src)
			return Value{Kind: KindString, Str: b.String(), Partial: true}
		}
		esc := p.src[p.pos+1]
		p.pos += 2
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '"', '\\', '/':
			b.WriteByte(esc)
		case 'u':
			if p.pos+4 > len(p.src) {
				// Truncated \uXXXX; drop the incomplete sequence.
				p.pos = len(p.src)
				return Value{Kind: KindString, Str: b.String(), Partial: true}
			}
			hex := p.src[p.pos : p.pos+4]
			if code, err := strconv.ParseUint(hex, 16, 32); err == nil {
				b.WriteRune(rune(code))
				p.pos += 4
			} else {
				b.WriteString("\\u")
			}
		default:
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}
	return Value{Kind: KindString, Str: b.String(), Partial: true}
}

func (p *partialParser) parseNumber() Value {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	raw := p.src[start:p.pos]
	partial := p.eof()
	// Trim trailing bytes that cannot end a JSON number ("1e", "3.", "-").
	for raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return Value{Kind: KindNumber, Num: f, Partial: partial}
		}
		raw = raw[:len(raw)-1]
		partial = true
	}
	return Value{Kind: KindNumber, Partial: true}
}

// parseLiteral handles true/false/null, accepting truncated prefixes at end
// of input ("tru", "nul").
func (p *partialParser) parseLiteral() Value {
	rest := p.src[p.pos:]
	for _, lit := range [...]struct {
		text  string
		value Value
	}{
		{"true", Value{Kind: KindBool, Bool: true}},
		{"false", Value{Kind: KindBool}},
		{"null", Value{Kind: KindNull}},
	} {
		if strings.HasPrefix(rest, lit.text) {
			p.pos += len(lit.text)
			return lit.value
		}
		if strings.HasPrefix(lit.text, rest) {
			// Literal cut off by the end of the buffer.
			v := lit.value
			v.Partial = true
			p.pos = len(p.src)
			return v
		}
	}
	// Not a known literal; consume one byte and surface null.
	p.pos++
	return Value{Kind: KindNull, Partial: true}
}

func (p *partialParser) skipToEnd() { p.pos = len(p.src) }

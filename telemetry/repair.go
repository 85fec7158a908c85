package telemetry

import (
	"encoding/json"
	"strings"
)

// topLevelKeys end an orphaned signals run: once one of these appears as a key the
// scanner is back in the envelope. Signal values are numbers, so a pair holding a
// string, object, array or literal also ends the run whatever its key.
var topLevelKeys = map[string]bool{
	"id":             true,
	"can_id":         true,
	"arbitration_id": true,
	"timestamp":      true,
	"ts":             true,
	"bus":            true,
	"raw":            true,
	"name":           true,
	"data":           true,
	"dlc":            true,
}

// RepairJSON rewrites a telemetry message whose "signals" member lost its braces,
// either left empty (`"signals": "ts":1`) or spliced into the parent
// (`"signals":"A":1,"ts":2`). Nothing else is repaired: truncated input stays
// truncated so a cut-off value never reaches a record. Valid JSON is returned
// unchanged, as is anything the repair cannot turn into valid JSON, so
// RepairJSON(RepairJSON(s)) == RepairJSON(s).
func RepairJSON(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}
	fixed, ok := wrapSignals(s)
	if !ok || !json.Valid([]byte(fixed)) {
		return s
	}
	return fixed
}

// wrapSignals finds the value position of the "signals" key and, when it is not
// already an object, wraps the key/value pairs that follow in braces.
func wrapSignals(s string) (string, bool) {
	p, ok := signalsValueStart(s)
	if !ok || p < len(s) && s[p] == '{' {
		return s, false
	}

	sc := scanner{s: s, pos: p}
	var pairs []string
	for {
		sc.skipSpaceAndCommas()
		if sc.eof() || sc.peek() == '}' {
			break
		}
		keyStart := sc.pos
		key, quoted, ok := sc.key()
		if !ok {
			return s, false
		}
		rawKey := s[keyStart:sc.pos]
		if !quoted {
			rawKey = `"` + key + `"`
		}
		sc.skipSpace()
		if sc.eof() || sc.peek() != ':' {
			return s, false
		}
		if quoted && topLevelKeys[key] {
			sc.pos = keyStart
			break
		}
		sc.pos++
		sc.skipSpace()
		if sc.eof() {
			return s, false
		}
		if !isNumberStart(sc.peek()) {
			sc.pos = keyStart
			break
		}
		val, ok := sc.value()
		if !ok {
			return s, false
		}
		pairs = append(pairs, rawKey+":"+val)
	}

	var b strings.Builder
	b.WriteString(s[:p])
	b.WriteByte('{')
	b.WriteString(strings.Join(pairs, ","))
	b.WriteByte('}')
	rest := s[sc.pos:]
	if rest != "" && rest[0] == '"' {
		b.WriteByte(',')
	}
	b.WriteString(rest)
	return b.String(), true
}

// signalsValueStart returns the offset of the first non-space byte after
// `"signals":`.
func signalsValueStart(s string) (int, bool) {
	const key = `"signals"`
	from := 0
	for {
		i := strings.Index(s[from:], key)
		if i < 0 {
			return 0, false
		}
		sc := scanner{s: s, pos: from + i + len(key)}
		sc.skipSpace()
		if !sc.eof() && sc.peek() == ':' {
			sc.pos++
			sc.skipSpace()
			return sc.pos, true
		}
		from += i + len(key)
	}
}

type scanner struct {
	s   string
	pos int
}

func (sc *scanner) eof() bool  { return sc.pos >= len(sc.s) }
func (sc *scanner) peek() byte { return sc.s[sc.pos] }

func (sc *scanner) skipSpace() {
	for !sc.eof() && isSpace(sc.peek()) {
		sc.pos++
	}
}

func (sc *scanner) skipSpaceAndCommas() {
	for !sc.eof() && (isSpace(sc.peek()) || sc.peek() == ',') {
		sc.pos++
	}
}

// key reads a quoted key or a bare identifier.
func (sc *scanner) key() (string, bool, bool) {
	if sc.peek() == '"' {
		end := closingQuote(sc.s, sc.pos)
		if end < 0 {
			return "", false, false
		}
		var k string
		if err := json.Unmarshal([]byte(sc.s[sc.pos:end+1]), &k); err != nil {
			return "", false, false
		}
		sc.pos = end + 1
		return k, true, true
	}
	start := sc.pos
	for !sc.eof() && isBareKeyByte(sc.peek()) {
		sc.pos++
	}
	if sc.pos == start {
		return "", false, false
	}
	return sc.s[start:sc.pos], false, true
}

// value reads a scalar verbatim, running up to the next separator.
func (sc *scanner) value() (string, bool) {
	start := sc.pos
	for !sc.eof() {
		c := sc.peek()
		if c == ',' || c == '}' || c == '\n' || c == '\r' {
			break
		}
		sc.pos++
	}
	v := strings.TrimSpace(sc.s[start:sc.pos])
	return v, v != ""
}

// closingQuote returns the index of the quote ending the string opened at i.
func closingQuote(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isBareKeyByte(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isNumberStart(c byte) bool {
	return c == '-' || c >= '0' && c <= '9'
}

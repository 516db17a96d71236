package nntp

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Headers is an article header multimap. Repeated names keep every value in
// the order they appeared.
type Headers struct {
	values map[string][]string
	count  int
}

// NewHeaders returns an empty header set.
func NewHeaders() Headers {
	return Headers{values: make(map[string][]string)}
}

// Add appends a value for name.
func (h *Headers) Add(name, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	h.values[name] = append(h.values[name], value)
	h.count++
}

// Len is the total number of header entries, counting repeats.
func (h Headers) Len() int { return h.count }

// Values returns every value recorded for name. Lookup falls back to a case
// insensitive match since header names are not case sensitive on the wire.
func (h Headers) Values(name string) []string {
	if v, ok := h.values[name]; ok {
		return v
	}
	for k, v := range h.values {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// Get returns the first value for name, or "".
func (h Headers) Get(name string) string {
	if v := h.Values(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Names returns the distinct header names, sorted.
func (h Headers) Names() []string {
	names := make([]string, 0, len(h.values))
	for k := range h.values {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Map returns a copy of the underlying multimap.
func (h Headers) Map() map[string][]string {
	out := make(map[string][]string, len(h.values))
	for k, v := range h.values {
		out[k] = slices.Clone(v)
	}
	return out
}

var errNoHeaders = errors.New("header section is empty")

// ParseHeaders parses an RFC 3977 (appendix A.1) header section:
//
//	header         = header-name ":" SP header-content CRLF
//	header-content = [WS] token *( [CRLF] WS token )
//
// The section ends at a bare CRLF. The returned offset is the first byte of
// the body. Folded values are unfolded by dropping the CRLF and keeping the
// continuation whitespace.
func ParseHeaders(b []byte) (Headers, int, error) {
	return parseHeaderSection(b, false)
}

// parseHeaderSection also accepts the end of b as the end of the section when
// eofEnds is set. HEAD responses carry no blank line before the terminator.
func parseHeaderSection(b []byte, eofEnds bool) (Headers, int, error) {
	h := NewHeaders()
	pos := 0
	for {
		if hasCRLF(b, pos) || (eofEnds && pos == len(b)) {
			if h.count == 0 {
				return Headers{}, 0, errNoHeaders
			}
			if pos == len(b) {
				return h, pos, nil
			}
			return h, pos + 2, nil
		}
		if pos >= len(b) {
			return Headers{}, 0, errors.New("header section is not terminated by an empty line")
		}

		name, value, next, err := parseHeader(b, pos)
		if err != nil {
			return Headers{}, 0, fmt.Errorf("header %d at offset %d: %w", h.count+1, pos, err)
		}
		h.Add(name, value)
		pos = next
	}
}

func parseHeader(b []byte, pos int) (name, value string, next int, err error) {
	start := pos
	for pos < len(b) && isANotColon(b[pos]) {
		pos++
	}
	if pos == start {
		return "", "", 0, errors.New("missing header name")
	}
	name = string(b[start:pos])

	if pos+1 >= len(b) || b[pos] != ':' || b[pos+1] != ' ' {
		return "", "", 0, fmt.Errorf("malformed separator after %q", name)
	}
	pos += 2
	pos = skipWS(b, pos)

	var sb strings.Builder
	for {
		tokStart := pos
		pos = skipToken(b, pos)
		if pos == tokStart {
			return "", "", 0, fmt.Errorf("expected token in %q at offset %d", name, pos)
		}
		sb.Write(b[tokStart:pos])

		wsStart := pos
		pos = skipWS(b, pos)
		ws := b[wsStart:pos]

		switch {
		case hasCRLF(b, pos) && pos+2 < len(b) && isWS(b[pos+2]):
			// folded continuation
			foldStart := pos + 2
			pos = skipWS(b, foldStart)
			if pos == skipToken(b, pos) {
				return "", "", 0, fmt.Errorf("folded line of %q has no content", name)
			}
			sb.Write(ws)
			sb.Write(b[foldStart:pos])
		case hasCRLF(b, pos):
			return name, sb.String(), pos + 2, nil
		case len(ws) > 0 && pos < len(b):
			sb.Write(ws)
		default:
			return "", "", 0, fmt.Errorf("unexpected byte in %q at offset %d", name, pos)
		}
	}
}

// skipToken advances over P-CHARs: printable ASCII or well formed non-ASCII
// UTF-8 code points.
func skipToken(b []byte, pos int) int {
	for pos < len(b) {
		c := b[pos]
		if c < utf8.RuneSelf {
			if c < 0x21 || c > 0x7e {
				return pos
			}
			pos++
			continue
		}
		r, size := utf8.DecodeRune(b[pos:])
		if r == utf8.RuneError && size <= 1 {
			return pos
		}
		pos += size
	}
	return pos
}

func skipWS(b []byte, pos int) int {
	for pos < len(b) && isWS(b[pos]) {
		pos++
	}
	return pos
}

func hasCRLF(b []byte, pos int) bool {
	return pos+1 < len(b) && b[pos] == '\r' && b[pos+1] == '\n'
}

func isWS(c byte) bool { return c == ' ' || c == '\t' }

// A-NOTCOLON: printable ASCII other than ':'.
func isANotColon(c byte) bool {
	return (c >= 0x21 && c <= 0x39) || (c >= 0x3b && c <= 0x7e)
}

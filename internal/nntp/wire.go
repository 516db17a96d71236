package nntp

import "bytes"

var (
	crlf       = []byte("\r\n")
	terminator = []byte(".")
)

// StatusLine is the parsed first line of a response. Text aliases the input
// slice; copy it before the input buffer is reused.
type StatusLine struct {
	Code     [3]byte
	Text     []byte
	Consumed int
}

// Value returns the numeric code.
func (s StatusLine) Value() uint16 {
	return uint16(s.Code[0]-'0')*100 + uint16(s.Code[1]-'0')*10 + uint16(s.Code[2]-'0')
}

// ParseStatusLine parses exactly one status line:
//
//	status-line = code SP text CRLF
//	code        = %x31-35 DIGIT DIGIT
//
// The whole of b must be consumed.
func ParseStatusLine(b []byte) (StatusLine, error) {
	const op = "status line"

	content, err := takeLine(op, b)
	if err != nil {
		return StatusLine{}, err
	}
	if len(content) < 4 {
		return StatusLine{}, parseErr(op, "line too short (%d bytes)", len(content))
	}
	if content[0] < '1' || content[0] > '5' {
		return StatusLine{}, parseErr(op, "invalid first digit %q", content[0])
	}
	if !isDigit(content[1]) || !isDigit(content[2]) {
		return StatusLine{}, parseErr(op, "response code %q is not three digits", content[:3])
	}
	if content[3] != ' ' {
		return StatusLine{}, parseErr(op, "expected space after response code")
	}

	return StatusLine{
		Code:     [3]byte{content[0], content[1], content[2]},
		Text:     content[4:],
		Consumed: len(b),
	}, nil
}

// ParseDataBlockLine returns the content of a single CRLF terminated line.
// The whole of b must be that one line.
func ParseDataBlockLine(b []byte) ([]byte, error) {
	return takeLine("data block line", b)
}

// IsEndOfDataBlock reports whether line (without its CRLF) is the lone "."
// that ends a multi-line section.
func IsEndOfDataBlock(line []byte) bool {
	return bytes.Equal(line, terminator)
}

func takeLine(op string, b []byte) ([]byte, error) {
	i := bytes.Index(b, crlf)
	if i < 0 {
		return nil, parseErr(op, "missing CRLF terminator")
	}
	if rest := len(b) - (i + len(crlf)); rest != 0 {
		return nil, parseErr(op, "%d unconsumed bytes after CRLF", rest)
	}
	return b[:i], nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

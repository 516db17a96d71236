package nntp

import (
	"bytes"
	"iter"
	"strings"
	"unicode/utf8"
)

// LineBounds are the [Start, End) offsets of one physical line, CRLF
// included, within a payload.
type LineBounds struct {
	Start, End int
}

// RawResponse is a framed response. It owns its bytes; nothing in it aliases
// the connection's read buffers.
type RawResponse struct {
	Code       ResponseCode
	statusLine []byte
	dataBlocks *DataBlocks
}

// NewRawResponse builds a response from owned parts. It is mostly useful to
// tests and to callers that frame responses themselves.
func NewRawResponse(code ResponseCode, statusLine []byte, db *DataBlocks) *RawResponse {
	return &RawResponse{Code: code, statusLine: statusLine, dataBlocks: db}
}

// StatusLine returns the full first line including code and CRLF.
func (r *RawResponse) StatusLine() []byte { return r.statusLine }

// Text returns the status line without the code, separator and CRLF.
func (r *RawResponse) Text() []byte {
	if len(r.statusLine) < 6 {
		return nil
	}
	return r.statusLine[4 : len(r.statusLine)-2]
}

// StatusLineString is a lossy UTF-8 rendering of the status line without
// its terminator.
func (r *RawResponse) StatusLineString() string {
	return strings.ToValidUTF8(string(bytes.TrimSuffix(r.statusLine, crlf)), string(utf8.RuneError))
}

// HasDataBlocks reports whether a multi-line section was read.
func (r *RawResponse) HasDataBlocks() bool { return r.dataBlocks != nil }

// DataBlocks returns the multi-line section, or nil when none was read.
func (r *RawResponse) DataBlocks() *DataBlocks { return r.dataBlocks }

// FailUnless returns a *FailureError when the response code is not want.
func (r *RawResponse) FailUnless(want ResponseCode) error {
	if r.Code != want {
		return NewFailure(r, r.StatusLineString())
	}
	return nil
}

// FailUnlessKind is FailUnless keyed on the code's kind.
func (r *RawResponse) FailUnlessKind(want Kind) error {
	return r.FailUnless(ResponseCode(want.Code()))
}

// DataBlocks is the multi-line section of a response. The last recorded line
// is the "." terminator.
type DataBlocks struct {
	payload []byte
	bounds  []LineBounds
}

// NewDataBlocks builds a section from an owned payload and its line bounds.
func NewDataBlocks(payload []byte, bounds []LineBounds) *DataBlocks {
	return &DataBlocks{payload: payload, bounds: bounds}
}

// Payload returns every byte read, terminator line included.
func (d *DataBlocks) Payload() []byte { return d.payload }

// Bounds returns the line offsets into Payload.
func (d *DataBlocks) Bounds() []LineBounds { return d.bounds }

// Lines yields each physical line with its CRLF, including the final ".".
func (d *DataBlocks) Lines() iter.Seq[[]byte] {
	return terminatedLines(d.payload, d.bounds)
}

// Unterminated yields each line without its CRLF and stops before the "."
// terminator.
func (d *DataBlocks) Unterminated() iter.Seq[[]byte] {
	return unterminatedLines(d.payload, d.bounds)
}

// LinesLen is the number of recorded lines, terminator included.
func (d *DataBlocks) LinesLen() int { return len(d.bounds) }

// PayloadLen is the number of payload bytes.
func (d *DataBlocks) PayloadLen() int { return len(d.payload) }

// IsEmpty reports whether no lines were recorded.
func (d *DataBlocks) IsEmpty() bool { return len(d.bounds) == 0 }

func terminatedLines(payload []byte, bounds []LineBounds) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, lb := range bounds {
			if !yield(payload[lb.Start:lb.End]) {
				return
			}
		}
	}
}

func unterminatedLines(payload []byte, bounds []LineBounds) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, lb := range bounds {
			line := bytes.TrimSuffix(payload[lb.Start:lb.End], crlf)
			if IsEndOfDataBlock(line) {
				return
			}
			if !yield(line) {
				return
			}
		}
	}
}

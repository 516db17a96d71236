package nntp

import (
	"bytes"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Article is a decoded 220 response. Body and its line bounds exclude the
// header section; the last line is the "." terminator.
type Article struct {
	Number    int64
	MessageID string
	Headers   Headers

	body   []byte
	bounds []LineBounds
}

func (a *Article) Body() []byte                   { return a.body }
func (a *Article) Lines() iter.Seq[[]byte]        { return terminatedLines(a.body, a.bounds) }
func (a *Article) Unterminated() iter.Seq[[]byte] { return unterminatedLines(a.body, a.bounds) }
func (a *Article) LinesLen() int                  { return len(a.bounds) }

func (a *Article) String() string {
	return fmt.Sprintf("Article(%d headers, %dB body, %d lines)", a.Headers.Len(), len(a.body), len(a.bounds))
}

// ToText converts the body to UTF-8 lines, failing on the first invalid one.
func (a *Article) ToText() (*TextArticle, error) {
	t := a.textHeader()
	n := 0
	for line := range a.Unterminated() {
		n++
		if !utf8.Valid(line) {
			return nil, &Utf8Error{Line: n}
		}
		t.Body = append(t.Body, string(line))
	}
	return t, nil
}

// ToTextLossy converts the body to UTF-8 lines, replacing invalid sequences
// with U+FFFD.
func (a *Article) ToTextLossy() *TextArticle {
	t := a.textHeader()
	for line := range a.Unterminated() {
		t.Body = append(t.Body, strings.ToValidUTF8(string(line), string(utf8.RuneError)))
	}
	return t
}

func (a *Article) textHeader() *TextArticle {
	return &TextArticle{
		Number:    a.Number,
		MessageID: a.MessageID,
		Headers:   a.Headers,
		Body:      make([]string, 0, len(a.bounds)),
	}
}

// TextArticle is an article whose body lines are valid UTF-8.
type TextArticle struct {
	Number    int64
	MessageID string
	Headers   Headers
	Body      []string
}

// Head is a decoded 221 response.
type Head struct {
	Number    int64
	MessageID string
	Headers   Headers
}

// Body is a decoded 222 response.
type Body struct {
	Number    int64
	MessageID string

	payload []byte
	bounds  []LineBounds
}

func (b *Body) Payload() []byte                { return b.payload }
func (b *Body) Lines() iter.Seq[[]byte]        { return terminatedLines(b.payload, b.bounds) }
func (b *Body) Unterminated() iter.Seq[[]byte] { return unterminatedLines(b.payload, b.bounds) }
func (b *Body) LinesLen() int                  { return len(b.bounds) }

// Stat is a decoded 223 response.
type Stat struct {
	Number    int64
	MessageID string
}

func DecodeArticle(resp *RawResponse) (*Article, error) {
	number, id, err := articleStatus(resp, KindArticle)
	if err != nil {
		return nil, err
	}
	db := resp.DataBlocks()
	if db == nil {
		return nil, missingDataBlocks()
	}

	payload := db.Payload()
	headers, off, err := ParseHeaders(payload)
	if err != nil {
		return nil, invalidDataBlocks(err)
	}

	bounds := make([]LineBounds, 0, db.LinesLen())
	for _, lb := range db.Bounds() {
		if lb.Start < off {
			continue
		}
		bounds = append(bounds, LineBounds{Start: lb.Start - off, End: lb.End - off})
	}

	return &Article{
		Number:    number,
		MessageID: id,
		Headers:   headers,
		body:      bytes.Clone(payload[off:]),
		bounds:    bounds,
	}, nil
}

func DecodeHead(resp *RawResponse) (*Head, error) {
	number, id, err := articleStatus(resp, KindHead)
	if err != nil {
		return nil, err
	}
	db := resp.DataBlocks()
	if db == nil || db.IsEmpty() {
		return nil, missingDataBlocks()
	}

	// HEAD carries no blank line; the section ends at the terminator
	bounds := db.Bounds()
	section := db.Payload()[:bounds[len(bounds)-1].Start]
	headers, _, err := parseHeaderSection(section, true)
	if err != nil {
		return nil, invalidDataBlocks(err)
	}

	return &Head{Number: number, MessageID: id, Headers: headers}, nil
}

func DecodeBody(resp *RawResponse) (*Body, error) {
	number, id, err := articleStatus(resp, KindBody)
	if err != nil {
		return nil, err
	}
	db := resp.DataBlocks()
	if db == nil {
		return nil, missingDataBlocks()
	}

	return &Body{
		Number:    number,
		MessageID: id,
		payload:   bytes.Clone(db.Payload()),
		bounds:    slices.Clone(db.Bounds()),
	}, nil
}

func DecodeStat(resp *RawResponse) (*Stat, error) {
	number, id, err := articleStatus(resp, KindArticleExists)
	if err != nil {
		return nil, err
	}
	return &Stat{Number: number, MessageID: id}, nil
}

// articleStatus checks the kind and reads "n message-id" from the status
// line.
func articleStatus(resp *RawResponse, want Kind) (int64, string, error) {
	if !resp.Code.Is(want) {
		return 0, "", wrongKind(resp, want)
	}
	fields := statusFields(resp)
	number, err := int64Field(fields, 0, "article-number")
	if err != nil {
		return 0, "", err
	}
	id, err := stringField(fields, 1, "message-id")
	if err != nil {
		return 0, "", err
	}
	return number, id, nil
}

// statusFields splits the status line text, code excluded, on whitespace.
func statusFields(resp *RawResponse) []string {
	return strings.Fields(strings.ToValidUTF8(string(resp.Text()), string(utf8.RuneError)))
}

func stringField(fields []string, i int, name string) (string, error) {
	if i >= len(fields) {
		return "", missingField(name)
	}
	return fields[i], nil
}

func int64Field(fields []string, i int, name string) (int64, error) {
	s, err := stringField(fields, i, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, parseFieldErr(name)
	}
	return n, nil
}

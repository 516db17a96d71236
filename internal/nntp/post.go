package nntp

// HeaderField is one header line of an outgoing article.
type HeaderField struct {
	Name  string
	Value string
}

// PostInitiate is the first phase of POST. The server must answer 340
// before the PostBody is sent.
type PostInitiate struct{}

func (PostInitiate) Encode() []byte { return []byte("POST") }

// PostBody is the article sent after a 340. Encode renders the headers, a
// blank line, the body and the terminator line; the connection adds the
// final CRLF.
type PostBody struct {
	Headers []HeaderField
	Body    []byte
}

func (p PostBody) Encode() []byte {
	n := len(p.Body) + len(crlf)*2 + len(terminator)
	for _, h := range p.Headers {
		n += len(h.Name) + 2 + len(h.Value) + len(crlf)
	}

	b := make([]byte, 0, n)
	for _, h := range p.Headers {
		b = append(b, h.Name...)
		b = append(b, ':', ' ')
		b = append(b, h.Value...)
		b = append(b, crlf...)
	}
	b = append(b, crlf...)
	b = append(b, p.Body...)
	b = append(b, crlf...)
	return append(b, terminator...)
}

// PostBuilder collects headers and a body. Values are not folded or
// validated; callers supply protocol legal content.
type PostBuilder struct {
	headers []HeaderField
	body    []byte
}

func NewPost() *PostBuilder { return &PostBuilder{} }

// Header adds a header line. Repeated names produce repeated lines.
func (b *PostBuilder) Header(name, value string) *PostBuilder {
	b.headers = append(b.headers, HeaderField{Name: name, Value: value})
	return b
}

// SetHeader replaces every existing value of name.
func (b *PostBuilder) SetHeader(name, value string) *PostBuilder {
	kept := b.headers[:0]
	for _, h := range b.headers {
		if h.Name != name {
			kept = append(kept, h)
		}
	}
	b.headers = append(kept, HeaderField{Name: name, Value: value})
	return b
}

func (b *PostBuilder) Body(body []byte) *PostBuilder {
	b.body = body
	return b
}

// Build returns both phases of the exchange.
func (b *PostBuilder) Build() (PostInitiate, PostBody) {
	headers := make([]HeaderField, len(b.headers))
	copy(headers, b.headers)
	body := make([]byte, len(b.body))
	copy(body, b.body)
	return PostInitiate{}, PostBody{Headers: headers, Body: body}
}

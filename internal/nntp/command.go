package nntp

import (
	"strconv"
	"strings"
)

// Command renders a request to its wire bytes, without the trailing CRLF.
// The connection appends the terminator.
type Command interface {
	Encode() []byte
}

// Selector picks an article by message-id, by number, or the current one.
type Selector struct {
	messageID string
	number    int64
	byNumber  bool
}

// Current selects the current article of the selected group.
var Current = Selector{}

// ByMessageID selects an article by its message-id, angle brackets included.
func ByMessageID(id string) Selector { return Selector{messageID: id} }

// ByNumber selects an article by its number in the selected group.
func ByNumber(n int64) Selector { return Selector{number: n, byNumber: true} }

func (s Selector) appendTo(b []byte) []byte {
	switch {
	case s.messageID != "":
		b = append(b, ' ')
		return append(b, s.messageID...)
	case s.byNumber:
		b = append(b, ' ')
		return strconv.AppendInt(b, s.number, 10)
	default:
		return b
	}
}

// Range is an inclusive article number range. A zero High renders an open
// ended "low-" range.
type Range struct {
	Low, High int64
}

func (r Range) appendTo(b []byte) []byte {
	b = strconv.AppendInt(b, r.Low, 10)
	b = append(b, '-')
	if r.High > 0 {
		b = strconv.AppendInt(b, r.High, 10)
	}
	return b
}

func verb(v string, args ...string) []byte {
	if len(args) == 0 {
		return []byte(v)
	}
	return []byte(v + " " + strings.Join(args, " "))
}

type ArticleCmd struct{ Sel Selector }

func (c ArticleCmd) Encode() []byte { return c.Sel.appendTo([]byte("ARTICLE")) }

type BodyCmd struct{ Sel Selector }

func (c BodyCmd) Encode() []byte { return c.Sel.appendTo([]byte("BODY")) }

type HeadCmd struct{ Sel Selector }

func (c HeadCmd) Encode() []byte { return c.Sel.appendTo([]byte("HEAD")) }

type StatCmd struct{ Sel Selector }

func (c StatCmd) Encode() []byte { return c.Sel.appendTo([]byte("STAT")) }

type GroupCmd struct{ Name string }

func (c GroupCmd) Encode() []byte { return verb("GROUP", c.Name) }

// ListGroupCmd lists article numbers. Its 211 response carries a data block,
// so read it with CommandMultiline(cmd, true).
type ListGroupCmd struct {
	Name  string
	Range *Range
}

func (c ListGroupCmd) Encode() []byte {
	b := []byte("LISTGROUP")
	if c.Name != "" {
		b = append(b, ' ')
		b = append(b, c.Name...)
		if c.Range != nil {
			b = append(b, ' ')
			b = c.Range.appendTo(b)
		}
	}
	return b
}

type CapabilitiesCmd struct{}

func (CapabilitiesCmd) Encode() []byte { return []byte("CAPABILITIES") }

type ModeReaderCmd struct{}

func (ModeReaderCmd) Encode() []byte { return []byte("MODE READER") }

type DateCmd struct{}

func (DateCmd) Encode() []byte { return []byte("DATE") }

type HelpCmd struct{}

func (HelpCmd) Encode() []byte { return []byte("HELP") }

type LastCmd struct{}

func (LastCmd) Encode() []byte { return []byte("LAST") }

type NextCmd struct{}

func (NextCmd) Encode() []byte { return []byte("NEXT") }

type QuitCmd struct{}

func (QuitCmd) Encode() []byte { return []byte("QUIT") }

type IHaveCmd struct{ MessageID string }

func (c IHaveCmd) Encode() []byte { return verb("IHAVE", c.MessageID) }

// ListKeyword is the LIST variant.
type ListKeyword string

const (
	ListActive      ListKeyword = "ACTIVE"
	ListActiveTimes ListKeyword = "ACTIVE.TIMES"
	ListNewsgroups  ListKeyword = "NEWSGROUPS"
	ListDistribPats ListKeyword = "DISTRIB.PATS"
	ListOverviewFmt ListKeyword = "OVERVIEW.FMT"
)

// ListCmd is LIST with an optional keyword and wildmat. The wildmat is
// ignored for keywords that take none.
type ListCmd struct {
	Keyword ListKeyword
	Wildmat string
}

func (c ListCmd) Encode() []byte {
	if c.Keyword == "" {
		return []byte("LIST")
	}
	switch c.Keyword {
	case ListActive, ListActiveTimes, ListNewsgroups:
		if c.Wildmat != "" {
			return verb("LIST", string(c.Keyword), c.Wildmat)
		}
	}
	return verb("LIST", string(c.Keyword))
}

// OverCmd requests overview data for a message-id, a range, or the current
// article when both are empty.
type OverCmd struct {
	MessageID string
	Range     *Range
}

func (c OverCmd) Encode() []byte { return appendTarget([]byte("OVER"), c.MessageID, c.Range) }

type XOverCmd struct{ Range *Range }

func (c XOverCmd) Encode() []byte { return appendTarget([]byte("XOVER"), "", c.Range) }

type HdrCmd struct {
	Field     string
	MessageID string
	Range     *Range
}

func (c HdrCmd) Encode() []byte {
	return appendTarget(verb("HDR", c.Field), c.MessageID, c.Range)
}

type XHdrCmd struct {
	Header    string
	MessageID string
	Range     *Range
}

func (c XHdrCmd) Encode() []byte {
	return appendTarget(verb("XHDR", c.Header), c.MessageID, c.Range)
}

func appendTarget(b []byte, messageID string, r *Range) []byte {
	switch {
	case messageID != "":
		b = append(b, ' ')
		return append(b, messageID...)
	case r != nil:
		b = append(b, ' ')
		return r.appendTo(b)
	default:
		return b
	}
}

type AuthInfoUser struct{ Username string }

func (c AuthInfoUser) Encode() []byte { return verb("AUTHINFO USER", c.Username) }

type AuthInfoPass struct{ Password string }

func (c AuthInfoPass) Encode() []byte { return verb("AUTHINFO PASS", c.Password) }

// XFeatureCompressCmd turns on Giganews style compression. The server
// answers 290 and then marks compressed responses on their status line.
type XFeatureCompressCmd struct{}

func (XFeatureCompressCmd) Encode() []byte { return []byte("XFEATURE COMPRESS GZIP TERMINATOR") }

// RawCmd sends arbitrary bytes, for verbs without a dedicated type.
type RawCmd []byte

func (c RawCmd) Encode() []byte { return []byte(c) }

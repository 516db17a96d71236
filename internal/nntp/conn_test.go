package nntp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/nntp/nntptest"
)

func pipeConn(t *testing.T, cfg ConnConfig, script func(p *nntptest.Peer)) (*Conn, *RawResponse) {
	t.Helper()
	client := nntptest.Pipe(t, script)
	conn, greeting, err := NewConn(NewStreamTransport(client), cfg)
	require.NoError(t, err)
	return conn, greeting
}

func TestGreetingWithoutDataBlocks(t *testing.T) {
	conn, greeting := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
	})

	assert.Equal(t, ResponseCode(200), greeting.Code)
	assert.Equal(t, "200 hello\r\n", string(greeting.StatusLine()))
	assert.False(t, greeting.HasDataBlocks())
	assert.Equal(t, StateIdle, conn.State())
}

func TestCommandGroup(t *testing.T) {
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Reply("GROUP misc.test", "211 5 10 20 misc.test\r\n")
	})

	resp, err := conn.Command(GroupCmd{Name: "misc.test"})
	require.NoError(t, err)
	assert.False(t, resp.HasDataBlocks())

	g, err := DecodeGroup(resp)
	require.NoError(t, err)
	assert.Equal(t, &Group{Number: 5, Low: 10, High: 20, Name: "misc.test"}, g)
}

func TestCommandArticle(t *testing.T) {
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Reply("ARTICLE <id@x>", "220 47661 <id@x>\r\n"+
			"Subject: test\r\n"+
			"\tcontinued\r\n"+
			"\r\n"+
			"hello\r\n"+
			".\r\n")
	})

	resp, err := conn.Command(ArticleCmd{Sel: ByMessageID("<id@x>")})
	require.NoError(t, err)
	require.True(t, resp.HasDataBlocks())

	a, err := DecodeArticle(resp)
	require.NoError(t, err)
	assert.Equal(t, int64(47661), a.Number)
	assert.Equal(t, "<id@x>", a.MessageID)
	assert.Equal(t, 1, a.Headers.Len())
	assert.Equal(t, "test\tcontinued", a.Headers.Get("Subject"))

	text, err := a.ToText()
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, text.Body)
}

func TestCommandCapabilities(t *testing.T) {
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Reply("CAPABILITIES", "101 Capability list:\r\nVERSION 2\r\nREADER\r\n.\r\n")
	})

	resp, err := conn.Command(CapabilitiesCmd{})
	require.NoError(t, err)

	caps, err := DecodeCapabilities(resp)
	require.NoError(t, err)
	assert.Len(t, caps, 2)
	assert.Equal(t, []string{"2"}, caps["VERSION"])
	assert.True(t, caps.Has("READER"))
	assert.Nil(t, caps["READER"])
}

func TestCommandMultilineOverride(t *testing.T) {
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Reply("LISTGROUP misc.test", "211 2 1 2 misc.test\r\n1\r\n2\r\n.\r\n")
		p.Reply("HELP", "100 help\r\n")
	})

	resp, err := conn.CommandMultiline(ListGroupCmd{Name: "misc.test"}, true)
	require.NoError(t, err)
	require.True(t, resp.HasDataBlocks())

	var numbers []string
	for l := range resp.DataBlocks().Unterminated() {
		numbers = append(numbers, string(l))
	}
	assert.Equal(t, []string{"1", "2"}, numbers)

	// a false override skips the section even for a multi-line code
	resp, err = conn.CommandMultiline(HelpCmd{}, false)
	require.NoError(t, err)
	assert.False(t, resp.HasDataBlocks())
}

func TestUnknownCodeIsPreserved(t *testing.T) {
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Reply("XSECRET", "299 vendor thing\r\n")
	})

	resp, err := conn.Command(RawCmd("XSECRET"))
	require.NoError(t, err)
	assert.Equal(t, ResponseCode(299), resp.Code)
	assert.False(t, resp.Code.IsKnown())
}

func TestBufferReuseDoesNotLeak(t *testing.T) {
	big := strings.Repeat("x", 40*1024)
	conn, _ := pipeConn(t, ConnConfig{StatusBufSize: 16, DataBufSize: 64}, func(p *nntptest.Peer) {
		p.Write("200 hello there, this greeting is longer than sixteen bytes\r\n")
		p.Reply("BODY 1", "222 1 <big@x>\r\n"+big+"\r\n.\r\n")
		p.Reply("BODY 2", "222 2 <small@x>\r\nab\r\n.\r\n")
		p.Reply("STAT 3", "223 3 <s@x>\r\n")
		p.Reply("HELP", "100 help\r\n.\r\n")
	})

	first, err := conn.Command(BodyCmd{Sel: ByNumber(1)})
	require.NoError(t, err)
	firstPayload := bytes.Clone(first.DataBlocks().Payload())

	second, err := conn.Command(BodyCmd{Sel: ByNumber(2)})
	require.NoError(t, err)
	assert.Equal(t, "ab\r\n.\r\n", string(second.DataBlocks().Payload()))
	assert.Equal(t, "222 2 <small@x>\r\n", string(second.StatusLine()))

	third, err := conn.Command(StatCmd{Sel: ByNumber(3)})
	require.NoError(t, err)
	assert.Equal(t, "223 3 <s@x>\r\n", string(third.StatusLine()))
	assert.False(t, third.HasDataBlocks())

	fourth, err := conn.Command(HelpCmd{})
	require.NoError(t, err)
	assert.Equal(t, ".\r\n", string(fourth.DataBlocks().Payload()))
	assert.Equal(t, 1, fourth.DataBlocks().LinesLen())

	// earlier responses own their bytes
	assert.Equal(t, firstPayload, first.DataBlocks().Payload())

	assert.LessOrEqual(t, cap(conn.dataBuf), 64)
	assert.LessOrEqual(t, cap(conn.statusBuf), 16)
}

func TestCompressedResponse(t *testing.T) {
	cfg := ConnConfig{Compression: CompressionXFeature}
	conn, _ := pipeConn(t, cfg, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		if p.Expect("XOVER 1-2") {
			p.Write("224 overview follows [COMPRESS=GZIP]\r\n")
			p.WriteBytes(nntptest.Deflate(t, overviewPayload))
		}
		p.Reply("DATE", "111 20240101000000\r\n")
	})

	resp, err := conn.Command(XOverCmd{Range: &Range{Low: 1, High: 2}})
	require.NoError(t, err)
	assert.Equal(t, overviewPayload, string(resp.DataBlocks().Payload()))

	ovs, err := DecodeOverview(resp)
	require.NoError(t, err)
	require.Len(t, ovs, 2)
	assert.Equal(t, "<b@x>", ovs[1].MessageID)

	next, err := conn.Command(DateCmd{})
	require.NoError(t, err)
	assert.Equal(t, ResponseCode(111), next.Code)
}

func TestMalformedStatusLine(t *testing.T) {
	client := nntptest.Pipe(t, func(p *nntptest.Peer) {
		p.Write("hello\r\n")
	})
	_, _, err := NewConn(NewStreamTransport(client), ConnConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestMalformedDataBlockLine(t *testing.T) {
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Reply("BODY", "222 0 <x@y>\r\nbare newline\n.\r\n")
	})

	_, err := conn.Command(BodyCmd{})
	assert.ErrorIs(t, err, ErrParse)
}

func TestConnectionDropped(t *testing.T) {
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Expect("BODY")
		p.Write("222 0 <x@y>\r\npartial\r\n")
	})

	_, err := conn.Command(BodyCmd{})
	var ce *ConnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrKindIO, ce.Kind)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadTimeout(t *testing.T) {
	release := make(chan struct{})
	client := nntptest.Pipe(t, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Expect("DATE")
		<-release
	})
	defer close(release)

	conn, _, err := NewConn(NewStreamTransport(client), ConnConfig{ReadTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = conn.Command(DateCmd{})
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestSendBytes(t *testing.T) {
	got := make(chan string, 1)
	conn, _ := pipeConn(t, ConnConfig{}, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		got <- p.ReadLine()
		p.Write("211 3 1 3 misc.test\r\n1\r\n2\r\n3\r\n.\r\n")
	})

	n, err := conn.SendBytes([]byte("LISTGROUP misc.test"))
	require.NoError(t, err)
	assert.Equal(t, len("LISTGROUP misc.test\r\n"), n)
	assert.Equal(t, StateAwaitingResponse, conn.State())
	assert.Equal(t, "LISTGROUP misc.test", <-got)

	multiline := true
	resp, err := conn.ReadResponse(&multiline)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.DataBlocks().LinesLen())
	assert.Equal(t, StateIdle, conn.State())
}

func TestDebugLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := ConnConfig{Logger: logger.NewWithCore(core)}
	conn, _ := pipeConn(t, cfg, func(p *nntptest.Peer) {
		p.Write("200 hello\r\n")
		p.Reply("HELP", "100 help\r\nline\r\n.\r\n")
	})

	_, err := conn.Command(HelpCmd{})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("read 2 data block lines (9 bytes)").Len())
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, _, err = Connect(context.Background(), addr, ConnConfig{DialTimeout: time.Second})
	var ce *ConnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrKindIO, ce.Kind)
}

func TestConnectOverTCP(t *testing.T) {
	addr := nntptest.Listen(t, func(p *nntptest.Peer) {
		p.Write("201 read only\r\n")
		p.Reply("QUIT", "205 bye\r\n")
	})

	conn, greeting, err := Connect(context.Background(), addr, ConnConfig{})
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, greeting.Code.Is(KindPostingProhibited))

	resp, err := conn.Command(QuitCmd{})
	require.NoError(t, err)
	assert.NoError(t, resp.FailUnlessKind(KindConnectionClosing))
}

func TestTLSHandshakeFailure(t *testing.T) {
	addr := nntptest.Listen(t, func(p *nntptest.Peer) {
		p.Write("200 plaintext server\r\n")
	})

	_, _, err := Connect(context.Background(), addr, ConnConfig{
		TLS:         &TLSConfig{ServerName: "news.example.com"},
		DialTimeout: time.Second,
	})
	var ce *ConnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrKindTLSHandshake, ce.Kind)
	assert.False(t, errors.Is(err, ErrParse))
}

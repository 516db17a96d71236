// Package nntptest provides scripted fake NNTP peers for tests.
package nntptest

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
)

// Peer is the server end of a scripted exchange. Its methods run on the
// script goroutine and report failures with assert, never FailNow.
type Peer struct {
	t    testing.TB
	conn net.Conn
	r    *bufio.Reader
}

// Write sends raw bytes to the client.
func (p *Peer) Write(s string) {
	p.WriteBytes([]byte(s))
}

func (p *Peer) WriteBytes(b []byte) {
	if _, err := p.conn.Write(b); err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, net.ErrClosed) {
		p.t.Errorf("nntptest: write: %v", err)
	}
}

// ReadLine returns the next client line without its CRLF, or "" once the
// client has gone away.
func (p *Peer) ReadLine() string {
	line, err := p.r.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(line, "\r\n")
}

// Expect reads one client line and checks it.
func (p *Peer) Expect(want string) bool {
	return assert.Equal(p.t, want, p.ReadLine(), "client sent unexpected line")
}

// ExpectUntilDot reads lines up to and including a lone "." and returns them
// joined with CRLF.
func (p *Peer) ExpectUntilDot() string {
	var lines []string
	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			return strings.Join(lines, "")
		}
		lines = append(lines, line)
		if line == ".\r\n" {
			return strings.Join(lines, "")
		}
	}
}

// Reply expects cmd and answers with resp.
func (p *Peer) Reply(cmd, resp string) {
	if p.Expect(cmd) {
		p.Write(resp)
	}
}

// Pipe runs script against the server end of an in-memory connection and
// returns the client end. Cleanup closes both ends and waits for the script.
func Pipe(t testing.TB, script func(p *Peer)) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer server.Close()
		script(&Peer{t: t, conn: server, r: bufio.NewReader(server)})
	}()
	t.Cleanup(func() {
		client.Close()
		<-done
	})
	return client
}

// Listen serves script on a loopback TCP listener, once per accepted
// connection, and returns the listener address.
func Listen(t testing.TB, script func(p *Peer)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("nntptest: listen: %v", err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns []net.Conn
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				script(&Peer{t: t, conn: conn, r: bufio.NewReader(conn)})
			}()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
		wg.Wait()
	})
	return ln.Addr().String()
}

// Deflate zlib compresses s the way an XFEATURE COMPRESS GZIP server does.
func Deflate(t testing.TB, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("nntptest: deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nntptest: deflate: %v", err)
	}
	return buf.Bytes()
}

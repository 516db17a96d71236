package nntp

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"
)

// TransportKind names the two transport variants.
type TransportKind int

const (
	TransportPlain TransportKind = iota
	TransportTLS
)

func (k TransportKind) String() string {
	if k == TransportTLS {
		return "tls"
	}
	return "plain"
}

// Transport is the duplex byte stream under a Conn.
type Transport interface {
	io.Reader
	io.Writer
	Flush() error
	Close() error
	Kind() TransportKind
	SetTimeouts(read, write time.Duration)
}

// TLSConfig enables TLS. ServerName is used for certificate validation and
// defaults to the host part of the dialed address.
type TLSConfig struct {
	ServerName string
	// Base is cloned when set, so callers can supply roots or client certs.
	Base *tls.Config
}

func (c *TLSConfig) clientConfig(addr string) (*tls.Config, error) {
	var tc *tls.Config
	if c.Base != nil {
		tc = c.Base.Clone()
	} else {
		tc = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if c.ServerName != "" {
		tc.ServerName = c.ServerName
	}
	if tc.ServerName == "" && !tc.InsecureSkipVerify {
		host, _, err := net.SplitHostPort(addr)
		if err != nil || host == "" {
			return nil, errors.New("no server name for certificate validation")
		}
		tc.ServerName = host
	}
	return tc, nil
}

type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// streamTransport backs both variants; kind records which one it is.
type streamTransport struct {
	kind         TransportKind
	conn         io.ReadWriteCloser
	w            *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewStreamTransport wraps any byte stream as a plain transport.
func NewStreamTransport(rwc io.ReadWriteCloser) Transport {
	return newStreamTransport(TransportPlain, rwc)
}

func newStreamTransport(kind TransportKind, rwc io.ReadWriteCloser) *streamTransport {
	return &streamTransport{kind: kind, conn: rwc, w: bufio.NewWriter(rwc)}
}

func (t *streamTransport) Kind() TransportKind { return t.kind }

func (t *streamTransport) SetTimeouts(read, write time.Duration) {
	t.readTimeout = read
	t.writeTimeout = write
}

func (t *streamTransport) Read(p []byte) (int, error) {
	if d, ok := t.conn.(deadliner); ok && t.readTimeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return 0, err
		}
	}
	return t.conn.Read(p)
}

func (t *streamTransport) Write(p []byte) (int, error) {
	return t.w.Write(p)
}

func (t *streamTransport) Flush() error {
	if d, ok := t.conn.(deadliner); ok && t.writeTimeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.w.Flush()
}

func (t *streamTransport) Close() error {
	return t.conn.Close()
}

func dialTransport(ctx context.Context, addr string, cfg ConnConfig) (Transport, error) {
	d := net.Dialer{Timeout: cfg.DialTimeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ioErr("dial", err)
	}

	if cfg.TLS == nil {
		return newStreamTransport(TransportPlain, raw), nil
	}

	tc, err := cfg.TLS.clientConfig(addr)
	if err != nil {
		raw.Close()
		return nil, &ConnError{Kind: ErrKindTLS, Op: "tls config", Err: err}
	}

	conn := tls.Client(raw, tc)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, &ConnError{Kind: ErrKindTLSHandshake, Op: "handshake " + tc.ServerName, Err: err}
	}
	return newStreamTransport(TransportTLS, conn), nil
}

package nntp

import (
	"bufio"
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/datallboy/gonntp/internal/infra/logger"
)

const (
	DefaultStatusBufSize = 128
	DefaultDataBufSize   = 16 * 1024
)

// ConnConfig configures a single connection.
type ConnConfig struct {
	// TLS is nil for plaintext connections.
	TLS         *TLSConfig
	Compression Compression

	// A read that exceeds ReadTimeout fails with an ErrKindIO error.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration

	// Baseline capacities. Buffers that grow past these during a large
	// response are shrunk back afterwards.
	StatusBufSize int
	DataBufSize   int

	Logger *logger.Logger
}

func (c ConnConfig) withDefaults() ConnConfig {
	if c.StatusBufSize <= 0 {
		c.StatusBufSize = DefaultStatusBufSize
	}
	if c.DataBufSize <= 0 {
		c.DataBufSize = DefaultDataBufSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
	return c
}

// State is where a Conn is in its request/response cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	if s == StateAwaitingResponse {
		return "awaiting response"
	}
	return "idle"
}

// Conn frames NNTP requests and responses over a Transport.
//
// A Conn is not safe for concurrent use. The protocol allows one outstanding
// request per connection and Conn does not serialize callers; sharing one
// between goroutines yields undefined framing.
type Conn struct {
	t   Transport
	r   *bufio.Reader
	cfg ConnConfig
	log *logger.Logger

	statusBuf []byte
	dataBuf   []byte
	bounds    []LineBounds
	state     State
}

// Connect dials addr, performs the TLS handshake when configured and reads
// the server greeting.
func Connect(ctx context.Context, addr string, cfg ConnConfig) (*Conn, *RawResponse, error) {
	cfg = cfg.withDefaults()
	t, err := dialTransport(ctx, addr, cfg)
	if err != nil {
		return nil, nil, err
	}
	cfg.Logger.Debug("connected to %s over %s", addr, t.Kind())
	return NewConn(t, cfg)
}

// NewConn wraps an established transport and reads the greeting. The
// transport is closed if the greeting cannot be read.
func NewConn(t Transport, cfg ConnConfig) (*Conn, *RawResponse, error) {
	cfg = cfg.withDefaults()
	t.SetTimeouts(cfg.ReadTimeout, cfg.WriteTimeout)

	c := &Conn{
		t:         t,
		r:         bufio.NewReaderSize(t, cfg.DataBufSize),
		cfg:       cfg,
		log:       cfg.Logger,
		statusBuf: make([]byte, 0, cfg.StatusBufSize),
		dataBuf:   make([]byte, 0, cfg.DataBufSize),
	}

	greeting, err := c.ReadResponseAuto()
	if err != nil {
		t.Close()
		return nil, nil, err
	}
	return c, greeting, nil
}

// Config returns the effective configuration.
func (c *Conn) Config() ConnConfig { return c.cfg }

// State reports whether a response is outstanding.
func (c *Conn) State() State { return c.state }

// Send writes cmd and flushes. The caller must read the response.
func (c *Conn) Send(cmd Command) (int, error) {
	return c.SendBytes(cmd.Encode())
}

// SendBytes writes b followed by CRLF and flushes. b must not carry its own
// terminator. It is the escape hatch for verbs without a Command type.
func (c *Conn) SendBytes(b []byte) (int, error) {
	n, err := c.t.Write(b)
	if err != nil {
		return n, ioErr("write", err)
	}
	m, err := c.t.Write(crlf)
	n += m
	if err != nil {
		return n, ioErr("write", err)
	}
	if err := c.t.Flush(); err != nil {
		return n, ioErr("flush", err)
	}
	c.state = StateAwaitingResponse
	return n, nil
}

// Command sends cmd and reads the response, deciding from the response code
// whether a data block section follows.
func (c *Conn) Command(cmd Command) (*RawResponse, error) {
	if _, err := c.Send(cmd); err != nil {
		return nil, err
	}
	return c.ReadResponseAuto()
}

// CommandMultiline sends cmd and reads the response, overriding the code
// table's multi-line decision. Use it for verbs the table does not know.
func (c *Conn) CommandMultiline(cmd Command, multiline bool) (*RawResponse, error) {
	if _, err := c.Send(cmd); err != nil {
		return nil, err
	}
	return c.ReadResponse(&multiline)
}

// ReadResponseAuto reads one response using the code table.
func (c *Conn) ReadResponseAuto() (*RawResponse, error) {
	return c.ReadResponse(nil)
}

// ReadResponse reads one response. When multiline is non-nil it decides
// whether a data block section is read, regardless of the code.
func (c *Conn) ReadResponse(multiline *bool) (*RawResponse, error) {
	c.statusBuf = c.statusBuf[:0]
	c.dataBuf = c.dataBuf[:0]
	c.bounds = c.bounds[:0]

	status := lineSource{r: c.r}
	var err error
	if c.statusBuf, _, err = status.appendLine(c.statusBuf); err != nil {
		return nil, ioErr("read status line", err)
	}

	sl, err := ParseStatusLine(c.statusBuf)
	if err != nil {
		return nil, err
	}
	code := ResponseCode(sl.Value())

	isMultiline := code.IsMultiline()
	if multiline != nil {
		isMultiline = *multiline
	}

	var db *DataBlocks
	if isMultiline {
		if db, err = c.readDataBlocks(); err != nil {
			return nil, err
		}
	}

	resp := &RawResponse{
		Code:       code,
		statusLine: bytes.Clone(c.statusBuf),
		dataBlocks: db,
	}

	c.shrink()
	c.state = StateIdle
	return resp, nil
}

func (c *Conn) readDataBlocks() (*DataBlocks, error) {
	src, err := c.cfg.Compression.source(c.r, c.statusBuf)
	if err != nil {
		return nil, ioErr("read data block", err)
	}
	if src.compressed() {
		c.log.Debug("inflating data block for %s", bytes.TrimSpace(c.statusBuf))
	}

	for {
		start := len(c.dataBuf)
		if c.dataBuf, _, err = src.appendLine(c.dataBuf); err != nil {
			return nil, ioErr("read data block", err)
		}

		line, err := ParseDataBlockLine(c.dataBuf[start:])
		if err != nil {
			return nil, err
		}
		c.bounds = append(c.bounds, LineBounds{Start: start, End: len(c.dataBuf)})

		if IsEndOfDataBlock(line) {
			break
		}
	}

	if err := src.finish(); err != nil {
		return nil, ioErr("finish compressed block", err)
	}

	c.log.Debug("read %d data block lines (%d bytes)", len(c.bounds), len(c.dataBuf))
	return NewDataBlocks(bytes.Clone(c.dataBuf), slices.Clone(c.bounds)), nil
}

// shrink drops buffers that grew past their baseline so one huge response
// does not pin memory for the life of the connection.
func (c *Conn) shrink() {
	if cap(c.statusBuf) > c.cfg.StatusBufSize {
		c.statusBuf = make([]byte, 0, c.cfg.StatusBufSize)
	}
	if cap(c.dataBuf) > c.cfg.DataBufSize {
		c.dataBuf = make([]byte, 0, c.cfg.DataBufSize)
	}
	if cap(c.bounds) > 1024 {
		c.bounds = nil
	}
}

// Close closes the transport without any protocol exchange. Send QuitCmd
// first for an orderly shutdown.
func (c *Conn) Close() error {
	return c.t.Close()
}

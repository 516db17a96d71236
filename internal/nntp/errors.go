package nntp

import (
	"errors"
	"fmt"
)

// ErrParse indicates the peer sent bytes that violate the wire grammar.
// It is always fatal to the current operation.
var ErrParse = errors.New("failed to parse response")

// ErrKind classifies low level connection failures.
type ErrKind int

const (
	ErrKindIO ErrKind = iota
	ErrKindTLS
	ErrKindTLSHandshake
	ErrKindParse
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindIO:
		return "io"
	case ErrKindTLS:
		return "tls"
	case ErrKindTLSHandshake:
		return "tls handshake"
	case ErrKindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// ConnError is returned by the connection engine for transport and framing
// faults. The engine never retries; callers decide what to do.
type ConnError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *ConnError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("nntp %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("nntp %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

func ioErr(op string, err error) error {
	return &ConnError{Kind: ErrKindIO, Op: op, Err: err}
}

func parseErr(op string, format string, args ...any) error {
	return &ConnError{
		Kind: ErrKindParse,
		Op:   op,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrParse}, args...)...),
	}
}

// FailureError is a well formed response the caller did not expect, such as
// 430 for an ARTICLE request.
type FailureError struct {
	Code     ResponseCode
	Response *RawResponse
	Msg      string
}

func (e *FailureError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("server returned %s: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("server returned %s", e.Code)
}

// NewFailure wraps an unexpected response.
func NewFailure(resp *RawResponse, msg string) *FailureError {
	return &FailureError{Code: resp.Code, Response: resp, Msg: msg}
}

// DeserializationError is returned when a typed decoder cannot build its
// record from a raw response.
type DeserializationError struct {
	Msg string
}

func (e *DeserializationError) Error() string { return e.Msg }

func deErr(format string, args ...any) error {
	return &DeserializationError{Msg: fmt.Sprintf(format, args...)}
}

func missingField(name string) error {
	return deErr("missing field `%s`", name)
}

func parseFieldErr(name string) error {
	return deErr("could not parse field `%s`", name)
}

func missingDataBlocks() error {
	return deErr("response is missing multi-line data blocks")
}

func invalidDataBlocks(reason error) error {
	return deErr("invalid data-block section -- %v", reason)
}

func wrongKind(resp *RawResponse, want Kind) error {
	return deErr("invalid response code %s, expected %d", resp.Code, want.Code())
}

// Utf8Error reports the first body line that is not valid UTF-8.
type Utf8Error struct {
	Line int
}

func (e *Utf8Error) Error() string {
	return fmt.Sprintf("line %d is not valid utf-8", e.Line)
}

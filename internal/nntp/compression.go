package nntp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Compression selects how data block sections may be encoded by the server.
type Compression int

const (
	CompressionNone Compression = iota
	// CompressionXFeature is Giganews style XFEATURE COMPRESS GZIP: a zlib
	// stream announced by a marker at the end of the status line.
	CompressionXFeature
)

var xfeatureMarker = []byte("[COMPRESS=GZIP]\r\n")

// ParseCompression maps a config value to a mode.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return CompressionNone, nil
	case "xfeature", "gzip":
		return CompressionXFeature, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression mode %q", s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionXFeature:
		return "xfeature"
	default:
		return "none"
	}
}

// Triggered reports whether the data block following statusLine is
// compressed under this mode.
func (c Compression) Triggered(statusLine []byte) bool {
	switch c {
	case CompressionXFeature:
		return bytes.HasSuffix(statusLine, xfeatureMarker)
	default:
		return false
	}
}

// lineSource is the read contract the engine uses for data blocks, whether
// or not the bytes are being inflated.
type lineSource struct {
	r  *bufio.Reader
	zr io.ReadCloser
}

// source returns a lineSource for one data block section. src is the
// transport's buffered reader.
func (c Compression) source(src *bufio.Reader, statusLine []byte) (*lineSource, error) {
	if !c.Triggered(statusLine) {
		return &lineSource{r: src}, nil
	}
	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	return &lineSource{r: bufio.NewReader(zr), zr: zr}, nil
}

func (s *lineSource) compressed() bool { return s.zr != nil }

// appendLine appends the next '\n' terminated line to dst and returns the
// grown slice and the number of bytes appended.
func (s *lineSource) appendLine(dst []byte) ([]byte, int, error) {
	n := 0
	for {
		frag, err := s.r.ReadSlice('\n')
		dst = append(dst, frag...)
		n += len(frag)
		if err == nil {
			return dst, n, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return dst, n, err
		}
	}
}

// finish consumes whatever is left of a compressed stream so the zlib
// trailer is verified and not mistaken for the next response.
func (s *lineSource) finish() error {
	if s.zr == nil {
		return nil
	}
	if _, err := io.Copy(io.Discard, s.r); err != nil {
		return err
	}
	return s.zr.Close()
}

package decoding

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"iter"
	"strconv"
	"strings"
)

var (
	ErrHeaderNotFound = errors.New("yenc header not found")
	ErrFooterNotFound = errors.New("yenc footer not found")
)

// Part is one decoded yEnc part. Single part posts have Number 0.
type Part struct {
	Name    string
	Size    int64 // size of the whole file
	LineLen int
	Number  int
	Total   int
	Begin   int64
	End     int64
	Data    []byte

	expectedCRC uint32
	hasCRC      bool
	footerSize  int64
}

// IsMultipart reports whether the post carried a =ypart line.
func (p *Part) IsMultipart() bool { return p.Number > 0 }

// Verify checks the decoded data against the sizes and checksum announced
// by the footer.
func (p *Part) Verify() error {
	if p.footerSize > 0 && int64(len(p.Data)) != p.footerSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", p.footerSize, len(p.Data))
	}
	if p.End > 0 && int64(len(p.Data)) != p.End-p.Begin+1 {
		return fmt.Errorf("part range %d-%d does not match %d decoded bytes", p.Begin, p.End, len(p.Data))
	}
	if !p.hasCRC {
		return nil
	}
	if actual := crc32.ChecksumIEEE(p.Data); actual != p.expectedCRC {
		return fmt.Errorf("checksum mismatch: expected %08X, got %08X", p.expectedCRC, actual)
	}
	return nil
}

type yencState int

const (
	seekingHeader yencState = iota
	afterHeader
	inData
	done
)

var (
	yBegin = []byte("=ybegin ")
	yPart  = []byte("=ypart ")
	yEnd   = []byte("=yend")
)

// Decode reads a yEnc body from article lines without their CRLF. Lines
// are expected as they come off the wire, so a leading ".." is unstuffed.
// Anything before =ybegin is skipped.
func Decode(lines iter.Seq[[]byte]) (*Part, error) {
	p := &Part{}
	state := seekingHeader

	for line := range lines {
		if bytes.HasPrefix(line, []byte("..")) {
			line = line[1:]
		}

		switch state {
		case seekingHeader:
			if bytes.HasPrefix(line, yBegin) {
				if err := p.parseBegin(string(line[len(yBegin):])); err != nil {
					return nil, err
				}
				state = afterHeader
			}
			continue
		case afterHeader:
			state = inData
			if bytes.HasPrefix(line, yPart) {
				if err := p.parsePart(string(line[len(yPart):])); err != nil {
					return nil, err
				}
				continue
			}
		}

		if bytes.HasPrefix(line, yEnd) {
			if err := p.parseEnd(string(line[len(yEnd):])); err != nil {
				return nil, err
			}
			state = done
			break
		}
		p.Data = decodeLine(p.Data, line)
	}

	switch state {
	case seekingHeader:
		return nil, ErrHeaderNotFound
	case done:
		return p, nil
	default:
		return nil, ErrFooterNotFound
	}
}

func decodeLine(dst, line []byte) []byte {
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '=' && i+1 < len(line) {
			i++
			c = line[i] - 64
		}
		dst = append(dst, c-42)
	}
	return dst
}

// keywords splits "k=v k=v name=rest of line". name always comes last and
// may contain spaces.
func keywords(s string) map[string]string {
	kv := make(map[string]string)
	if i := strings.Index(s, "name="); i >= 0 {
		kv["name"] = strings.TrimRight(s[i+len("name="):], " \t")
		s = s[:i]
	}
	for _, f := range strings.Fields(s) {
		k, v, ok := strings.Cut(f, "=")
		if ok {
			kv[k] = v
		}
	}
	return kv
}

func (p *Part) parseBegin(s string) error {
	kv := keywords(s)
	p.Name = kv["name"]

	var err error
	if p.Size, err = intKey(kv, "size", true); err != nil {
		return err
	}
	lineLen, err := intKey(kv, "line", false)
	if err != nil {
		return err
	}
	p.LineLen = int(lineLen)
	part, err := intKey(kv, "part", false)
	if err != nil {
		return err
	}
	p.Number = int(part)
	total, err := intKey(kv, "total", false)
	if err != nil {
		return err
	}
	p.Total = int(total)
	return nil
}

func (p *Part) parsePart(s string) error {
	kv := keywords(s)
	var err error
	if p.Begin, err = intKey(kv, "begin", true); err != nil {
		return err
	}
	p.End, err = intKey(kv, "end", true)
	return err
}

func (p *Part) parseEnd(s string) error {
	kv := keywords(s)
	var err error
	if p.footerSize, err = intKey(kv, "size", false); err != nil {
		return err
	}

	// Typical footer: =yend size=12345 part=1 pcrc32=ABC12345
	crc, ok := kv["pcrc32"]
	if !ok {
		crc, ok = kv["crc32"]
	}
	if ok {
		v, err := strconv.ParseUint(crc, 16, 32)
		if err != nil {
			return fmt.Errorf("yenc footer: bad crc32 %q", crc)
		}
		p.expectedCRC = uint32(v)
		p.hasCRC = true
	}
	return nil
}

func intKey(kv map[string]string, key string, required bool) (int64, error) {
	v, ok := kv[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("yenc: missing %s", key)
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("yenc: bad %s %q", key, v)
	}
	return n, nil
}

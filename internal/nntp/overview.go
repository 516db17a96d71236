package nntp

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Overview is one line of an OVER or XOVER response.
type Overview struct {
	Number     int64
	Subject    string
	From       string
	Date       string
	MessageID  string
	References string
	Bytes      int64
	Lines      int64
	// Extra holds any fields past the eight standard ones, e.g. Xref.
	Extra []string
}

const overviewFields = 8

// DecodeOverview decodes a 224 response.
func DecodeOverview(resp *RawResponse) ([]Overview, error) {
	if !resp.Code.Is(KindOverviewFollows) {
		return nil, wrongKind(resp, KindOverviewFollows)
	}
	db := resp.DataBlocks()
	if db == nil {
		return nil, missingDataBlocks()
	}

	out := make([]Overview, 0, db.LinesLen())
	n := 0
	for line := range db.Unterminated() {
		n++
		ov, err := parseOverviewLine(line)
		if err != nil {
			return nil, deErr("overview line %d: %v", n, err)
		}
		out = append(out, ov)
	}
	return out, nil
}

func parseOverviewLine(line []byte) (Overview, error) {
	raw := bytes.Split(line, []byte{'\t'})
	if len(raw) < overviewFields {
		return Overview{}, missingField(overviewNames[len(raw)])
	}
	f := make([]string, len(raw))
	for i, b := range raw {
		f[i] = strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}

	number, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return Overview{}, parseFieldErr("number")
	}
	size, err := optionalInt(f[6], "bytes")
	if err != nil {
		return Overview{}, err
	}
	lines, err := optionalInt(f[7], "lines")
	if err != nil {
		return Overview{}, err
	}

	ov := Overview{
		Number:     number,
		Subject:    f[1],
		From:       f[2],
		Date:       f[3],
		MessageID:  f[4],
		References: f[5],
		Bytes:      size,
		Lines:      lines,
	}
	if len(f) > overviewFields {
		ov.Extra = f[overviewFields:]
	}
	return ov, nil
}

var overviewNames = [overviewFields]string{
	"number", "subject", "from", "date", "message-id", "references", "bytes", "lines",
}

// Some servers leave the metadata fields empty.
func optionalInt(s, name string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, parseFieldErr(name)
	}
	return n, nil
}

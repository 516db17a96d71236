package nzb

import (
	"encoding/xml"
	"errors"
	"io"
	"slices"
	"strings"
)

var ErrNoFiles = errors.New("nzb contains no files")

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes an NZB document. Segments are sorted by number and message
// ids trimmed.
func (p *Parser) Parse(r io.Reader) (*Model, error) {
	var m Model
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&m); err != nil {
		return nil, err
	}
	if len(m.Files) == 0 {
		return nil, ErrNoFiles
	}

	for i := range m.Files {
		segs := m.Files[i].Segments
		for j := range segs {
			segs[j].MessageID = strings.TrimSpace(segs[j].MessageID)
		}
		slices.SortStableFunc(segs, func(a, b Segment) int { return a.Number - b.Number })
	}
	return &m, nil
}

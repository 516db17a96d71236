package nntp

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// Group is a decoded 211 response to GROUP.
type Group struct {
	Number int64
	Low    int64
	High   int64
	Name   string
}

func DecodeGroup(resp *RawResponse) (*Group, error) {
	if !resp.Code.Is(KindGroupSelected) {
		return nil, wrongKind(resp, KindGroupSelected)
	}
	fields := statusFields(resp)

	var (
		g   Group
		err error
	)
	if g.Number, err = int64Field(fields, 0, "number"); err != nil {
		return nil, err
	}
	if g.Low, err = int64Field(fields, 1, "low"); err != nil {
		return nil, err
	}
	if g.High, err = int64Field(fields, 2, "high"); err != nil {
		return nil, err
	}
	if g.Name, err = stringField(fields, 3, "name"); err != nil {
		return nil, err
	}
	return &g, nil
}

// Capabilities maps a capability label to its arguments. Labels without
// arguments map to nil.
type Capabilities map[string][]string

// Has reports whether label was advertised.
func (c Capabilities) Has(label string) bool {
	_, ok := c[label]
	return ok
}

// Labels returns the advertised labels, sorted.
func (c Capabilities) Labels() []string {
	return slices.Sorted(maps.Keys(c))
}

// DecodeCapabilities decodes a 101 response. A repeated label replaces the
// earlier entry.
func DecodeCapabilities(resp *RawResponse) (Capabilities, error) {
	if !resp.Code.Is(KindCapabilities) {
		return nil, wrongKind(resp, KindCapabilities)
	}
	db := resp.DataBlocks()
	if db == nil {
		return nil, missingDataBlocks()
	}

	caps := make(Capabilities)
	for line := range db.Unterminated() {
		fields := strings.Fields(strings.ToValidUTF8(string(line), string(utf8.RuneError)))
		if len(fields) == 0 {
			return nil, deErr("capability entry does not have a label")
		}
		var args []string
		if len(fields) > 1 {
			args = fields[1:]
		}
		caps[fields[0]] = args
	}
	return caps, nil
}

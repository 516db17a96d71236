package nzb

import (
	"encoding/xml"
	"strings"
)

// Model is a parsed NZB index: a list of files, each posted as numbered
// article segments.
type Model struct {
	XMLName xml.Name `xml:"nzb"`
	Meta    []Meta   `xml:"head>meta"`
	Files   []File   `xml:"file"`
}

type Meta struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type File struct {
	Subject  string    `xml:"subject,attr"`
	Poster   string    `xml:"poster,attr"`
	Groups   []string  `xml:"groups>group"`
	Segments []Segment `xml:"segments>segment"`
}

type Segment struct {
	XMLName   xml.Name `xml:"segment"`
	Number    int      `xml:"number,attr"`
	Bytes     int64    `xml:"bytes,attr"`
	MessageID string   `xml:",chardata"`
}

// MessageIDs returns the segment message-ids in segment order.
func (f *File) MessageIDs() []string {
	ids := make([]string, len(f.Segments))
	for i, s := range f.Segments {
		ids[i] = s.MessageID
	}
	return ids
}

// Size is the sum of the encoded segment sizes.
func (f *File) Size() int64 {
	var total int64
	for _, s := range f.Segments {
		total += s.Bytes
	}
	return total
}

// FileName extracts the quoted name from a subject like
// `[1/3] - "movie.mkv" yEnc (1/50)`, or returns "".
func (f *File) FileName() string {
	_, rest, ok := strings.Cut(f.Subject, `"`)
	if !ok {
		return ""
	}
	name, _, ok := strings.Cut(rest, `"`)
	if !ok {
		return ""
	}
	return name
}

// Password returns the password meta entry, if any.
func (m *Model) Password() string {
	for _, meta := range m.Meta {
		if meta.Type == "password" {
			return strings.TrimSpace(meta.Value)
		}
	}
	return ""
}

package controllers

import (
	"encoding/xml"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/nntp"
)

// --- JSON ---

type CapabilitiesResponse struct {
	Provider       string              `json:"provider"`
	PostingAllowed bool                `json:"posting_allowed"`
	Greeting       string              `json:"greeting"`
	Capabilities   map[string][]string `json:"capabilities"`
}

type GroupResponse struct {
	Name     string `json:"name"`
	Count    int64  `json:"count"`
	Low      int64  `json:"low"`
	High     int64  `json:"high"`
	Provider string `json:"provider"`
}

type ArticleResponse struct {
	Number    int64               `json:"number"`
	MessageID string              `json:"message_id"`
	Headers   map[string][]string `json:"headers"`
	Body      []string            `json:"body,omitempty"`
}

type OverviewResponse struct {
	Number     int64    `json:"number"`
	Subject    string   `json:"subject"`
	From       string   `json:"from"`
	Date       string   `json:"date"`
	MessageID  string   `json:"message_id"`
	References string   `json:"references,omitempty"`
	Bytes      int64    `json:"bytes"`
	Lines      int64    `json:"lines"`
	Extra      []string `json:"extra,omitempty"`
}

func newOverviewResponse(ov nntp.Overview) OverviewResponse {
	return OverviewResponse{
		Number:     ov.Number,
		Subject:    ov.Subject,
		From:       ov.From,
		Date:       ov.Date,
		MessageID:  ov.MessageID,
		References: ov.References,
		Bytes:      ov.Bytes,
		Lines:      ov.Lines,
		Extra:      ov.Extra,
	}
}

type RunResponse struct {
	ID         string `json:"id"`
	Provider   string `json:"provider"`
	Low        int64  `json:"low"`
	High       int64  `json:"high"`
	Fetched    int    `json:"fetched"`
	Error      string `json:"error,omitempty"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`
}

func newRunResponse(r *domain.FetchRun) RunResponse {
	resp := RunResponse{
		ID:        r.ID,
		Provider:  r.Provider,
		Low:       r.Low,
		High:      r.High,
		Fetched:   r.Fetched,
		StartedAt: r.StartedAt.Unix(),
	}
	if r.Error != nil {
		resp.Error = *r.Error
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.Unix()
	}
	return resp
}

// --- RSS feed of stored overviews ---

type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []RSSItem `xml:"item"`
}

type RSSItem struct {
	Title     string    `xml:"title"`
	GUID      RSSGUID   `xml:"guid"`
	Link      string    `xml:"link"`
	Author    string    `xml:"author,omitempty"`
	PubDate   string    `xml:"pubDate,omitempty"`
	Enclosure Enclosure `xml:"enclosure"`
}

type RSSGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

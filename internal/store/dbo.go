package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/nntp"
)

// overviewDBO maps to the overviews table
type overviewDBO struct {
	Group      string         `db:"group_name"`
	Number     int64          `db:"number"`
	MessageID  string         `db:"message_id"`
	Subject    string         `db:"subject"`
	Poster     string         `db:"poster"`
	Date       string         `db:"date_header"`
	References sql.NullString `db:"refs"`
	Bytes      int64          `db:"bytes"`
	Lines      int64          `db:"lines"`
	Extra      sql.NullString `db:"extra"`
	RunID      string         `db:"run_id"`
}

// Mapper: DBO to overview record
func (o *overviewDBO) ToDomain() nntp.Overview {
	ov := nntp.Overview{
		Number:     o.Number,
		Subject:    o.Subject,
		From:       o.Poster,
		Date:       o.Date,
		MessageID:  o.MessageID,
		References: o.References.String,
		Bytes:      o.Bytes,
		Lines:      o.Lines,
	}
	if o.Extra.Valid {
		ov.Extra = strings.Split(o.Extra.String, "\t")
	}
	return ov
}

// Mapper: overview record to DBO. Extra fields are stored tab joined since
// overview fields never contain tabs.
func (o *overviewDBO) FromDomain(group, runID string, ov nntp.Overview) {
	o.Group = group
	o.Number = ov.Number
	o.MessageID = ov.MessageID
	o.Subject = ov.Subject
	o.Poster = ov.From
	o.Date = ov.Date
	o.References = sql.NullString{String: ov.References, Valid: ov.References != ""}
	o.Bytes = ov.Bytes
	o.Lines = ov.Lines
	o.Extra = sql.NullString{String: strings.Join(ov.Extra, "\t"), Valid: len(ov.Extra) > 0}
	o.RunID = runID
}

// fetchRunDBO maps to the fetch_runs table
type fetchRunDBO struct {
	ID         string         `db:"id"`
	Provider   string         `db:"provider"`
	Group      string         `db:"group_name"`
	Low        int64          `db:"low"`
	High       int64          `db:"high"`
	Fetched    int            `db:"fetched"`
	Error      sql.NullString `db:"error"`
	StartedAt  int64          `db:"started_at"`
	FinishedAt sql.NullInt64  `db:"finished_at"`
}

// Mapper: DBO to Domain FetchRun
func (r *fetchRunDBO) ToDomain() *domain.FetchRun {
	run := &domain.FetchRun{
		ID:        r.ID,
		Provider:  r.Provider,
		Group:     r.Group,
		Low:       r.Low,
		High:      r.High,
		Fetched:   r.Fetched,
		StartedAt: time.Unix(r.StartedAt, 0),
	}
	if r.Error.Valid {
		errStr := r.Error.String
		run.Error = &errStr
	}
	if r.FinishedAt.Valid {
		t := time.Unix(r.FinishedAt.Int64, 0)
		run.FinishedAt = &t
	}
	return run
}

package domain

import "time"

// FetchRun records one overview fetch against a provider.
type FetchRun struct {
	ID         string
	Provider   string
	Group      string
	Low, High  int64
	Fetched    int
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Done reports whether the run has been finished, successfully or not.
func (r *FetchRun) Done() bool { return r.FinishedAt != nil }

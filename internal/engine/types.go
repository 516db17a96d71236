package engine

import "github.com/datallboy/gonntp/internal/decoding"

// PartJob is one article of a multi part binary.
type PartJob struct {
	MessageID  string
	Index      int
	RetryCount int
}

type PartResult struct {
	Job   PartJob
	Part  *decoding.Part
	Error error
}

// FileResult summarizes a finished fetch.
type FileResult struct {
	Name         string
	Size         int64
	BytesWritten int64
	Parts        int
	Failed       []string
}

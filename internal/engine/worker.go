package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/datallboy/gonntp/internal/app"
	"github.com/datallboy/gonntp/internal/decoding"
	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/infra/logger"
)

// Fetcher downloads the parts of a yEnc binary concurrently and assembles
// them into one file.
type Fetcher struct {
	nntp app.NNTPManager
	log  *logger.Logger

	// Backoff is the base retry delay, doubled per attempt.
	Backoff    time.Duration
	MaxRetries int
	// BusyDelay is how long a job waits before retrying when every
	// provider slot was taken.
	BusyDelay time.Duration
}

func NewFetcher(a *app.Context) *Fetcher {
	return &Fetcher{
		nntp:       a.NNTP,
		log:        a.Logger,
		Backoff:    time.Second,
		MaxRetries: 3,
		BusyDelay:  100 * time.Millisecond,
	}
}

// Fetch downloads ids, one article per part, into dir. The file name comes
// from the yEnc header unless name is set.
func (f *Fetcher) Fetch(ctx context.Context, ids []string, dir, name string) (*FileResult, error) {
	if len(ids) == 0 {
		return nil, errors.New("no message-ids to fetch")
	}

	// Ask the manager for the connection limit
	capacity := f.nntp.TotalCapacity()
	if capacity <= 0 {
		return nil, fmt.Errorf("no download capacity available: check server max_connections")
	}

	// Add 2 extra workers to ensure there's always a worker waiting for a slot
	workerCount := min(capacity+2, len(ids))
	bufferSize := len(ids)

	jobs := make(chan PartJob, bufferSize)
	results := make(chan PartResult, bufferSize)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for range workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.worker(ctx, jobs, results, stop)
		}()
	}

	for i, id := range ids {
		jobs <- PartJob{MessageID: id, Index: i}
	}

	res := &FileResult{Name: name}
	var writer *FileWriter
	completed := 0
	var finalErr error

	for completed < len(ids) {
		select {
		case <-ctx.Done():
			if writer != nil {
				writer.Close(0)
			}
			return nil, ctx.Err()
		case r := <-results:
			if r.Error != nil {
				if f.retry(ctx, r, jobs, stop) {
					continue
				}
				// Permanent failure
				f.log.Error("[FAIL] Part %s permanently failed: %v", r.Job.MessageID, r.Error)
				res.Failed = append(res.Failed, r.Job.MessageID)
				finalErr = fmt.Errorf("one or more parts failed permanently")
				completed++
				continue
			}

			if writer == nil {
				if res.Name == "" {
					res.Name = sanitizeFileName(r.Part.Name)
				}
				writer = NewFileWriter(filepath.Join(dir, res.Name))
			}
			if err := f.place(writer, r); err != nil {
				writer.Close(0)
				return nil, err
			}
			if r.Part.Size > res.Size {
				res.Size = r.Part.Size
			}
			res.Parts++
			completed++
		}
	}

	if writer != nil {
		res.BytesWritten = writer.Written()
		if err := writer.Close(res.Size); err != nil {
			return nil, err
		}
	}
	return res, finalErr
}

// retry requeues a failed job when the error is worth another attempt.
func (f *Fetcher) retry(ctx context.Context, r PartResult, jobs chan<- PartJob, stop <-chan struct{}) bool {
	if errors.Is(r.Error, domain.ErrArticleNotFound) {
		return false
	}

	isBusy := errors.Is(r.Error, domain.ErrProviderBusy)
	if !isBusy && r.Job.RetryCount >= f.MaxRetries {
		return false
	}

	delay := f.BusyDelay
	if !isBusy {
		r.Job.RetryCount++
		// Calculate backoff: 2s, 4s, 8s...
		delay = time.Duration(math.Pow(2, float64(r.Job.RetryCount))) * f.Backoff
		f.log.Warn("[Retry] Part %s: Attempt %d/%d - Error: %v",
			r.Job.MessageID, r.Job.RetryCount, f.MaxRetries, r.Error)
	}

	// Use a timer to re-queue the job so we don't block the collector
	time.AfterFunc(delay, func() {
		select {
		case <-ctx.Done():
		case <-stop:
		case jobs <- r.Job:
		}
	})
	return true
}

func (f *Fetcher) place(w *FileWriter, r PartResult) error {
	var offset int64
	if r.Part.IsMultipart() {
		offset = r.Part.Begin - 1
	} else if r.Job.Index > 0 {
		return fmt.Errorf("part %s has no =ypart offset", r.Job.MessageID)
	}
	if err := w.WriteAt(r.Part.Data, offset); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

// worker pulls jobs until the fetch is over
func (f *Fetcher) worker(ctx context.Context, jobs <-chan PartJob, results chan<- PartResult, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case job := <-jobs:
			part, err := f.processPart(ctx, job)
			select {
			case results <- PartResult{Job: job, Part: part, Error: err}:
			case <-stop:
				return
			}
		}
	}
}

// processPart fetches one body through the manager and decodes it.
func (f *Fetcher) processPart(ctx context.Context, job PartJob) (*decoding.Part, error) {
	body, err := f.nntp.FetchBody(ctx, job.MessageID)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	part, err := decoding.Decode(body.Unterminated())
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	if err := part.Verify(); err != nil {
		return nil, fmt.Errorf("integrity check failed: %w", err)
	}
	f.log.Debug("Part %d (%s): %d bytes", job.Index, job.MessageID, len(part.Data))
	return part, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "download.bin"
	}
	return name
}

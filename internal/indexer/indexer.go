package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/datallboy/gonntp/internal/app"
	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/nntp"
	"github.com/datallboy/gonntp/internal/provider"
)

// DefaultBatchSize is the number of articles requested per OVER command.
const DefaultBatchSize = 1000

// Indexer copies group overview data from the providers into the store.
type Indexer struct {
	nntp  app.NNTPManager
	store app.OverviewStore
	log   *logger.Logger

	BatchSize int64
}

func New(a *app.Context) *Indexer {
	return &Indexer{
		nntp:      a.NNTP,
		store:     a.Store,
		log:       a.Logger,
		BatchSize: DefaultBatchSize,
	}
}

// SyncResult describes one group sync.
type SyncResult struct {
	Group   string
	RunID   string
	Range   nntp.Range
	Fetched int
}

// Sync fetches overviews for group newer than what the store already holds.
// When last is positive at most the last N articles are considered.
func (idx *Indexer) Sync(ctx context.Context, group string, last int64) (*SyncResult, error) {
	if idx.store == nil {
		return nil, errors.New("indexer: no overview store configured")
	}

	stored, err := idx.store.LatestNumber(ctx, group)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Group: group}
	err = idx.nntp.WithSession(ctx, func(s *provider.Session) error {
		g, err := s.SelectGroup(group)
		if err != nil {
			return err
		}

		r, ok := syncRange(g, stored, last)
		if !ok {
			idx.log.Info("%s: up to date at %d", group, stored)
			return nil
		}
		res.Range = r

		runID, err := idx.store.BeginRun(ctx, s.Provider(), group, r)
		if err != nil {
			return err
		}
		res.RunID = runID

		fetched, err := idx.fetch(ctx, s, group, runID, r)
		res.Fetched = fetched
		if ferr := idx.store.FinishRun(ctx, runID, fetched, err); ferr != nil {
			idx.log.Warn("%s: could not finish run %s: %v", group, runID, ferr)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", group, err)
	}
	return res, nil
}

func (idx *Indexer) fetch(ctx context.Context, s *provider.Session, group, runID string, r nntp.Range) (int, error) {
	batch := idx.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	fetched := 0
	for low := r.Low; low <= r.High; low += batch {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		chunk := nntp.Range{Low: low, High: min(low+batch-1, r.High)}
		overviews, err := s.Over(chunk)
		if err != nil {
			return fetched, err
		}
		if err := idx.store.SaveOverviews(ctx, group, runID, overviews); err != nil {
			return fetched, err
		}
		fetched += len(overviews)
		idx.log.Debug("%s: %d-%d: %d overviews", group, chunk.Low, chunk.High, len(overviews))
	}
	idx.log.Info("%s: stored %d overviews (%d-%d)", group, fetched, r.Low, r.High)
	return fetched, nil
}

// syncRange picks the articles still to fetch. ok is false when there is
// nothing new.
func syncRange(g *nntp.Group, stored, last int64) (nntp.Range, bool) {
	if g.Number == 0 || g.High < g.Low {
		return nntp.Range{}, false
	}
	low := max(g.Low, stored+1)
	if last > 0 {
		low = max(low, g.High-last+1)
	}
	if low > g.High {
		return nntp.Range{}, false
	}
	return nntp.Range{Low: low, High: g.High}, true
}

// SyncAll syncs groups concurrently, bounded by the provider capacity. The
// first error cancels the syncs still running and is returned with the
// results that completed.
func (idx *Indexer) SyncAll(ctx context.Context, groups []string, last int64) ([]*SyncResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(idx.nntp.TotalCapacity(), 1))

	var (
		mu      sync.Mutex
		results []*SyncResult
	)
	for _, name := range groups {
		g.Go(func() error {
			res, err := idx.Sync(gctx, name, last)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

package app

import (
	"context"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/infra/config"
	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/nntp"
	"github.com/datallboy/gonntp/internal/provider"
)

type NNTPManager interface {
	FetchArticle(ctx context.Context, msgID string) (*nntp.Article, error)
	FetchHead(ctx context.Context, msgID string) (*nntp.Head, error)
	FetchBody(ctx context.Context, msgID string) (*nntp.Body, error)
	WithSession(ctx context.Context, fn func(*provider.Session) error) error
	TotalCapacity() int
	Close() error
}

type OverviewStore interface {
	BeginRun(ctx context.Context, provider, group string, r nntp.Range) (string, error)
	FinishRun(ctx context.Context, id string, fetched int, runErr error) error
	SaveOverviews(ctx context.Context, group, runID string, overviews []nntp.Overview) error
	ListOverviews(ctx context.Context, group string, limit int) ([]nntp.Overview, error)
	FindByMessageID(ctx context.Context, msgID string) (string, *nntp.Overview, error)
	LatestNumber(ctx context.Context, group string) (int64, error)
	Runs(ctx context.Context, group string, limit int) ([]*domain.FetchRun, error)
	Close() error
}

// Context holds the core environment and shared resources for GoNNTP.
// Store is nil unless a command asked for it.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	NNTP  NNTPManager
	Store OverviewStore
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}

// Close releases the NNTP sessions and the store.
func (c *Context) Close() {
	if c.NNTP != nil {
		if err := c.NNTP.Close(); err != nil {
			c.Logger.Warn("closing sessions: %v", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Warn("closing store: %v", err)
		}
	}
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/infra/config"
	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/nntp"
)

// DialFunc opens a session for one provider.
type DialFunc func(ctx context.Context, cfg config.ServerConfig) (*Session, error)

type managedProvider struct {
	cfg       config.ServerConfig
	semaphore chan struct{}

	mu   sync.Mutex
	idle []*Session
}

func (mp *managedProvider) ID() string    { return mp.cfg.ID }
func (mp *managedProvider) Priority() int { return mp.cfg.Priority }

// Manager pools sessions across providers. Requests go to providers in
// priority order; an article missing on one provider is retried on the
// next.
type Manager struct {
	providers []*managedProvider
	dial      DialFunc
	log       *logger.Logger
}

func NewManager(cfg *config.Config, log *logger.Logger) *Manager {
	return NewManagerWithDialer(cfg.Servers, func(ctx context.Context, s config.ServerConfig) (*Session, error) {
		return Dial(ctx, s, cfg.Buffers, log)
	}, log)
}

// NewManagerWithDialer is NewManager with a custom session factory.
func NewManagerWithDialer(servers []config.ServerConfig, dial DialFunc, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	managed := make([]*managedProvider, 0, len(servers))
	for _, s := range servers {
		managed = append(managed, &managedProvider{
			cfg:       s,
			semaphore: make(chan struct{}, max(s.MaxConnection, 1)),
		})
	}

	// Sort providers by priority (lower runs first)
	sort.SliceStable(managed, func(i, j int) bool {
		return managed[i].Priority() < managed[j].Priority()
	})
	return &Manager{providers: managed, dial: dial, log: log}
}

// Providers returns the provider IDs in the order they are tried.
func (m *Manager) Providers() []string {
	ids := make([]string, len(m.providers))
	for i, mp := range m.providers {
		ids[i] = mp.ID()
	}
	return ids
}

// TotalCapacity returns the maximum number of concurrent connections
// allowed across all configured providers.
func (m *Manager) TotalCapacity() int {
	total := 0
	for _, mp := range m.providers {
		total += cap(mp.semaphore)
	}
	return total
}

func (m *Manager) FetchBody(ctx context.Context, msgID string) (*nntp.Body, error) {
	msgID = formatMessageID(msgID)
	var body *nntp.Body
	err := m.withFailover(ctx, msgID, func(s *Session) error {
		var err error
		body, err = s.Body(nntp.ByMessageID(msgID))
		return err
	})
	return body, err
}

func (m *Manager) FetchArticle(ctx context.Context, msgID string) (*nntp.Article, error) {
	msgID = formatMessageID(msgID)
	var article *nntp.Article
	err := m.withFailover(ctx, msgID, func(s *Session) error {
		var err error
		article, err = s.Article(nntp.ByMessageID(msgID))
		return err
	})
	return article, err
}

func (m *Manager) FetchHead(ctx context.Context, msgID string) (*nntp.Head, error) {
	msgID = formatMessageID(msgID)
	var head *nntp.Head
	err := m.withFailover(ctx, msgID, func(s *Session) error {
		var err error
		head, err = s.Head(nntp.ByMessageID(msgID))
		return err
	})
	return head, err
}

// WithSession lends fn a session from the first provider with a free slot.
// There is no failover; fn sees whatever that provider returns.
func (m *Manager) WithSession(ctx context.Context, fn func(*Session) error) error {
	var lastErr error
	for _, mp := range m.providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case mp.semaphore <- struct{}{}:
		default:
			continue
		}

		err := m.run(ctx, mp, fn)
		if errors.Is(err, errDial) {
			lastErr = err
			continue
		}
		return err
	}
	if lastErr != nil {
		return lastErr
	}
	return domain.ErrProviderBusy
}

// formatMessageID adds the angle brackets NZB files usually leave off.
func formatMessageID(id string) string {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "<") {
		id = "<" + id + ">"
	}
	return id
}

func (m *Manager) withFailover(ctx context.Context, msgID string, fn func(*Session) error) error {
	missingFrom := make(map[string]bool)
	var lastErr error

	for _, mp := range m.providers {
		// Fast fail if the caller already gave up
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(missingFrom) > 0 {
			m.log.Debug("[Failover] %s missing on %d providers, trying %s (Priority %d)",
				msgID, len(missingFrom), mp.ID(), mp.Priority())
		}

		select {
		case mp.semaphore <- struct{}{}:
		default:
			// Provider is at MaxConnections, skip for now
			continue
		}

		err := m.run(ctx, mp, fn)
		if errors.Is(err, errDial) {
			lastErr = err
			continue
		}
		if err == nil {
			return nil
		}

		if errors.Is(err, domain.ErrArticleNotFound) {
			m.log.Debug("Provider %s: 430 Missing, marking as missing for %s", mp.ID(), msgID)
			missingFrom[mp.ID()] = true
			continue
		}

		m.log.Debug("Failover: %s error: %v", mp.ID(), err)
		lastErr = err
	}

	if len(missingFrom) == len(m.providers) {
		return fmt.Errorf("%w: %s", domain.ErrArticleNotFound, msgID)
	}
	if lastErr != nil {
		return lastErr
	}
	// Some providers were busy, the caller may wait and try again
	return domain.ErrProviderBusy
}

// run calls fn with a session of mp while holding one of its slots. The
// caller has taken the slot; run frees it. A pooled session may have been
// closed by the server while idle, so when it fails with a ConnError fn is
// retried once on a fresh connection.
func (m *Manager) run(ctx context.Context, mp *managedProvider, fn func(*Session) error) error {
	defer func() { <-mp.semaphore }()

	s := mp.popIdle()
	if s != nil {
		err := fn(s)
		if !isConnError(err) {
			mp.putIdle(s)
			return err
		}
		m.log.Debug("Provider %s: idle session %s went stale, redialing: %v", mp.ID(), s.ID(), err)
		s.Conn().Close()
	}

	s, err := m.dial(ctx, mp.cfg)
	if err != nil {
		m.log.Debug("Provider %s: connect failed: %v", mp.ID(), err)
		return fmt.Errorf("%w: %w", errDial, err)
	}
	err = fn(s)
	if isConnError(err) {
		m.log.Debug("Provider %s: dropping session %s: %v", mp.ID(), s.ID(), err)
		s.Conn().Close()
		return err
	}
	mp.putIdle(s)
	return err
}

// errDial marks a provider that could not be reached at all.
var errDial = errors.New("dial failed")

// isConnError reports whether err left the session's framing in doubt.
func isConnError(err error) bool {
	var connErr *nntp.ConnError
	return errors.As(err, &connErr)
}

func (mp *managedProvider) popIdle() *Session {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	n := len(mp.idle)
	if n == 0 {
		return nil
	}
	s := mp.idle[n-1]
	mp.idle = mp.idle[:n-1]
	return s
}

func (mp *managedProvider) putIdle(s *Session) {
	mp.mu.Lock()
	mp.idle = append(mp.idle, s)
	mp.mu.Unlock()
}

// Close quits every idle session.
func (m *Manager) Close() error {
	var errs []error
	for _, mp := range m.providers {
		mp.mu.Lock()
		idle := mp.idle
		mp.idle = nil
		mp.mu.Unlock()
		for _, s := range idle {
			if err := s.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", mp.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

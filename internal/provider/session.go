package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/infra/config"
	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/nntp"
)

// Session is an authenticated reader connection to one server. It tracks
// the selected group and caches the capability list.
//
// Like the underlying nntp.Conn, a Session is not safe for concurrent use.
type Session struct {
	id       ksuid.KSUID
	provider string
	conn     *nntp.Conn
	log      *logger.Logger

	greeting *nntp.RawResponse
	caps     nntp.Capabilities
	group    *nntp.Group
}

// Dial connects to the server, reads the greeting, authenticates and loads
// the capability list.
func Dial(ctx context.Context, cfg config.ServerConfig, bufs config.BufferConfig, log *logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.NewNop()
	}
	id := ksuid.New()
	slog := log.Named(cfg.ID).With("session", id.String())

	cc := cfg.ConnConfig(bufs)
	cc.Logger = slog
	conn, greeting, err := nntp.Connect(ctx, cfg.Addr(), cc)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Addr(), err)
	}

	s := &Session{id: id, provider: cfg.ID, conn: conn, log: slog, greeting: greeting}
	if err := s.handshake(cfg); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Debug("session ready (%s)", greeting.StatusLineString())
	return s, nil
}

func (s *Session) handshake(cfg config.ServerConfig) error {
	switch {
	case s.greeting.Code.Is(nntp.KindPostingAllowed), s.greeting.Code.Is(nntp.KindPostingProhibited):
	default:
		return nntp.NewFailure(s.greeting, "unexpected greeting")
	}

	if cfg.ModeReader {
		resp, err := s.conn.Command(nntp.ModeReaderCmd{})
		if err != nil {
			return err
		}
		if !resp.Code.Is(nntp.KindPostingAllowed) && !resp.Code.Is(nntp.KindPostingProhibited) {
			return nntp.NewFailure(resp, "MODE READER rejected")
		}
		s.greeting = resp
	}

	if err := s.authenticate(cfg); err != nil {
		return err
	}

	if err := s.loadCapabilities(); err != nil {
		return err
	}

	if cc := cfg.ConnConfig(config.BufferConfig{}); cc.Compression != nntp.CompressionNone {
		resp, err := s.conn.Command(nntp.XFeatureCompressCmd{})
		if err != nil {
			return err
		}
		if err := resp.FailUnlessKind(nntp.KindXFeatureEnabled); err != nil {
			return fmt.Errorf("enable compression: %w", err)
		}
		s.log.Debug("xfeature compression enabled")
	}
	return nil
}

func (s *Session) authenticate(cfg config.ServerConfig) error {
	if cfg.Username == "" {
		return nil
	}
	if !cfg.TLS {
		s.log.Warn("sending credentials to %s without TLS", cfg.Host)
	}

	resp, err := s.conn.Command(nntp.AuthInfoUser{Username: cfg.Username})
	if err != nil {
		return err
	}
	// Some servers accept the user name alone
	if resp.Code.Is(nntp.KindAuthenticationAccepted) {
		return nil
	}
	if err := resp.FailUnlessKind(nntp.KindPasswordRequired); err != nil {
		return fmt.Errorf("authinfo user: %w", err)
	}

	resp, err = s.conn.Command(nntp.AuthInfoPass{Password: cfg.Password})
	if err != nil {
		return err
	}
	if err := resp.FailUnlessKind(nntp.KindAuthenticationAccepted); err != nil {
		return fmt.Errorf("authinfo pass: %w", err)
	}
	return nil
}

func (s *Session) loadCapabilities() error {
	resp, err := s.conn.Command(nntp.CapabilitiesCmd{})
	if err != nil {
		return err
	}
	// Pre RFC 3977 servers answer 500; treat that as an empty list
	if !resp.Code.Is(nntp.KindCapabilities) {
		s.caps = nntp.Capabilities{}
		return nil
	}
	caps, err := nntp.DecodeCapabilities(resp)
	if err != nil {
		return err
	}
	s.caps = caps
	return nil
}

// ID is the unique session id used in logs.
func (s *Session) ID() string { return s.id.String() }

// Provider is the configured server ID.
func (s *Session) Provider() string { return s.provider }

// Greeting is the last greeting or MODE READER response.
func (s *Session) Greeting() *nntp.RawResponse { return s.greeting }

// PostingAllowed reflects the greeting code.
func (s *Session) PostingAllowed() bool { return s.greeting.Code.Is(nntp.KindPostingAllowed) }

// Capabilities returns the cached capability list.
func (s *Session) Capabilities() nntp.Capabilities { return s.caps }

// RefreshCapabilities reloads the capability list, e.g. after
// authentication changes what the server offers.
func (s *Session) RefreshCapabilities() (nntp.Capabilities, error) {
	if err := s.loadCapabilities(); err != nil {
		return nil, err
	}
	return s.caps, nil
}

// Group returns the selected group, or nil.
func (s *Session) Group() *nntp.Group { return s.group }

// Conn exposes the raw connection for commands the session does not wrap.
func (s *Session) Conn() *nntp.Conn { return s.conn }

// SelectGroup issues GROUP and caches the result.
func (s *Session) SelectGroup(name string) (*nntp.Group, error) {
	resp, err := s.conn.Command(nntp.GroupCmd{Name: name})
	if err != nil {
		return nil, err
	}
	if resp.Code.Is(nntp.KindNoSuchNewsgroup) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSuchGroup, name)
	}
	g, err := nntp.DecodeGroup(resp)
	if err != nil {
		return nil, err
	}
	s.group = g
	return g, nil
}

func (s *Session) Article(sel nntp.Selector) (*nntp.Article, error) {
	resp, err := s.request(nntp.ArticleCmd{Sel: sel}, nntp.KindArticle)
	if err != nil {
		return nil, err
	}
	return nntp.DecodeArticle(resp)
}

func (s *Session) Head(sel nntp.Selector) (*nntp.Head, error) {
	resp, err := s.request(nntp.HeadCmd{Sel: sel}, nntp.KindHead)
	if err != nil {
		return nil, err
	}
	return nntp.DecodeHead(resp)
}

func (s *Session) Body(sel nntp.Selector) (*nntp.Body, error) {
	resp, err := s.request(nntp.BodyCmd{Sel: sel}, nntp.KindBody)
	if err != nil {
		return nil, err
	}
	return nntp.DecodeBody(resp)
}

// Stat returns nil without error when the article does not exist.
func (s *Session) Stat(sel nntp.Selector) (*nntp.Stat, error) {
	st, err := s.request(nntp.StatCmd{Sel: sel}, nntp.KindArticleExists)
	if errors.Is(err, domain.ErrArticleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nntp.DecodeStat(st)
}

// Over fetches overview lines for r in the selected group, using OVER when
// advertised and XOVER otherwise. An empty range yields no entries.
func (s *Session) Over(r nntp.Range) ([]nntp.Overview, error) {
	var cmd nntp.Command = nntp.XOverCmd{Range: &r}
	if s.caps.Has("OVER") {
		cmd = nntp.OverCmd{Range: &r}
	}
	resp, err := s.request(cmd, nntp.KindOverviewFollows)
	if errors.Is(err, domain.ErrArticleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nntp.DecodeOverview(resp)
}

// Post sends both phases of a POST.
func (s *Session) Post(initiate nntp.PostInitiate, body nntp.PostBody) error {
	resp, err := s.conn.Command(initiate)
	if err != nil {
		return err
	}
	if resp.Code.Is(nntp.KindPostingNotPermitted) {
		return fmt.Errorf("%w: %w", domain.ErrPostingNotPermitted, nntp.NewFailure(resp, ""))
	}
	if err := resp.FailUnlessKind(nntp.KindSendArticleToPost); err != nil {
		return err
	}

	resp, err = s.conn.Command(body)
	if err != nil {
		return err
	}
	return resp.FailUnlessKind(nntp.KindArticleReceivedOK)
}

// Close sends QUIT and closes the connection.
func (s *Session) Close() error {
	resp, err := s.conn.Command(nntp.QuitCmd{})
	if err == nil {
		err = resp.FailUnlessKind(nntp.KindConnectionClosing)
	}
	return errors.Join(err, s.conn.Close())
}

// request sends cmd and maps the "no such article" family onto
// domain.ErrArticleNotFound. Any other code but want is a failure.
func (s *Session) request(cmd nntp.Command, want nntp.Kind) (*nntp.RawResponse, error) {
	resp, err := s.conn.Command(cmd)
	if err != nil {
		return nil, err
	}
	switch resp.Code.Kind() {
	case want:
		return resp, nil
	case nntp.KindNoArticleWithMessageID, nntp.KindNoArticleWithNumber, nntp.KindInvalidCurrentArticleNumber:
		return nil, fmt.Errorf("%w: %w", domain.ErrArticleNotFound, nntp.NewFailure(resp, ""))
	case nntp.KindNoSuchNewsgroup:
		return nil, fmt.Errorf("%w: %w", domain.ErrNoSuchGroup, nntp.NewFailure(resp, ""))
	default:
		return nil, nntp.NewFailure(resp, resp.StatusLineString())
	}
}

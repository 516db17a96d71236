package engine

import (
	"context"
	"fmt"
	"hash/crc32"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/gonntp/internal/app"
	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/infra/config"
	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/nntp"
	"github.com/datallboy/gonntp/internal/nntp/nntptest"
	"github.com/datallboy/gonntp/internal/provider"
)

// yencBody renders a BODY response for data[begin-1:end] as part n of total.
func yencBody(id string, data []byte, n, total int, begin, end int64) string {
	chunk := data[begin-1 : end]
	var b strings.Builder
	fmt.Fprintf(&b, "222 0 %s\r\n", id)
	fmt.Fprintf(&b, "=ybegin part=%d total=%d line=64 size=%d name=movie.bin\r\n", n, total, len(data))
	fmt.Fprintf(&b, "=ypart begin=%d end=%d\r\n", begin, end)

	var line []byte
	flush := func() {
		if len(line) > 0 && line[0] == '.' {
			b.WriteByte('.')
		}
		b.Write(line)
		b.WriteString("\r\n")
		line = line[:0]
	}
	for _, c := range chunk {
		e := c + 42
		switch e {
		case 0, '\n', '\r', '=':
			line = append(line, '=', e+64)
		default:
			line = append(line, e)
		}
		if len(line) >= 64 {
			flush()
		}
	}
	if len(line) > 0 {
		flush()
	}
	fmt.Fprintf(&b, "=yend size=%d part=%d pcrc32=%08x\r\n.\r\n", len(chunk), n, crc32.ChecksumIEEE(chunk))
	return b.String()
}

func serveBodies(bodies map[string]string) func(p *nntptest.Peer) {
	return func(p *nntptest.Peer) {
		p.Write("200 ready\r\n")
		for {
			line := p.ReadLine()
			switch {
			case line == "":
				return
			case line == "QUIT":
				p.Write("205 bye\r\n")
				return
			case line == "CAPABILITIES":
				p.Write("101 caps\r\nVERSION 2\r\nREADER\r\n.\r\n")
			case strings.HasPrefix(line, "BODY "):
				if resp, ok := bodies[strings.TrimPrefix(line, "BODY ")]; ok {
					p.Write(resp)
				} else {
					p.Write("430 no such article\r\n")
				}
			default:
				p.Write("500 unknown command\r\n")
			}
		}
	}
}

func newManager(t *testing.T, addr string) *provider.Manager {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := config.ServerConfig{ID: "main", Host: host, Port: p, MaxConnection: 2, Priority: 1,
		ReadTimeout: 2 * time.Second, DialTimeout: 2 * time.Second}
	m := provider.NewManagerWithDialer([]config.ServerConfig{cfg}, func(ctx context.Context, s config.ServerConfig) (*provider.Session, error) {
		return provider.Dial(ctx, s, config.BufferConfig{}, nil)
	}, nil)
	t.Cleanup(func() { m.Close() })
	return m
}

// flakyManager fails the first attempts for selected ids.
type flakyManager struct {
	app.NNTPManager
	mu    sync.Mutex
	fails map[string][]error
	calls map[string]int
}

func (f *flakyManager) FetchBody(ctx context.Context, msgID string) (*nntp.Body, error) {
	f.mu.Lock()
	f.calls[msgID]++
	var err error
	if errs := f.fails[msgID]; len(errs) > 0 {
		err, f.fails[msgID] = errs[0], errs[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.NNTPManager.FetchBody(ctx, msgID)
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	return data
}

func newFetcher(m app.NNTPManager) *Fetcher {
	return &Fetcher{
		nntp:       m,
		log:        logger.NewNop(),
		Backoff:    time.Millisecond,
		MaxRetries: 3,
		BusyDelay:  time.Millisecond,
	}
}

func TestFetchAssemblesParts(t *testing.T) {
	data := testData(700)
	addr := nntptest.Listen(t, serveBodies(map[string]string{
		"<p1@x>": yencBody("<p1@x>", data, 1, 3, 1, 300),
		"<p2@x>": yencBody("<p2@x>", data, 2, 3, 301, 600),
		"<p3@x>": yencBody("<p3@x>", data, 3, 3, 601, 700),
	}))
	dir := t.TempDir()

	res, err := newFetcher(newManager(t, addr)).Fetch(context.Background(), []string{"<p1@x>", "<p2@x>", "<p3@x>"}, dir, "")
	require.NoError(t, err)
	assert.Equal(t, "movie.bin", res.Name)
	assert.Equal(t, 3, res.Parts)
	assert.Equal(t, int64(700), res.Size)
	assert.Equal(t, int64(700), res.BytesWritten)
	assert.Empty(t, res.Failed)

	got, err := os.ReadFile(filepath.Join(dir, "movie.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	data := testData(200)
	addr := nntptest.Listen(t, serveBodies(map[string]string{
		"<p1@x>": yencBody("<p1@x>", data, 1, 2, 1, 100),
		"<p2@x>": yencBody("<p2@x>", data, 2, 2, 101, 200),
	}))
	flaky := &flakyManager{
		NNTPManager: newManager(t, addr),
		fails: map[string][]error{
			"<p1@x>": {domain.ErrProviderBusy, domain.ErrProviderBusy},
			"<p2@x>": {fmt.Errorf("connection reset")},
		},
		calls: map[string]int{},
	}
	dir := t.TempDir()

	res, err := newFetcher(flaky).Fetch(context.Background(), []string{"<p1@x>", "<p2@x>"}, dir, "out.bin")
	require.NoError(t, err)
	assert.Equal(t, "out.bin", res.Name)
	assert.Equal(t, 3, flaky.calls["<p1@x>"])
	assert.Equal(t, 2, flaky.calls["<p2@x>"])

	got, err := os.ReadFile(filepath.Join(dir, "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFetchMissingPart(t *testing.T) {
	data := testData(200)
	addr := nntptest.Listen(t, serveBodies(map[string]string{
		"<p1@x>": yencBody("<p1@x>", data, 1, 2, 1, 100),
	}))

	res, err := newFetcher(newManager(t, addr)).Fetch(context.Background(), []string{"<p1@x>", "<p2@x>"}, t.TempDir(), "")
	assert.ErrorContains(t, err, "failed permanently")
	require.NotNil(t, res)
	assert.Equal(t, []string{"<p2@x>"}, res.Failed)
	assert.Equal(t, 1, res.Parts)
}

func TestFetchNoIDs(t *testing.T) {
	_, err := newFetcher(nil).Fetch(context.Background(), nil, t.TempDir(), "")
	assert.Error(t, err)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "movie.bin", sanitizeFileName("../../movie.bin"))
	assert.Equal(t, "a_b.bin", sanitizeFileName("a:b.bin"))
	assert.Equal(t, "download.bin", sanitizeFileName(""))
}

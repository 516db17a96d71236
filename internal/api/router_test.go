package api

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/datallboy/gonntp/internal/api/controllers"
	"github.com/datallboy/gonntp/internal/app"
	"github.com/datallboy/gonntp/internal/infra/config"
	"github.com/datallboy/gonntp/internal/infra/logger"
	"github.com/datallboy/gonntp/internal/nntp"
	"github.com/datallboy/gonntp/internal/nntp/nntptest"
	"github.com/datallboy/gonntp/internal/provider"
	"github.com/datallboy/gonntp/internal/store"
)

var replies = map[string]string{
	"GROUP alt.test":   "211 3 10 12 alt.test\r\n",
	"GROUP alt.gone":   "411 no such group\r\n",
	"ARTICLE <1@x>":    "220 10 <1@x>\r\nSubject: hello\r\nFrom: a@b\r\n\r\nfirst line\r\nbad \xff byte\r\n.\r\n",
	"ARTICLE <gone@x>": "430 no such article\r\n",
	"HEAD <1@x>":       "221 10 <1@x>\r\nSubject: hello\r\n.\r\n",
	"BODY <1@x>":       "222 10 <1@x>\r\nfirst line\r\n..dotted\r\n.\r\n",
}

func serve(p *nntptest.Peer) {
	p.Write("200 ready\r\n")
	for {
		line := p.ReadLine()
		switch line {
		case "":
			return
		case "QUIT":
			p.Write("205 bye\r\n")
			return
		case "CAPABILITIES":
			p.Write("101 caps\r\nVERSION 2\r\nREADER\r\nOVER MSGID\r\n.\r\n")
			continue
		}
		if resp, ok := replies[line]; ok {
			p.Write(resp)
		} else {
			p.Write("500 unknown command\r\n")
		}
	}
}

func newServer(t *testing.T) (*echo.Echo, *app.Context, *observer.ObservedLogs) {
	t.Helper()
	host, port, err := net.SplitHostPort(nntptest.Listen(t, serve))
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	servers := []config.ServerConfig{{ID: "main", Host: host, Port: p, MaxConnection: 2, Priority: 1,
		ReadTimeout: 2 * time.Second, DialTimeout: 2 * time.Second}}
	m := provider.NewManagerWithDialer(servers, func(ctx context.Context, s config.ServerConfig) (*provider.Session, error) {
		return provider.Dial(ctx, s, config.BufferConfig{}, nil)
	}, nil)

	st, err := store.Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "gonntp.db"),
	})
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	a := app.NewContext(&config.Config{Servers: servers}, logger.NewWithCore(core))
	a.NNTP = m
	a.Store = st
	t.Cleanup(a.Close)

	e := echo.New()
	RegisterRoutes(e, a)
	return e, a, logs
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCapabilities(t *testing.T) {
	e, _, logs := newServer(t)

	rec := get(e, "/capabilities")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp controllers.CapabilitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "main", resp.Provider)
	assert.True(t, resp.PostingAllowed)
	assert.Equal(t, "ready", resp.Greeting)
	assert.Equal(t, []string{"MSGID"}, resp.Capabilities["OVER"])
	assert.Equal(t, []string{}, resp.Capabilities["READER"])

	assert.Equal(t, 1, logs.FilterMessageSnippet("GET /capabilities | 200").Len())
}

func TestGroup(t *testing.T) {
	e, _, _ := newServer(t)

	rec := get(e, "/groups/alt.test")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp controllers.GroupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, controllers.GroupResponse{Name: "alt.test", Count: 3, Low: 10, High: 12, Provider: "main"}, resp)

	rec = get(e, "/groups/alt.gone")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArticle(t *testing.T) {
	e, _, _ := newServer(t)

	rec := get(e, "/articles/1@x")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp controllers.ArticleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(10), resp.Number)
	assert.Equal(t, "<1@x>", resp.MessageID)
	assert.Equal(t, []string{"hello"}, resp.Headers["Subject"])
	assert.Equal(t, []string{"first line", "bad � byte"}, resp.Body)

	rec = get(e, "/articles/1@x?head=1")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = controllers.ArticleResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Body)
	assert.Equal(t, []string{"hello"}, resp.Headers["Subject"])

	rec = get(e, "/articles/1@x/raw")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first line\r\n.dotted\r\n", rec.Body.String())

	rec = get(e, "/articles/gone@x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverviewArchive(t *testing.T) {
	e, a, _ := newServer(t)
	ctx := context.Background()

	runID, err := a.Store.BeginRun(ctx, "main", "alt.test", nntp.Range{Low: 10, High: 11})
	require.NoError(t, err)
	require.NoError(t, a.Store.SaveOverviews(ctx, "alt.test", runID, []nntp.Overview{
		{Number: 10, Subject: "first", From: "a@b", Date: "d", MessageID: "<1@x>", Bytes: 100, Lines: 2},
		{Number: 11, Subject: "second", From: "a@b", Date: "d", MessageID: "<2@x>", Bytes: 200, Lines: 3},
	}))
	require.NoError(t, a.Store.FinishRun(ctx, runID, 2, nil))

	rec := get(e, "/groups/alt.test/overviews?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var ov []controllers.OverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ov))
	require.Len(t, ov, 1)
	assert.Equal(t, "second", ov[0].Subject)

	rec = get(e, "/groups/alt.test/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []controllers.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Fetched)

	rec = get(e, "/groups/alt.test/feed")
	require.Equal(t, http.StatusOK, rec.Code)
	var rss controllers.RSS
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &rss))
	require.Len(t, rss.Channel.Items, 2)
	assert.Equal(t, "second", rss.Channel.Items[0].Title)
	assert.Equal(t, "<2@x>", rss.Channel.Items[0].GUID.Value)
	assert.Equal(t, int64(200), rss.Channel.Items[0].Enclosure.Length)
	assert.Contains(t, rss.Channel.Items[0].Enclosure.URL, "/articles/%3C2@x%3E/raw")
}

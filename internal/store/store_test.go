package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/infra/config"
	"github.com/datallboy/gonntp/internal/nntp"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "db", "gonntp.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{driver: "sqlite"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.RunMigrations())

	var (
		version int
		dirty   bool
	)
	require.NoError(t, s.db.QueryRow(`SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty))
	assert.Equal(t, 1, version)
	assert.False(t, dirty)
}

func TestSaveAndListOverviews(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	runID, err := s.BeginRun(ctx, "primary", "alt.test", nntp.Range{Low: 1, High: 3})
	require.NoError(t, err)

	overviews := []nntp.Overview{
		{Number: 1, Subject: "one", From: "a@b", Date: "d1", MessageID: "<1@x>", Bytes: 10, Lines: 1},
		{Number: 2, Subject: "two", From: "a@b", Date: "d2", MessageID: "<2@x>", References: "<1@x>", Bytes: 20, Lines: 2,
			Extra: []string{"Xref: host alt.test:2", "Newsgroups: alt.test"}},
	}
	require.NoError(t, s.SaveOverviews(ctx, "alt.test", runID, overviews))

	// Renumbered article replaces the stored row
	overviews[0].Subject = "one again"
	require.NoError(t, s.SaveOverviews(ctx, "alt.test", runID, overviews[:1]))
	require.NoError(t, s.FinishRun(ctx, runID, 2, nil))

	got, err := s.ListOverviews(ctx, "alt.test", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, overviews[1], got[0])
	assert.Equal(t, "one again", got[1].Subject)
	assert.Nil(t, got[1].Extra)

	latest, err := s.LatestNumber(ctx, "alt.test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)

	latest, err = s.LatestNumber(ctx, "alt.empty")
	require.NoError(t, err)
	assert.Zero(t, latest)

	group, ov, err := s.FindByMessageID(ctx, "<2@x>")
	require.NoError(t, err)
	assert.Equal(t, "alt.test", group)
	assert.Equal(t, "two", ov.Subject)

	_, _, err = s.FindByMessageID(ctx, "<nope@x>")
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	ok, err := s.BeginRun(ctx, "primary", "alt.test", nntp.Range{Low: 1, High: 10})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, ok, 10, nil))

	failed, err := s.BeginRun(ctx, "backup", "alt.test", nntp.Range{Low: 11})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, failed, 0, errors.New("connection reset")))

	open, err := s.BeginRun(ctx, "primary", "alt.other", nntp.Range{Low: 1, High: 2})
	require.NoError(t, err)

	runs, err := s.Runs(ctx, "alt.test", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	byID := map[string]*domain.FetchRun{runs[0].ID: runs[0], runs[1].ID: runs[1]}

	require.Contains(t, byID, ok)
	assert.True(t, byID[ok].Done())
	assert.Equal(t, 10, byID[ok].Fetched)
	assert.Nil(t, byID[ok].Error)

	require.Contains(t, byID, failed)
	require.NotNil(t, byID[failed].Error)
	assert.Equal(t, "connection reset", *byID[failed].Error)
	assert.Equal(t, int64(0), byID[failed].High)

	others, err := s.Runs(ctx, "alt.other", 0)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, open, others[0].ID)
	assert.False(t, others[0].Done())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported store driver")
}

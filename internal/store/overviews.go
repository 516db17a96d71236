package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/nntp"
)

// BeginRun records the start of an overview fetch and returns its id.
func (s *Store) BeginRun(ctx context.Context, provider, group string, r nntp.Range) (string, error) {
	id := ksuid.New().String()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO fetch_runs (id, provider, group_name, low, high, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, provider, group, r.Low, r.High, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record fetch run: %w", err)
	}
	return id, nil
}

// FinishRun closes a run with the number of overviews stored and the error
// that ended it, if any.
func (s *Store) FinishRun(ctx context.Context, id string, fetched int, runErr error) error {
	var errStr sql.NullString
	if runErr != nil {
		errStr = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE fetch_runs SET fetched = ?, error = ?, finished_at = ? WHERE id = ?`),
		fetched, errStr, time.Now().Unix(), id,
	)
	return err
}

// SaveOverviews upserts overview lines for group. A renumbered article
// replaces whatever was stored under its number.
func (s *Store) SaveOverviews(ctx context.Context, group, runID string, overviews []nntp.Overview) error {
	if len(overviews) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO overviews (
			group_name, number, message_id, subject, poster, date_header,
			refs, bytes, lines, extra, run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_name, number) DO UPDATE SET
			message_id = excluded.message_id,
			subject = excluded.subject,
			poster = excluded.poster,
			date_header = excluded.date_header,
			refs = excluded.refs,
			bytes = excluded.bytes,
			lines = excluded.lines,
			extra = excluded.extra,
			run_id = excluded.run_id`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	// Reuse a single DBO instance for efficiency
	var dbo overviewDBO
	for _, ov := range overviews {
		dbo.FromDomain(group, runID, ov)
		if _, err := stmt.ExecContext(ctx,
			dbo.Group, dbo.Number, dbo.MessageID, dbo.Subject, dbo.Poster, dbo.Date,
			dbo.References, dbo.Bytes, dbo.Lines, dbo.Extra, dbo.RunID,
		); err != nil {
			return fmt.Errorf("failed to upsert overview %s/%d: %w", group, ov.Number, err)
		}
	}

	return tx.Commit()
}

// ListOverviews returns up to limit overviews for group, newest first.
func (s *Store) ListOverviews(ctx context.Context, group string, limit int) ([]nntp.Overview, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT group_name, number, message_id, subject, poster, date_header,
			refs, bytes, lines, extra, run_id
		FROM overviews WHERE group_name = ?
		ORDER BY number DESC LIMIT ?`), group, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []nntp.Overview
	for rows.Next() {
		var dbo overviewDBO
		if err := scanOverview(rows, &dbo); err != nil {
			return nil, err
		}
		out = append(out, dbo.ToDomain())
	}
	return out, rows.Err()
}

// FindByMessageID returns the stored overview and its group for msgID.
func (s *Store) FindByMessageID(ctx context.Context, msgID string) (string, *nntp.Overview, error) {
	var dbo overviewDBO
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT group_name, number, message_id, subject, poster, date_header,
			refs, bytes, lines, extra, run_id
		FROM overviews WHERE message_id = ?
		ORDER BY group_name LIMIT 1`), msgID)
	if err := scanOverview(row, &dbo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, fmt.Errorf("%w: %s", domain.ErrArticleNotFound, msgID)
		}
		return "", nil, err
	}
	ov := dbo.ToDomain()
	return dbo.Group, &ov, nil
}

// LatestNumber is the highest stored article number for group, or 0.
func (s *Store) LatestNumber(ctx context.Context, group string) (int64, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT MAX(number) FROM overviews WHERE group_name = ?`), group).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n.Int64, nil
}

// Runs lists the most recent fetch runs for group.
func (s *Store) Runs(ctx context.Context, group string, limit int) ([]*domain.FetchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, provider, group_name, low, high, fetched, error, started_at, finished_at
		FROM fetch_runs WHERE group_name = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`), group, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.FetchRun
	for rows.Next() {
		var dbo fetchRunDBO
		if err := rows.Scan(&dbo.ID, &dbo.Provider, &dbo.Group, &dbo.Low, &dbo.High,
			&dbo.Fetched, &dbo.Error, &dbo.StartedAt, &dbo.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, dbo.ToDomain())
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOverview(sc scanner, dbo *overviewDBO) error {
	return sc.Scan(&dbo.Group, &dbo.Number, &dbo.MessageID, &dbo.Subject, &dbo.Poster, &dbo.Date,
		&dbo.References, &dbo.Bytes, &dbo.Lines, &dbo.Extra, &dbo.RunID)
}

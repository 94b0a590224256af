//nolint:whitespace // can't make both editor and linter happy
package standing

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository/bob/history"
	"github.com/mpapenbr/regatta-scoring-go/pkg/standing"
)

// Store is the Postgres implementation of standing.Store.
// The partial unique index on standing_result guarantees at most one current
// result per series, Publish swaps it within a single transaction.
type Store struct {
	conn    repository.TxQuerier
	history *history.Repository
}

var _ standing.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		conn:    pool,
		history: history.NewRepository(bob.NewDB(stdlib.OpenDBFromPool(pool))),
	}
}

func (s *Store) GetCurrent(ctx context.Context, seriesID int) (*model.CachedResult, error) {
	ret := &model.CachedResult{}
	err := s.conn.QueryRow(ctx, `
select id, series_id, payload, is_current, created_at
from standing_result where series_id=$1 and is_current
	`, seriesID).Scan(&ret.ID, &ret.SeriesID, &ret.Payload, &ret.IsCurrent, &ret.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, standing.ErrNoCurrent
		}
		return nil, err
	}
	return ret, nil
}

func (s *Store) Publish(
	ctx context.Context,
	seriesID int,
	payload *model.SeriesStanding,
) (*model.CachedResult, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	ret := &model.CachedResult{
		ID:        id,
		SeriesID:  seriesID,
		Payload:   payload,
		IsCurrent: true,
	}
	err = pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		// serialize publishers of the same series
		if _, err := tx.Exec(ctx, "select pg_advisory_xact_lock($1)", int64(seriesID)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"update standing_result set is_current=false where series_id=$1 and is_current",
			seriesID); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
insert into standing_result (id, series_id, payload, is_current)
values ($1,$2,$3,true) returning created_at
		`, id, seriesID, payload).Scan(&ret.CreatedAt); err != nil {
			return err
		}
		return setStale(ctx, tx, seriesID, false)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Store) Invalidate(ctx context.Context, seriesID int) error {
	return setStale(ctx, s.conn, seriesID, true)
}

func setStale(ctx context.Context, conn repository.Querier, seriesID int, stale bool) error {
	_, err := conn.Exec(ctx, `
insert into standing_state (series_id, stale, updated_at) values ($1,$2,$3)
on conflict (series_id) do update set stale=excluded.stale, updated_at=excluded.updated_at
	`, seriesID, stale, time.Now())
	return err
}

// IsStale reports true if the series was invalidated or has no current result
func (s *Store) IsStale(ctx context.Context, seriesID int) (bool, error) {
	stale := true
	err := s.conn.QueryRow(ctx, `
select coalesce((select stale from standing_state where series_id=$1), true)
	or not exists (select 1 from standing_result where series_id=$1 and is_current)
	`, seriesID).Scan(&stale)
	return stale, err
}

func (s *Store) History(ctx context.Context, seriesID, limit int) ([]*model.CachedResult, error) {
	return s.history.LoadHistory(ctx, seriesID, limit)
}

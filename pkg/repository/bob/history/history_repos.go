// Package history lists previously published standings using bob queries.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

type historyRow struct {
	ID        uuid.UUID `db:"id"`
	SeriesID  int       `db:"series_id"`
	Payload   []byte    `db:"payload"`
	IsCurrent bool      `db:"is_current"`
	CreatedAt time.Time `db:"created_at"`
}

type Repository struct {
	conn bob.Executor
}

func NewRepository(conn bob.Executor) *Repository {
	return &Repository{conn: conn}
}

// LoadHistory returns the results of a series that are no longer current,
// newest first. limit <= 0 returns all entries.
func (r *Repository) LoadHistory(
	ctx context.Context,
	seriesID, limit int,
) ([]*model.CachedResult, error) {
	q := psql.Select(
		sm.Columns("id", "series_id", "payload", "is_current", "created_at"),
		sm.From("standing_result"),
		sm.Where(psql.Quote("series_id").EQ(psql.Arg(seriesID))),
		sm.Where(psql.Quote("is_current").EQ(psql.Arg(false))),
		sm.OrderBy(psql.Quote("created_at")).Desc(),
	)
	if limit > 0 {
		q.Apply(sm.Limit(limit))
	}
	res, err := bob.All(ctx, r.conn, q, scan.StructMapper[historyRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]*model.CachedResult, 0, len(res))
	for i := range res {
		item := &model.CachedResult{
			ID:        res[i].ID,
			SeriesID:  res[i].SeriesID,
			IsCurrent: res[i].IsCurrent,
			CreatedAt: res[i].CreatedAt,
			Payload:   &model.SeriesStanding{},
		}
		if err := json.Unmarshal(res[i].Payload, item.Payload); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, nil
}

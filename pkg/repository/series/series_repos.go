//nolint:whitespace // can't make both editor and linter happy
package series

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository"
)

func Create(ctx context.Context, conn repository.Querier, s *model.Series) (int, error) {
	id := 0
	err := conn.QueryRow(ctx,
		"insert into series (name, scoring_system_id) values ($1,$2) returning id",
		s.Name, s.ScoringSystemID,
	).Scan(&id)
	return id, err
}

func LoadByID(ctx context.Context, conn repository.Querier, id int) (*model.Series, error) {
	ret := &model.Series{}
	err := conn.QueryRow(ctx,
		"select id, name, scoring_system_id from series where id=$1", id,
	).Scan(&ret.ID, &ret.Name, &ret.ScoringSystemID)
	if err != nil {
		return nil, repository.MapNoRows(err)
	}
	return ret, nil
}

func CreateRace(ctx context.Context, conn repository.Querier, r *model.Race) (int, error) {
	state := r.State
	if state == "" {
		state = model.RaceStateRaced
	}
	id := 0
	err := conn.QueryRow(ctx, `
insert into race (series_id, name, race_date, race_order, state)
values ($1,$2,$3,$4,$5) returning id
	`,
		r.SeriesID, r.Name, r.Date, r.Order, string(state),
	).Scan(&id)
	return id, err
}

// UpdateRaceState changes the state of a race (e.g. to Abandoned).
// Returns the id of the series the race belongs to.
func UpdateRaceState(ctx context.Context, conn repository.Querier, raceID int, state model.RaceState) (int, error) {
	seriesID := 0
	err := conn.QueryRow(ctx,
		"update race set state=$1 where id=$2 returning series_id", string(state), raceID,
	).Scan(&seriesID)
	return seriesID, repository.MapNoRows(err)
}

// UpsertResult stores the result of a competitor in a race.
// Returns the id of the series the race belongs to.
func UpsertResult(ctx context.Context, conn repository.Querier, row *model.RaceResultRow) (int, error) {
	_, err := conn.Exec(ctx, `
insert into race_result (race_id, competitor_id, place, code, value)
values ($1,$2,$3,$4,$5)
on conflict (race_id, competitor_id) do update set
	place=excluded.place, code=excluded.code, value=excluded.value
	`,
		row.RaceID, row.CompetitorID, row.Place, row.Code, row.Value,
	)
	if err != nil {
		return 0, err
	}
	return seriesOfRace(ctx, conn, row.RaceID)
}

// DeleteResult removes the result of a competitor in a race.
// Returns the id of the series the race belongs to.
func DeleteResult(ctx context.Context, conn repository.Querier, raceID, competitorID int) (int, error) {
	cmdTag, err := conn.Exec(ctx,
		"delete from race_result where race_id=$1 and competitor_id=$2", raceID, competitorID)
	if err != nil {
		return 0, err
	}
	if cmdTag.RowsAffected() == 0 {
		return 0, repository.ErrNoData
	}
	return seriesOfRace(ctx, conn, raceID)
}

func seriesOfRace(ctx context.Context, conn repository.Querier, raceID int) (int, error) {
	seriesID := 0
	err := conn.QueryRow(ctx, "select series_id from race where id=$1", raceID).Scan(&seriesID)
	return seriesID, repository.MapNoRows(err)
}

// LoadSeriesInput reads the snapshot needed to compute a standing
func LoadSeriesInput(ctx context.Context, conn repository.Querier, seriesID int) (*model.SeriesInput, error) {
	s, err := LoadByID(ctx, conn, seriesID)
	if err != nil {
		return nil, err
	}
	ret := &model.SeriesInput{Series: *s}

	rows, err := conn.Query(ctx, `
select id, series_id, name, race_date, race_order, state
from race where series_id=$1 order by race_date, race_order, id
	`, seriesID)
	if err != nil {
		return nil, err
	}
	ret.Races, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Race, error) {
		var r model.Race
		var state string
		err := row.Scan(&r.ID, &r.SeriesID, &r.Name, &r.Date, &r.Order, &state)
		r.State = model.RaceState(state)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	rows, err = conn.Query(ctx, `
select rr.race_id, rr.competitor_id, rr.place, rr.code, rr.value
from race_result rr join race r on r.id=rr.race_id
where r.series_id=$1 order by rr.race_id, rr.competitor_id
	`, seriesID)
	if err != nil {
		return nil, err
	}
	ret.Results, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RaceResultRow, error) {
		var r model.RaceResultRow
		err := row.Scan(&r.RaceID, &r.CompetitorID, &r.Place, &r.Code, &r.Value)
		return r, err
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadIDsByScoringSystem returns the series using the scoring system directly
// or through a child system.
func LoadIDsByScoringSystem(ctx context.Context, conn repository.Querier, systemID int) ([]int, error) {
	rows, err := conn.Query(ctx, `
select s.id from series s join scoring_system ss on ss.id=s.scoring_system_id
where ss.id=$1 or ss.parent_id=$1 order by s.id
	`, systemID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// LoadAllIDs returns the ids of all series
func LoadAllIDs(ctx context.Context, conn repository.Querier) ([]int, error) {
	rows, err := conn.Query(ctx, "select id from series order by id")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

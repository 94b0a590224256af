package basedata

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/codes"
	ssrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/scoringsystem"
	seriesrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/series"
)

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-04-28T11:10:12Z")
	return t
}

func IntPtr(i int) *int { return &i }

func SampleScoringSystem() *model.ScoringSystem {
	pct := decimal.NewFromInt(50)
	return &model.ScoringSystem{
		Name:                 "testsystem",
		DiscardPattern:       "0,0,1",
		ParticipationPercent: &pct,
		Direction:            model.LowPoint,
		MissingResultCode:    "DNC",
		Codes:                codes.StandardCodes(),
	}
}

func SampleSeries(systemID int) *model.Series {
	return &model.Series{Name: "testseries", ScoringSystemID: systemID}
}

// SampleResults returns the results of three competitors (1,2,3) in three races.
// Competitor 3 retires in the second race.
func SampleResults() [][]model.RaceResultRow {
	return [][]model.RaceResultRow{
		{
			{CompetitorID: 1, Place: IntPtr(1)},
			{CompetitorID: 2, Place: IntPtr(2)},
			{CompetitorID: 3, Place: IntPtr(3)},
		},
		{
			{CompetitorID: 2, Place: IntPtr(1)},
			{CompetitorID: 1, Place: IntPtr(2)},
			{CompetitorID: 3, Code: "DNF"},
		},
		{
			{CompetitorID: 3, Place: IntPtr(1)},
			{CompetitorID: 1, Place: IntPtr(2)},
			{CompetitorID: 2, Place: IntPtr(3)},
		},
	}
}

type SampleData struct {
	ScoringSystemID int
	SeriesID        int
	RaceIDs         []int
}

// CreateSampleSeries stores the sample scoring system, series, races and results
func CreateSampleSeries(db *pgxpool.Pool) *SampleData {
	ret := &SampleData{}
	ctx := context.Background()
	err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		var err error
		if ret.ScoringSystemID, err = ssrepos.Create(ctx, tx, SampleScoringSystem()); err != nil {
			return err
		}
		if ret.SeriesID, err = seriesrepos.Create(ctx, tx,
			SampleSeries(ret.ScoringSystemID)); err != nil {
			return err
		}
		for i, results := range SampleResults() {
			raceID, err := seriesrepos.CreateRace(ctx, tx, &model.Race{
				SeriesID: ret.SeriesID,
				Date:     TestTime().Add(time.Duration(i) * time.Hour),
				Order:    i + 1,
			})
			if err != nil {
				return err
			}
			ret.RaceIDs = append(ret.RaceIDs, raceID)
			for j := range results {
				results[j].RaceID = raceID
				if _, err := seriesrepos.UpsertResult(ctx, tx, &results[j]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("CreateSampleSeries", log.ErrorField(err))
	}
	return ret
}

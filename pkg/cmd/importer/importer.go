// Package importer stores the content of a series file in the database.
package importer

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	ssrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/scoringsystem"
	seriesrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/series"
	"github.com/mpapenbr/regatta-scoring-go/pkg/seriesfile"
)

// Result maps the ids used in the file to the ids assigned by the database
type Result struct {
	SeriesID int
	Systems  map[int]int
	Races    map[int]int
}

func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import file.yml",
		Short: "stores scoring systems and series of a series file in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return importFile(ctx, args[0])
		},
	}
	cmdutil.AddLogFlags(cmd)
	return cmd
}

func importFile(ctx context.Context, path string) error {
	f, err := seriesfile.Load(path)
	if err != nil {
		return err
	}
	_, sqlLogger := cmdutil.SetupLogger()
	cmdutil.WaitForServices(ctx)
	pool := cmdutil.NewPool(sqlLogger, nil)
	defer pool.Close()

	res, err := Import(ctx, pool, f)
	if err != nil {
		log.Error("import failed", log.ErrorField(err))
		return err
	}
	log.Info("series imported",
		log.String("file", path),
		log.Int("seriesId", res.SeriesID),
		log.Int("races", len(res.Races)))
	return nil
}

// Import stores the scoring system of the series (including its parent),
// the series, its races and results within one transaction.
func Import(ctx context.Context, pool *pgxpool.Pool, f *seriesfile.File) (*Result, error) {
	system, parent, err := f.System()
	if err != nil {
		return nil, err
	}
	ret := &Result{Systems: map[int]int{}, Races: map[int]int{}}
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if parent != nil {
			if err := storeSystem(ctx, tx, parent, ret); err != nil {
				return err
			}
		}
		if err := storeSystem(ctx, tx, system, ret); err != nil {
			return err
		}
		series := f.Input.Series
		series.ScoringSystemID = ret.Systems[system.ID]
		if ret.SeriesID, err = seriesrepos.Create(ctx, tx, &series); err != nil {
			return err
		}
		for i := range f.Input.Races {
			race := f.Input.Races[i]
			race.SeriesID = ret.SeriesID
			id, err := seriesrepos.CreateRace(ctx, tx, &race)
			if err != nil {
				return err
			}
			ret.Races[race.ID] = id
		}
		for i := range f.Input.Results {
			row := f.Input.Results[i]
			row.RaceID = ret.Races[row.RaceID]
			if _, err := seriesrepos.UpsertResult(ctx, tx, &row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func storeSystem(ctx context.Context, tx pgx.Tx, s *model.ScoringSystem, res *Result) error {
	toStore := *s
	if s.ParentID != nil {
		parentID := res.Systems[*s.ParentID]
		toStore.ParentID = &parentID
	}
	id, err := ssrepos.Create(ctx, tx, &toStore)
	if err != nil {
		return err
	}
	res.Systems[s.ID] = id
	return nil
}

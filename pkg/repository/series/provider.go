package series

import (
	"context"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository"
)

// Provider supplies series snapshots to the scoring service
type Provider struct {
	conn repository.Querier
}

func NewProvider(conn repository.Querier) *Provider {
	return &Provider{conn: conn}
}

func (p *Provider) LoadSeriesInput(ctx context.Context, seriesID int) (*model.SeriesInput, error) {
	return LoadSeriesInput(ctx, p.conn, seriesID)
}

func (p *Provider) SeriesIDsByScoringSystem(ctx context.Context, systemID int) ([]int, error) {
	return LoadIDsByScoringSystem(ctx, p.conn, systemID)
}

func (p *Provider) UpsertResult(ctx context.Context, row *model.RaceResultRow) (int, error) {
	return UpsertResult(ctx, p.conn, row)
}

func (p *Provider) DeleteResult(ctx context.Context, raceID, competitorID int) (int, error) {
	return DeleteResult(ctx, p.conn, raceID, competitorID)
}

func (p *Provider) UpdateRaceState(ctx context.Context, raceID int, state model.RaceState) (int, error) {
	return UpdateRaceState(ctx, p.conn, raceID, state)
}

package scoringsystem

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository"
)

// Provider loads scoring systems for the scoring service and applies
// administrative changes, each in its own transaction.
type Provider struct {
	conn repository.TxQuerier
}

func NewProvider(conn repository.TxQuerier) *Provider {
	return &Provider{conn: conn}
}

func (p *Provider) LoadScoringSystem(ctx context.Context, id int) (*model.ScoringSystem, error) {
	return LoadByID(ctx, p.conn, id)
}

func (p *Provider) UpdateScoringSystem(ctx context.Context, system *model.ScoringSystem) error {
	return pgx.BeginFunc(ctx, p.conn, func(tx pgx.Tx) error {
		return Update(ctx, tx, system)
	})
}

func (p *Provider) UpsertCode(ctx context.Context, systemID int, code *model.ScoreCode) error {
	return pgx.BeginFunc(ctx, p.conn, func(tx pgx.Tx) error {
		return UpsertCode(ctx, tx, systemID, code)
	})
}

func (p *Provider) DeleteCode(ctx context.Context, systemID int, name string) error {
	return pgx.BeginFunc(ctx, p.conn, func(tx pgx.Tx) error {
		return DeleteCode(ctx, tx, systemID, name)
	})
}

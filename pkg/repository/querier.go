package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoData = errors.New("no data found")

//nolint:lll // ok for interface
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxQuerier is able to start a (nested) transaction
type TxQuerier interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ Querier   = (*pgx.Conn)(nil)
	_ Querier   = (*pgxpool.Pool)(nil)
	_ Querier   = pgx.Tx(nil)
	_ TxQuerier = (*pgxpool.Pool)(nil)
	_ TxQuerier = pgx.Tx(nil)
)

// MapNoRows translates pgx.ErrNoRows into ErrNoData
func MapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoData
	}
	return err
}

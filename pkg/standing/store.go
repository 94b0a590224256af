// Package standing holds the results cache for computed series standings.
//
// Each series has at most one current result. Publishing a new result swaps
// the current reference in one step, the previous result is kept as history.
// Invalidation only flags the series as stale, the last current result stays
// readable until a new one is published.
package standing

import (
	"context"
	"errors"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

var ErrNoCurrent = errors.New("no current standing")

type Store interface {
	// GetCurrent returns ErrNoCurrent if nothing was published yet
	GetCurrent(ctx context.Context, seriesID int) (*model.CachedResult, error)
	// Publish stores payload as the new current result and clears the stale flag
	Publish(ctx context.Context, seriesID int, payload *model.SeriesStanding) (*model.CachedResult, error)
	// Invalidate is idempotent
	Invalidate(ctx context.Context, seriesID int) error
	IsStale(ctx context.Context, seriesID int) (bool, error)
	// History returns previously current results, newest first
	History(ctx context.Context, seriesID, limit int) ([]*model.CachedResult, error)
}

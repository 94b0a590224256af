//nolint:funlen,errcheck // ok for tests
package scoring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
	"github.com/mpapenbr/regatta-scoring-go/pkg/standing"
)

type fakeProvider struct {
	mu      sync.Mutex
	inputs  map[int]*model.SeriesInput
	systems map[int]*model.ScoringSystem
	loads   atomic.Int32
	sysLoad atomic.Int32
	// if set, LoadSeriesInput signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func (f *fakeProvider) LoadSeriesInput(ctx context.Context, seriesID int) (*model.SeriesInput, error) {
	n := f.loads.Add(1)
	if f.release != nil && n == 1 {
		close(f.started)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.inputs[seriesID]
	if !ok {
		return nil, errors.New("unknown series")
	}
	cp := *in
	cp.Results = append([]model.RaceResultRow(nil), in.Results...)
	return &cp, nil
}

func (f *fakeProvider) SeriesIDsByScoringSystem(ctx context.Context, systemID int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]int, 0)
	for id, in := range f.inputs {
		if in.Series.ScoringSystemID == systemID {
			ret = append(ret, id)
		}
	}
	return ret, nil
}

func (f *fakeProvider) LoadScoringSystem(ctx context.Context, id int) (*model.ScoringSystem, error) {
	f.sysLoad.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.systems[id]
	if !ok {
		return nil, errors.New("unknown system")
	}
	return s, nil
}

func (f *fakeProvider) setResults(seriesID int, rows ...model.RaceResultRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[seriesID].Results = rows
}

func ptr[T any](v T) *T { return &v }

func placed(race, comp, p int) model.RaceResultRow {
	return model.RaceResultRow{RaceID: race, CompetitorID: comp, Place: ptr(p)}
}

func newFake() *fakeProvider {
	races := []model.Race{
		{ID: 1, Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), State: model.RaceStateRaced},
		{ID: 2, Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), State: model.RaceStateRaced},
	}
	return &fakeProvider{
		inputs: map[int]*model.SeriesInput{
			1: {
				Series:  model.Series{ID: 1, ScoringSystemID: 10},
				Races:   races,
				Results: []model.RaceResultRow{placed(1, 1, 1), placed(1, 2, 2), placed(2, 1, 2), placed(2, 2, 1)},
			},
			2: {
				Series:  model.Series{ID: 2, ScoringSystemID: 11},
				Races:   races,
				Results: []model.RaceResultRow{placed(1, 1, 1), {RaceID: 2, CompetitorID: 1, Code: "DNF"}},
			},
		},
		systems: map[int]*model.ScoringSystem{
			1: {ID: 1, Codes: []model.ScoreCode{
				{Name: "DNF", Formula: model.FormulaSeriesEntrantsPlus, Offset: decimal.NewFromInt(1), Discardable: true},
			}},
			10: {ID: 10, ParentID: ptr(1)},
			11: {ID: 11, Codes: []model.ScoreCode{
				{Name: "DNF", Formula: model.FormulaFinishersPlus, Offset: decimal.NewFromInt(1), Discardable: true},
			}},
		},
	}
}

func newTestService(f *fakeProvider) *Service {
	return NewService(
		WithSeriesProvider(f),
		WithScoringSystemProvider(f, time.Minute),
		WithStore(standing.NewMemoryStore()),
	)
}

func TestStandingComputesOnceUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	s := newTestService(f)

	state, err := s.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StandingStale, state)

	first, err := s.Standing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.SeriesID)
	assert.Len(t, first.Payload.Competitors, 2)

	again, err := s.Standing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int32(1), f.loads.Load())

	state, _ = s.State(ctx, 1)
	assert.Equal(t, model.StandingCurrent, state)

	require.NoError(t, s.Invalidate(ctx, 1))
	require.NoError(t, s.Invalidate(ctx, 1))
	state, _ = s.State(ctx, 1)
	assert.Equal(t, model.StandingStale, state)

	third, err := s.Standing(ctx, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, int32(2), f.loads.Load())

	hist, err := s.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, first.ID, hist[0].ID)
}

func TestFailureKeepsPreviousResult(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	s := newTestService(f)

	good, err := s.Recompute(ctx, 1)
	require.NoError(t, err)

	f.setResults(1, placed(1, 1, 1), model.RaceResultRow{RaceID: 1, CompetitorID: 2, Code: "XYZ"})
	require.NoError(t, s.Invalidate(ctx, 1))
	_, err = s.Standing(ctx, 1)
	require.ErrorIs(t, err, util.ErrUnknownCode)
	details := util.ResolutionErrors(err)
	require.Len(t, details, 1)
	assert.Equal(t, "XYZ", details[0].Code)

	state, _ := s.State(ctx, 1)
	assert.Equal(t, model.StandingStale, state)
	cur, err := s.store.GetCurrent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, good.ID, cur.ID)
}

func TestRecomputeSingleFlight(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	f.started = make(chan struct{})
	f.release = make(chan struct{})
	s := newTestService(f)

	var wg sync.WaitGroup
	results := make([]*model.CachedResult, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.Recompute(ctx, 1)
	}()
	<-f.started
	state, _ := s.State(ctx, 1)
	assert.Equal(t, model.StandingComputing, state)

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Recompute(ctx, 1)
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.loads.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].ID, r.ID)
	}
}

func TestInvalidateDuringComputationCoalesces(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	f.started = make(chan struct{})
	f.release = make(chan struct{})
	s := newTestService(f)

	done := make(chan *model.CachedResult)
	go func() {
		r, _ := s.Recompute(ctx, 1)
		done <- r
	}()
	<-f.started
	// competitor 2 now wins race 1 as well
	f.setResults(1, placed(1, 1, 2), placed(1, 2, 1), placed(2, 1, 2), placed(2, 2, 1))
	require.NoError(t, s.Invalidate(ctx, 1))
	close(f.release)

	r := <-done
	require.NotNil(t, r)
	assert.Equal(t, int32(2), f.loads.Load())
	assert.Equal(t, 2, r.Payload.Competitors[0].CompetitorID)
	state, _ := s.State(ctx, 1)
	assert.Equal(t, model.StandingCurrent, state)
}

func TestRecomputeAll(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	s := newTestService(f)

	err := s.RecomputeAll(ctx, []int{1, 2, 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "series 99")

	for _, id := range []int{1, 2} {
		state, _ := s.State(ctx, id)
		assert.Equal(t, model.StandingCurrent, state, "series %d", id)
	}
	cur, err := s.store.GetCurrent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.SeriesID)
}

func TestInvalidateScoringSystem(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	s := newTestService(f)

	_, err := s.Recompute(ctx, 1)
	require.NoError(t, err)
	loads := f.sysLoad.Load()

	ids, err := s.InvalidateScoringSystem(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)
	state, _ := s.State(ctx, 1)
	assert.Equal(t, model.StandingStale, state)

	_, err = s.Standing(ctx, 1)
	require.NoError(t, err)
	// system 10 reloaded, parent still cached
	assert.Equal(t, loads+1, f.sysLoad.Load())
}

func TestPublishHook(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	var got []*model.CachedResult
	s := NewService(
		WithSeriesProvider(f),
		WithScoringSystemProvider(f, time.Minute),
		WithPublishHook(func(_ context.Context, r *model.CachedResult) {
			got = append(got, r)
		}),
	)
	r, err := s.Recompute(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)
}

func TestNotConfigured(t *testing.T) {
	s := NewService()
	_, err := s.Recompute(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

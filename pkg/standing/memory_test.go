package standing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.GetCurrent(ctx, 1)
	assert.ErrorIs(t, err, ErrNoCurrent)
	stale, err := m.IsStale(ctx, 1)
	require.NoError(t, err)
	assert.True(t, stale)

	first, err := m.Publish(ctx, 1, &model.SeriesStanding{SeriesID: 1, RacesCounted: 1})
	require.NoError(t, err)
	assert.True(t, first.IsCurrent)
	stale, _ = m.IsStale(ctx, 1)
	assert.False(t, stale)

	// invalidate is idempotent and keeps the last result readable
	require.NoError(t, m.Invalidate(ctx, 1))
	require.NoError(t, m.Invalidate(ctx, 1))
	stale, _ = m.IsStale(ctx, 1)
	assert.True(t, stale)
	cur, err := m.GetCurrent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, cur.ID)

	second, err := m.Publish(ctx, 1, &model.SeriesStanding{SeriesID: 1, RacesCounted: 2})
	require.NoError(t, err)
	cur, _ = m.GetCurrent(ctx, 1)
	assert.Equal(t, second.ID, cur.ID)
	assert.NotEqual(t, first.ID, second.ID)

	hist, err := m.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, first.ID, hist[0].ID)
	assert.False(t, hist[0].IsCurrent)
	assert.True(t, first.IsCurrent, "published result must not be modified")

	// other series are independent
	_, err = m.GetCurrent(ctx, 2)
	assert.ErrorIs(t, err, ErrNoCurrent)
}

func TestMemoryStoreHistoryLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(WithMaxHistory(2))
	for i := 0; i < 5; i++ {
		_, err := m.Publish(ctx, 1, &model.SeriesStanding{RacesCounted: i})
		require.NoError(t, err)
	}
	hist, _ := m.History(ctx, 1, 0)
	require.Len(t, hist, 2)
	assert.Equal(t, 3, hist[0].Payload.RacesCounted)
	hist, _ = m.History(ctx, 1, 1)
	assert.Len(t, hist, 1)
}

func TestMemoryStoreConcurrentPublish(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Publish(ctx, 1, &model.SeriesStanding{RacesCounted: i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	cur, err := m.GetCurrent(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cur.IsCurrent)
	hist, _ := m.History(ctx, 1, 0)
	assert.Len(t, hist, 10)
	for _, h := range hist {
		assert.False(t, h.IsCurrent)
		assert.NotEqual(t, cur.ID, h.ID)
	}
}

package loadercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/regatta-scoring-go/pkg/utils/cache"
)

type counter struct {
	calls int
}

func (c *counter) load(_ context.Context, key int) (*string, error) {
	c.calls++
	if key < 0 {
		return nil, errors.New("negative key")
	}
	v := "value"
	return &v, nil
}

func TestGetUsesLoaderOnce(t *testing.T) {
	cnt := &counter{}
	c := New(WithLoader[int, string](cnt.load))
	ctx := context.Background()

	v, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "value", *v)
	_, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt.calls)

	c.Invalidate(ctx, 1)
	_, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, cnt.calls)

	assert.Equal(t, 1, c.Len())
	c.InvalidateAll(ctx)
	assert.Equal(t, 0, c.Len())
	_, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, cnt.calls)
}

func TestLoaderError(t *testing.T) {
	cnt := &counter{}
	c := New(WithLoader[int, string](cnt.load))
	_, err := c.Get(context.Background(), -1)
	assert.Error(t, err)
	_, err = c.Get(context.Background(), -1)
	assert.Error(t, err)
	assert.Equal(t, 2, cnt.calls, "errors are not cached")
}

func TestNoLoader(t *testing.T) {
	c := New[int, string]()
	_, err := c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	v := "set"
	c.Set(context.Background(), 1, &v)
	got, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "set", *got)
}

func TestExpiration(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cnt := &counter{}
	c := New(
		WithLoader[int, string](cnt.load),
		WithExpiration[int, string](time.Minute),
		WithClock[int, string](func() time.Time { return now }),
	)
	ctx := context.Background()
	_, _ = c.Get(ctx, 1)
	now = now.Add(30 * time.Second)
	_, _ = c.Get(ctx, 1)
	assert.Equal(t, 1, cnt.calls)
	now = now.Add(time.Minute)
	_, _ = c.Get(ctx, 1)
	assert.Equal(t, 2, cnt.calls)
}

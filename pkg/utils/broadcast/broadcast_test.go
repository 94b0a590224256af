//nolint:errcheck // ok for tests
package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for message")
	}
	var zero T
	return zero
}

func TestBroadcastToAllListeners(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer[int]("test", source)
	defer b.Close()

	l1 := b.Subscribe()
	l2 := b.Subscribe()
	go func() { source <- 42 }()

	assert.Equal(t, 42, receive(t, l1))
	assert.Equal(t, 42, receive(t, l2))
}

func TestCancelSubscriptionClosesChannel(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer[int]("test", source)
	defer b.Close()

	l := b.Subscribe()
	b.CancelSubscription(l)
	_, ok := <-l
	assert.False(t, ok)
}

func TestSlowListenerIsSkipped(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer[int]("test", source,
		WithSendTimeout[int](10*time.Millisecond))
	defer b.Close()

	slow := b.Subscribe()
	fast := b.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, v := range []int{1, 2} {
			source <- v
		}
	}()
	assert.Equal(t, 1, receive(t, fast))
	assert.Equal(t, 2, receive(t, fast))
	<-done
	// slow did not read in time and missed both messages
	select {
	case v := <-slow:
		assert.Failf(t, "unexpected message", "%d", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestCloseSourceClosesListeners(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer[int]("test", source)
	l := b.Subscribe()
	close(source)
	_, ok := <-l
	assert.False(t, ok)
	b.Close()
	// subscriptions after close are closed immediately
	_, ok = <-b.Subscribe()
	assert.False(t, ok)
}

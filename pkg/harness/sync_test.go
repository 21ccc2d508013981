package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wsmock/pkg/logging"
)

func TestSynchronizer_RunsInOrder(t *testing.T) {
	s := NewSynchronizer(logging.NewTestLogger(t))

	var mu sync.Mutex
	var got []int
	for i := range 50 {
		s.Defer(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, s.Settle(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSynchronizer_NestedDeferRunsAfterCurrent(t *testing.T) {
	s := NewSynchronizer(nil)

	var order []string
	s.Defer(func() {
		s.Defer(func() { order = append(order, "inner") })
		order = append(order, "outer")
	})
	s.Defer(func() { order = append(order, "second") })

	require.NoError(t, s.Settle(context.Background()))
	assert.Equal(t, []string{"outer", "second", "inner"}, order)
}

func TestSynchronizer_DoesNotRunOnCallerStack(t *testing.T) {
	s := NewSynchronizer(nil)

	ran := make(chan struct{})
	release := make(chan struct{})
	s.Defer(func() {
		<-release
		close(ran)
	})

	// Defer returned while the callback is still blocked.
	close(release)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

func TestSynchronizer_RecoversPanics(t *testing.T) {
	s := NewSynchronizer(logging.NewTestLogger(t))

	ran := false
	s.Defer(func() { panic("boom") })
	s.Defer(func() { ran = true })

	require.NoError(t, s.Settle(context.Background()))
	assert.True(t, ran)
	assert.Zero(t, s.Pending())
}

func TestSynchronizer_SettleHonorsContext(t *testing.T) {
	s := NewSynchronizer(nil)

	release := make(chan struct{})
	defer close(release)
	s.Defer(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Settle(ctx), context.DeadlineExceeded)
}

func TestSynchronizer_SettleWhenIdle(t *testing.T) {
	s := NewSynchronizer(nil)
	require.NoError(t, s.Settle(context.Background()))
}

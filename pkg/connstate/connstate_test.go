package connstate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_InitialState(t *testing.T) {
	m := New()
	assert.Equal(t, Disconnected, m.State())
	assert.Empty(t, m.History())

	_, ok := m.Last()
	assert.False(t, ok)
}

func TestManager_SetStateAppendsHistory(t *testing.T) {
	m := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	m.SetState(Connecting)
	m.SetState(Connected)
	m.SetState(Connected)

	assert.Equal(t, Connected, m.State())
	assert.True(t, m.Is(Connected))

	h := m.History()
	require.Len(t, h, 3)
	assert.Equal(t, []State{Connecting, Connected, Connected}, []State{h[0].State, h[1].State, h[2].State})
	assert.True(t, h[0].Timestamp.Before(h[1].Timestamp))

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, h[2], last)
}

func TestManager_HistoryIsACopy(t *testing.T) {
	m := New()
	m.SetState(Connecting)

	h := m.History()
	h[0].State = Error
	_ = append(h, Transition{State: Reconnecting})

	fresh := m.History()
	require.Len(t, fresh, 1)
	assert.Equal(t, Connecting, fresh[0].State)
}

func TestManager_ClearHistoryKeepsState(t *testing.T) {
	m := New()
	m.SetState(Connecting)
	m.SetState(Connected)

	m.ClearHistory()

	assert.Empty(t, m.History())
	assert.Equal(t, Connected, m.State())
}

func TestManager_Reset(t *testing.T) {
	m := New()
	m.SetState(Error)

	m.Reset()

	assert.Empty(t, m.History())
	assert.Equal(t, Disconnected, m.State())
}

func TestManager_ConcurrentSetState(t *testing.T) {
	m := New()
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.SetState(Connected)
			} else {
				m.SetState(Reconnecting)
			}
			_ = m.State()
			_ = m.History()
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.History(), n)
}

func TestState_Valid(t *testing.T) {
	for _, s := range []State{Connecting, Connected, Disconnected, Reconnecting, Error} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, State("open").Valid())
}

package buffer

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultMaxSize, New(0).MaxSize())
	assert.Equal(t, DefaultMaxSize, New(-5).MaxSize())
	assert.Equal(t, 3, New(3).MaxSize())
}

func TestBuffer_AddPreservesOrder(t *testing.T) {
	b := New(10)
	require.True(t, b.AddSent([]byte("one")))
	require.True(t, b.AddReceived([]byte("two")))
	require.True(t, b.AddSent([]byte("three")))

	msgs := b.Peek()
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Text())
	assert.Equal(t, Received, msgs[1].Direction)
	assert.Equal(t, "three", msgs[2].Text())
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestBuffer_AddCopiesPayload(t *testing.T) {
	b := New(10)
	data := []byte("abc")
	b.AddSent(data)
	data[0] = 'X'

	assert.Equal(t, "abc", b.Peek()[0].Text())
}

func TestBuffer_FullReturnsFalse(t *testing.T) {
	b := New(2)
	assert.True(t, b.AddSent([]byte("1")))
	assert.True(t, b.AddSent([]byte("2")))
	assert.False(t, b.AddSent([]byte("3")))
	assert.Equal(t, 2, b.Size())

	err := b.Push(Message{Direction: Sent, Data: []byte("4")})
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, 2, b.Size())
}

func TestBuffer_FlushDrains(t *testing.T) {
	b := New(10)
	b.AddSent([]byte("a"))
	b.AddReceived([]byte("b"))

	first := b.Flush()
	require.Len(t, first, 2)
	assert.Equal(t, 0, b.Size())

	second := b.Flush()
	assert.NotNil(t, second)
	assert.Empty(t, second)
}

func TestBuffer_FlushFreesCapacity(t *testing.T) {
	b := New(1)
	require.True(t, b.AddSent([]byte("a")))
	require.False(t, b.AddSent([]byte("b")))

	b.Flush()
	assert.True(t, b.AddSent([]byte("b")))
}

func TestBuffer_FilteredAccessorsDoNotMutate(t *testing.T) {
	b := New(10)
	b.AddSent([]byte("s1"))
	b.AddReceived([]byte("r1"))
	b.AddReceived([]byte("r2"))

	assert.Len(t, b.Sent(), 1)
	assert.Len(t, b.Received(), 2)
	assert.Equal(t, 2, b.CountReceived())
	assert.Equal(t, 1, b.CountSent())
	assert.Equal(t, 3, b.Size())

	got := b.Received()
	got[0].Data[0] = 'X'
	assert.Equal(t, "r1", b.Received()[0].Text())
}

func TestBuffer_Clear(t *testing.T) {
	b := New(10)
	b.AddSent([]byte("a"))
	b.Clear()
	assert.Equal(t, 0, b.Size())
}

func TestBuffer_ConcurrentAddNeverExceedsMax(t *testing.T) {
	b := New(50)
	const n = 200

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if b.AddSent([]byte(strconv.Itoa(i))) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, accepted)
	assert.Equal(t, 50, b.Size())
}

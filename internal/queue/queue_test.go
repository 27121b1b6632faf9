package queue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinQueueOrdering(t *testing.T) {
	q := NewMin(8)
	for _, r := range []float32{0.5, 0.1, 0.9, 0.3} {
		q.Push(Item{Row: uint32(r * 10), Rank: r})
	}

	require.Equal(t, 4, q.Len())

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, float32(0.1), top.Rank)

	var got []float32
	for q.Len() > 0 {
		it, ok := q.Pop()
		require.True(t, ok)
		got = append(got, it.Rank)
	}
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
}

func TestMaxQueueOrdering(t *testing.T) {
	q := NewMax(8)
	for _, r := range []float32{0.5, 0.1, 0.9, 0.3} {
		q.Push(Item{Rank: r})
	}

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, float32(0.9), top.Rank)

	min, ok := q.Min()
	require.True(t, ok)
	assert.Equal(t, float32(0.1), min.Rank)
}

func TestPushBounded(t *testing.T) {
	q := NewMax(4)
	ranks := []float32{0.9, 0.5, 0.7, 0.3}
	for _, r := range ranks {
		assert.True(t, q.PushBounded(Item{Rank: r}, 3))
	}
	// 0.9 was evicted by 0.3; a worse item is rejected outright.
	assert.False(t, q.PushBounded(Item{Rank: 0.8}, 3))
	assert.Equal(t, 3, q.Len())

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, float32(0.7), top.Rank)
}

func TestEmptyQueue(t *testing.T) {
	q := NewMin(0)

	_, ok := q.Top()
	assert.False(t, ok)
	_, ok = q.Pop()
	assert.False(t, ok)
	_, ok = q.Min()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	q := NewMin(4)
	q.Push(Item{Rank: 1})
	q.Reset()
	assert.Zero(t, q.Len())
}

func TestHeapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := NewMin(128)
	for i := 0; i < 1000; i++ {
		q.Push(Item{Row: uint32(i), Rank: rng.Float32()})
	}

	prev := float32(-1)
	for q.Len() > 0 {
		it, _ := q.Pop()
		assert.GreaterOrEqual(t, it.Rank, prev)
		prev = it.Rank
	}
}

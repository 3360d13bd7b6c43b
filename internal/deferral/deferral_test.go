package deferral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_FIFOOrder_S3(t *testing.T) {
	q := NewQueue(10)
	for _, f := range []uint64{5, 6, 2, 9} {
		require.True(t, q.Push(f))
	}

	var popped []uint64
	for {
		f, ok := q.Pop()
		if !ok {
			break
		}
		popped = append(popped, f)
	}
	assert.Equal(t, []uint64{5, 6, 2, 9}, popped)
}

func Test_ClampsAtCapacity(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.False(t, q.Push(3), "push beyond capacity must be clamped, not panic")
	assert.True(t, q.Full())
}

func Test_FIFOOrder_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		q := NewQueue(n + 1)
		ids := rapid.SliceOfN(rapid.Uint64Range(0, 1000), n, n).Draw(t, "ids")

		for _, id := range ids {
			q.Push(id)
		}
		for _, want := range ids {
			got, ok := q.Pop()
			require.True(t, ok)
			require.Equal(t, want, got)
		}
		_, ok := q.Pop()
		require.False(t, ok)
	})
}

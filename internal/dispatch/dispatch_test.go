package dispatch

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeUnits(n int) []int {
	units := make([]int, n)
	for i := range units {
		units[i] = i
	}
	return units
}

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 500, ChunkSize(100000, 8))
	assert.Equal(t, 13, ChunkSize(100, 8))
	assert.Equal(t, 1, ChunkSize(0, 4))
	assert.Equal(t, 11, ChunkSize(10, 0))
}

func TestChunks(t *testing.T) {
	chunks := Chunks(makeUnits(10), 4)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, chunks[0])
	assert.Equal(t, []int{8, 9}, chunks[2])

	assert.Empty(t, Chunks([]int{}, 4))
}

func TestDispatch_OrderPreservation(t *testing.T) {
	p := NewPool(8)
	defer p.Close()

	units := makeUnits(5000)
	got, err := Dispatch(p, units, func(chunk []int) ([]string, error) {
		// Finish chunks out of order.
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
		out := make([]string, len(chunk))
		for i, u := range chunk {
			out[i] = fmt.Sprint(u)
		}
		return out, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 5000)
	for i, s := range got {
		assert.Equal(t, fmt.Sprint(i), s, "result %d out of order", i)
	}
}

func TestDispatch_SingleWorker(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	got, err := Dispatch(p, makeUnits(50), func(chunk []int) ([]int, error) {
		out := make([]int, len(chunk))
		for i, u := range chunk {
			out[i] = u * 2
		}
		return out, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 50)
	assert.Equal(t, 98, got[49])
}

func TestDispatch_EmptyInput(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	calls := 0
	got, err := Dispatch(p, nil, func(chunk []int) ([]int, error) {
		calls++
		return chunk, nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, calls)
}

func TestDispatch_ErrorWaitsForAllChunks(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var finished atomic.Int32
	boom := errors.New("boom")
	_, err := Dispatch(p, makeUnits(100), func(chunk []int) ([]int, error) {
		defer finished.Add(1)
		if chunk[0] == 0 {
			return nil, boom
		}
		time.Sleep(time.Millisecond)
		return chunk, nil
	})
	require.ErrorIs(t, err, boom)

	n := len(Chunks(makeUnits(100), ChunkSize(100, 4)))
	assert.Equal(t, int32(n), finished.Load())
}

func TestDispatch_EarliestChunkErrorWins(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	first := errors.New("first chunk")
	_, err := Dispatch(p, makeUnits(100), func(chunk []int) ([]int, error) {
		if chunk[0] == 0 {
			// Fails after every later chunk has already failed.
			time.Sleep(20 * time.Millisecond)
			return nil, first
		}
		return nil, fmt.Errorf("chunk at %d", chunk[0])
	})
	require.ErrorIs(t, err, first)
}

func TestDispatch_PanicBecomesError(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	_, err := Dispatch(p, makeUnits(10), func(chunk []int) ([]int, error) {
		panic("bad chunk")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad chunk")
}

func TestDispatch_WrongResultCount(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	_, err := Dispatch(p, makeUnits(10), func(chunk []int) ([]int, error) {
		return chunk[:1], nil
	})
	assert.Error(t, err)
}

func TestPool_Close(t *testing.T) {
	p := NewPool(2)
	assert.Equal(t, 2, p.Size())
	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
	_, err := Dispatch(p, makeUnits(3), func(chunk []int) ([]int, error) { return chunk, nil })
	assert.ErrorIs(t, err, ErrClosed)
}

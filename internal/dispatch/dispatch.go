package dispatch

import "fmt"

// MaxChunkSize is the target number of units per chunk.
const MaxChunkSize = 500

// chunkResult holds the output of one chunk, tagged with its position.
type chunkResult[R any] struct {
	index   int
	results []R
	err     error
}

// ChunkSize returns the chunk length for n units on the given number of
// workers: MaxChunkSize, reduced to n/workers+1 when that is smaller so that
// small inputs still spread over every worker.
func ChunkSize(n, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	size := MaxChunkSize
	if per := n/workers + 1; per < size {
		size = per
	}
	return size
}

// Chunks splits units into contiguous chunks of at most size elements.
func Chunks[U any](units []U, size int) [][]U {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]U, 0, (len(units)+size-1)/size)
	for i := 0; i < len(units); i += size {
		end := min(i+size, len(units))
		chunks = append(chunks, units[i:end:end])
	}
	return chunks
}

// Dispatch applies fn to contiguous chunks of units on the pool and returns
// the concatenated results in input order. fn must return one result per
// unit. Dispatch blocks until every chunk has finished; if any chunk fails,
// the error of the earliest failing chunk is returned.
func Dispatch[U, R any](p *Pool, units []U, fn func([]U) ([]R, error)) ([]R, error) {
	if len(units) == 0 {
		return nil, nil
	}
	chunks := Chunks(units, ChunkSize(len(units), p.Size()))
	done := make(chan chunkResult[R], len(chunks))

	submitted := 0
	var submitErr error
	for i, chunk := range chunks {
		if submitErr = p.Submit(func() { done <- runChunk(i, chunk, fn) }); submitErr != nil {
			break
		}
		submitted++
	}

	// Chunks finish in any order; each lands in its own slot.
	slots := make([]chunkResult[R], submitted)
	for range submitted {
		r := <-done
		slots[r.index] = r
	}
	if submitErr != nil {
		return nil, submitErr
	}

	out := make([]R, 0, len(units))
	for _, r := range slots {
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, r.results...)
	}
	return out, nil
}

func runChunk[U, R any](i int, chunk []U, fn func([]U) ([]R, error)) (res chunkResult[R]) {
	res.index = i
	defer func() {
		if r := recover(); r != nil {
			res.results = nil
			res.err = fmt.Errorf("chunk %d: worker panic: %v", i, r)
		}
	}()
	out, err := fn(chunk)
	if err != nil {
		res.err = fmt.Errorf("chunk %d: %w", i, err)
		return res
	}
	if len(out) != len(chunk) {
		res.err = fmt.Errorf("chunk %d: got %d results for %d units", i, len(out), len(chunk))
		return res
	}
	res.results = out
	return res
}

// Package dispatch runs chunked work on a fixed-size worker pool and
// reassembles results in input order.
package dispatch

import (
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = errors.New("worker pool is closed")

// Pool is a fixed set of long-lived workers. It is created once, shared by
// every dispatch, and released with Close.
type Pool struct {
	size  int
	jobs  chan func()
	group errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers. If size is 0, runtime.NumCPU() is used.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size: size,
		jobs: make(chan func()),
	}
	for range size {
		p.group.Go(func() error {
			for job := range p.jobs {
				job()
			}
			return nil
		})
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit hands job to the next free worker, blocking until one accepts it.
func (p *Pool) Submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.jobs <- job
	return nil
}

// Close stops accepting work and waits for running jobs to finish.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	_ = p.group.Wait()
}

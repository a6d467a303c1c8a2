// Package pool runs CPU bound work on a bounded set of goroutines.
package pool

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrTornDown = errors.New("pool: torn down")

// Pool bounds the number of goroutines used by Parallelize and Search.
// The zero value is not usable; create one with NewPool.
type Pool struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool creates a Pool with count workers. count <= 0 uses runtime.NumCPU().
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{workers: count, ctx: ctx, cancel: cancel}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// TearDown cancels all running and future work submitted to the pool.
func (p *Pool) TearDown() {
	p.cancel()
}

// merged returns a context cancelled when either ctx or the pool is done.
func (p *Pool) merged(ctx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-p.ctx.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}

// Parallelize calls f(i) for every i in [0, count), running at most Workers()
// calls at once. It returns the first error encountered; remaining calls see a
// cancelled context.
func (p *Pool) Parallelize(ctx context.Context, count int, f func(ctx context.Context, i int) error) error {
	if p.ctx.Err() != nil {
		return ErrTornDown
	}
	ctx, cancel := p.merged(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)
	for i := 0; i < count; i++ {
		idx := i
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return f(gctx, idx)
		})
	}
	return group.Wait()
}

// Search runs f repeatedly on every worker until count non-nil results have
// been collected, and returns them.
func (p *Pool) Search(ctx context.Context, count int, f func() interface{}) ([]interface{}, error) {
	if p.ctx.Err() != nil {
		return nil, ErrTornDown
	}
	ctx, cancel := p.merged(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make([]interface{}, 0, count)
	)
	group, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.workers; w++ {
		group.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				r := f()
				if r == nil {
					continue
				}
				mu.Lock()
				if len(results) < count {
					results = append(results, r)
				}
				done := len(results) == count
				mu.Unlock()
				if done {
					cancel()
					return nil
				}
			}
		})
	}
	_ = group.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(results) < count {
		if p.ctx.Err() != nil {
			return nil, ErrTornDown
		}
		return nil, ctx.Err()
	}
	return results, nil
}

// LockedReader wraps an io.Reader so it can be shared between workers.
type LockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

// NewLockedReader wraps r.
func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{r: r}
}

func (r *LockedReader) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Read(buf)
}

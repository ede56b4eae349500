package crossval

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// forEachIndex calls body for every i in [0, n) using concurrent workers. The
// scheduler stops handing out indices after the first failure or when ctx is
// done; indices already running are left to finish. The error returned is the
// one with the lowest index, ignoring cancellations caused by another index
// failing. If ctx itself is done, ctx.Err() is returned. A panic in body is
// returned as an error wrapping ErrPanic.
func forEachIndex(ctx context.Context, n, concurrent int, body func(ctx context.Context, i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if concurrent <= 0 {
		concurrent = runtime.GOMAXPROCS(0)
	}
	if concurrent > n {
		concurrent = n
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan int)
	go func() {
		defer close(work)
		for i := 0; i < n; i++ {
			select {
			case work <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for w := 0; w < concurrent; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				// Checked between units of work, never inside one.
				if ctx.Err() != nil {
					continue
				}
				if err := call(ctx, i, body); err != nil {
					errs[i] = err
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	if err := parent.Err(); err != nil {
		return err
	}
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return err
	}
	return canceled
}

func call(ctx context.Context, i int, body func(ctx context.Context, i int) error) (err error) {
	defer recoverPanic(&err)
	return body(ctx, i)
}

// recoverPanic turns a recovered panic into an error wrapping ErrPanic.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = errors.Wrapf(ErrPanic, "%v", r)
	}
}

package classify

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pixelsense/pixelsense/internal/images"
	"github.com/pixelsense/pixelsense/internal/providers"
)

// Outcome is the terminal result for one dispatched image: either a
// judgment or an error record, never both.
type Outcome[T any] struct {
	Ref      images.ImageRef
	Judgment T
	Retries  int
	Err      *ErrorRecord
}

// Dispatcher streams classification outcomes from a bounded pool of
// concurrent provider calls.
type Dispatcher[T any] struct {
	results chan Outcome[T]

	once  sync.Once
	fatal error
}

// Results is the outcome stream. Emission order is completion order,
// not submission order. The channel is closed once every admitted item
// has a terminal outcome or the run was fatally canceled.
func (d *Dispatcher[T]) Results() <-chan Outcome[T] {
	return d.results
}

// Err reports the fatal error that canceled the run, if any. Only valid
// after Results is closed.
func (d *Dispatcher[T]) Err() error {
	return d.fatal
}

func (d *Dispatcher[T]) fail(err error, cancel context.CancelCauseFunc) {
	d.once.Do(func() {
		d.fatal = err
		cancel(err)
	})
}

// Dispatch classifies every ref through fn with at most concurrency
// calls in flight. Admission is a sliding window: as each call
// completes, its slot admits the next pending item. Retry handling is
// delegated to Do per item; an exhausted item becomes an ErrorRecord
// and the batch continues. An authentication failure cancels all
// in-flight and pending work and is surfaced through Err with no
// further outcomes emitted.
func Dispatch[T any](ctx context.Context, refs []images.ImageRef, concurrency int, cfg RetryConfig, fn func(ctx context.Context, ref images.ImageRef) (T, error)) *Dispatcher[T] {
	if concurrency < 1 {
		concurrency = 1
	}

	d := &Dispatcher[T]{results: make(chan Outcome[T])}
	runCtx, cancel := context.WithCancelCause(ctx)
	sem := semaphore.NewWeighted(int64(concurrency))

	go func() {
		var wg sync.WaitGroup
		for _, ref := range refs {
			if err := sem.Acquire(runCtx, 1); err != nil {
				// Canceled: stop admitting pending items.
				break
			}

			wg.Add(1)
			go func(ref images.ImageRef) {
				defer wg.Done()
				defer sem.Release(1)

				judgment, retries, err := Do(runCtx, cfg, func(callCtx context.Context) (T, error) {
					return fn(callCtx, ref)
				})

				if err != nil {
					if providers.IsAuth(err) {
						d.fail(err, cancel)
						return
					}
					if runCtx.Err() != nil {
						return
					}
					d.emit(runCtx, Outcome[T]{
						Ref:     ref,
						Retries: retries,
						Err: &ErrorRecord{
							Ref:     ref,
							Kind:    providers.KindOf(err),
							Message: err.Error(),
						},
					})
					return
				}

				if runCtx.Err() != nil {
					return
				}
				d.emit(runCtx, Outcome[T]{Ref: ref, Judgment: judgment, Retries: retries})
			}(ref)
		}

		wg.Wait()
		close(d.results)
		cancel(nil)
	}()

	return d
}

func (d *Dispatcher[T]) emit(ctx context.Context, out Outcome[T]) {
	select {
	case d.results <- out:
	case <-ctx.Done():
	}
}

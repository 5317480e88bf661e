package runner

import (
	"context"
	"sync"
)

// process runs fn over every item in items using workerCount goroutines,
// collecting results in item order. Ctx cancellation stops dispatch of
// further items; in-flight items still complete. Generalized from a
// worker-pool pattern used elsewhere in the pack for outermost-level
// parallelism across independent units of work — here, independent
// simulation runs instead of independent ingestion batches.
func process[T any, R any](ctx context.Context, workerCount int, items []T, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	if workerCount < 1 {
		workerCount = 1
	}

	type indexed struct {
		idx  int
		item T
	}
	work := make(chan indexed)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				results[job.idx] = fn(ctx, job.item)
			}
		}()
	}

	go func() {
		defer close(work)
		for i, item := range items {
			select {
			case <-ctx.Done():
				return
			case work <- indexed{idx: i, item: item}:
			}
		}
	}()

	wg.Wait()
	return results
}

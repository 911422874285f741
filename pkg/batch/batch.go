package batch

import (
	"context"
	"time"
)

// Item is one file in a batch run.
type Item struct {
	Name string
	Data []byte
}

// Result records the outcome for one item.
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Run processes items strictly in order, one at a time. An item's failure
// is recorded and never aborts its siblings. Cancellation is honored at
// the item boundary: once the context is done, remaining items fail with
// the context error without being started.
func Run(ctx context.Context, items []Item, fn func(ctx context.Context, item Item) error) []Result {
	results := make([]Result, 0, len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Name: item.Name, Err: err})
			continue
		}

		start := time.Now()
		err := fn(ctx, item)
		results = append(results, Result{
			Name:    item.Name,
			Err:     err,
			Elapsed: time.Since(start),
		})
	}

	return results
}

// Failed counts the results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

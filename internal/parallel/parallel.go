package parallel

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudify-cosmo/cfy-fetch/internal/errutil"
)

// Func is a function declaration used in parallel runs.
type Func func(ctx context.Context) error

type task struct {
	name string
	f    Func
}

// Group is a list of functions to run in parallel.
type Group []task

// AddFunc adds a function to the group to later be used in the parallel call.
// The name is prepended to the error message, if any.
func (g *Group) AddFunc(name string, f Func) {
	*g = append(*g, task{name, f})
}

// RunWaitAll will run all functions in parallel in separate goroutines and
// wait for every one of them to return. A failing function does not affect
// the others. The resulting error contains the errors from all functions that
// errored, in the order the functions were added, or nil if none errored.
func (g *Group) RunWaitAll(ctx context.Context) error {
	errs := make(errutil.Slice, len(*g))
	var wg sync.WaitGroup
	wg.Add(len(*g))
	for i, t := range *g {
		go func(i int, t task) {
			defer wg.Done()
			if err := t.f(ctx); err != nil {
				// Each goroutine writes only its own index.
				errs[i] = fmt.Errorf("%s: %w", t.name, err)
			}
		}(i, t)
	}
	wg.Wait()

	var result errutil.Slice
	result.Add(errs...)
	return result.Err()
}

// Package pvtest provides test helpers for running and checking
// pv.Root simulations: concurrent independent runs (proving no
// process-wide mutable state survives between them) and golden-trace
// comparison against a YAML fixture.
package pvtest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/shebanow/pseudo-verilog"
)

// Run is one independent simulation to execute: Build constructs a fresh
// Root (and its design tree) every time it is called, so each goroutine in
// RunConcurrent gets its own unshared instance.
type Run struct {
	Name  string
	Build func() *pv.Root
}

// Result is what RunConcurrent reports back for one Run.
type Result struct {
	Name     string
	ExitCode pv.ExitCode
	Root     *pv.Root
}

// RunConcurrent builds and simulates every Run concurrently with
// errgroup, then returns all results in the same order they were given.
// Because each Root is independently constructed inside its own
// goroutine, a successful run here is evidence against reintroduced
// process-wide mutable state (no run can observe another's clock,
// run queue or changed-sets).
func RunConcurrent(ctx context.Context, runs []Run) ([]Result, error) {
	results := make([]Result, len(runs))
	g, ctx := errgroup.WithContext(ctx)
	for i, run := range runs {
		i, run := i, run
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			root := run.Build()
			code := root.Simulate()
			results[i] = Result{Name: run.Name, ExitCode: code, Root: root}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

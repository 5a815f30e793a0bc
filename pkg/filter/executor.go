package filter

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultRowsPerTask is the band height Parallel uses when none is set.
const DefaultRowsPerTask = 32

// Executor runs band over disjoint row ranges [y0, y1) that together cover
// [0, rows). band only reads shared input and writes its own rows, so an
// executor may run bands concurrently. Run returns once every band is done.
type Executor interface {
	Run(rows int, band func(y0, y1 int))
}

// Sequential evaluates all rows in one band on the calling goroutine.
type Sequential struct{}

// Run implements Executor.
func (Sequential) Run(rows int, band func(y0, y1 int)) {
	if rows <= 0 {
		return
	}
	band(0, rows)
}

// Parallel splits the rows into bands of RowsPerTask and evaluates them on
// at most Workers goroutines. Zero values pick GOMAXPROCS workers and
// DefaultRowsPerTask rows.
type Parallel struct {
	Workers     int
	RowsPerTask int
}

// Run implements Executor.
func (p Parallel) Run(rows int, band func(y0, y1 int)) {
	if rows <= 0 {
		return
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := p.RowsPerTask
	if chunk <= 0 {
		chunk = DefaultRowsPerTask
	}

	// Not worth a goroutine
	if workers == 1 || rows <= chunk {
		band(0, rows)
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for y0 := 0; y0 < rows; y0 += chunk {
		start, end := y0, min(y0+chunk, rows)
		g.Go(func() error {
			band(start, end)
			return nil
		})
	}
	_ = g.Wait()
}

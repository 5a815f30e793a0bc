package filter

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallel_CoversEveryRowOnce(t *testing.T) {
	for _, p := range []Parallel{
		{},
		{Workers: 1},
		{Workers: 3, RowsPerTask: 1},
		{Workers: 4, RowsPerTask: 7},
		{Workers: 64, RowsPerTask: 2},
	} {
		const rows = 101
		var hits [rows]atomic.Int32
		p.Run(rows, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				hits[y].Add(1)
			}
		})
		for y := range hits {
			assert.Equal(t, int32(1), hits[y].Load(), "%+v row %d", p, y)
		}
	}
}

func TestExecutors_NoRows(t *testing.T) {
	called := false
	Sequential{}.Run(0, func(int, int) { called = true })
	Parallel{Workers: 4}.Run(0, func(int, int) { called = true })
	assert.False(t, called)
}

func TestParallel_MatchesSequential(t *testing.T) {
	img := noiseImage(37, 29, 10)
	gauss, err := GaussianSpec(5, 1.4)
	require.NoError(t, err)
	specs := []Spec{gauss, SobelSpec(), MedianSpec(5)}
	exec := Parallel{Workers: 4, RowsPerTask: 3}

	for _, s := range specs {
		for _, b := range []Boundary{Zero, Reflect} {
			seq, err := Apply(img, s, WithBoundary(b))
			require.NoError(t, err)
			par, err := Apply(img, s, WithBoundary(b), WithExecutor(exec))
			require.NoError(t, err)
			assert.True(t, par.Equal(seq), "%s with %s boundary", s, b)
		}
	}
}

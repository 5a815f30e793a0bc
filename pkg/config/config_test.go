package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-filters/pkg/filter"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	specs := make([]string, 0, len(cfg.Filters))
	for _, f := range cfg.Filters {
		s, err := f.Spec()
		require.NoError(t, err)
		specs = append(specs, s.String())
	}
	assert.Equal(t, []string{"sobel", "gaussian(5, σ=1)", "median(5)"}, specs)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
inputs: [a.png, b.jpg]
output_dir: out
backends: [parallel]
workers: 3
boundary: reflect
repeat: 5
filters:
  - name: convolve
    size: 3
    weights: [0, 0, 0, 0, 1, 0, 0, 0, 0]
  - name: median
    window: 7
redis:
  addr: redis:6379
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"a.png", "b.jpg"}, cfg.Inputs)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, []string{BackendParallel}, cfg.Backends)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 5, cfg.Repeat)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "flt", cfg.Redis.Prefix)
	require.Len(t, cfg.Filters, 2)

	b, err := cfg.BoundaryMode()
	require.NoError(t, err)
	assert.Equal(t, filter.Reflect, b)

	s, err := cfg.Filters[0].Spec()
	require.NoError(t, err)
	assert.Equal(t, filter.OpConvolve, s.Op)
	assert.Equal(t, 1.0, s.Kernel.At(1, 1))

	exec, err := cfg.Executor(BackendParallel)
	require.NoError(t, err)
	assert.Equal(t, filter.Parallel{Workers: 3, RowsPerTask: filter.DefaultRowsPerTask}, exec)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "workers: [1, 2"))
	assert.Error(t, err)
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Backends = []string{"gpu"}
	cfg.Repeat = 0
	cfg.Boundary = "torus"
	cfg.Filters = []FilterConfig{
		{Name: "gaussian", Size: 4, Sigma: 1},
		{Name: "median", Window: 0},
		{Name: "blur"},
		{Name: "convolve", Size: 3, Weights: []float64{1}},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{`"gpu"`, "repeat 0", `"torus"`, "filters[0]", "filters[1]", "filters[2]", "filters[3]"} {
		assert.Contains(t, msg, want)
	}
	assert.ErrorIs(t, err, filter.ErrInvalidParameter)

	_, err = cfg.Executor("gpu")
	assert.Error(t, err)
}

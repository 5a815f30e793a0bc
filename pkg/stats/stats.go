package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Record holds the timings of one filter run on one image with one backend.
type Record struct {
	Filter     string
	Variant    string
	Image      string
	Width      int
	Height     int
	KernelSize int
	Workers    int
	Durations  []time.Duration
	Timestamp  time.Time
}

// Summary condenses a Record's repetitions, in seconds.
type Summary struct {
	Runs   int
	Mean   float64
	StdDev float64
	Min    float64
	Total  float64
	// Megapixels per second at the mean time.
	Throughput float64
}

// Measure times fn and appends the duration to r.
func (r *Record) Measure(fn func() error) error {
	start := time.Now()
	err := fn()
	r.Durations = append(r.Durations, time.Since(start))
	return err
}

func (r Record) Summarize() Summary {
	if len(r.Durations) == 0 {
		return Summary{}
	}
	secs := make([]float64, len(r.Durations))
	for i, d := range r.Durations {
		secs[i] = d.Seconds()
	}

	s := Summary{
		Runs:  len(secs),
		Min:   floats.Min(secs),
		Total: floats.Sum(secs),
	}
	if len(secs) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(secs, nil)
	} else {
		s.Mean = secs[0]
	}
	if s.Mean > 0 {
		s.Throughput = float64(r.Width*r.Height) / 1e6 / s.Mean
	}
	return s
}

// WriteReport writes the plain-text results report.
func WriteReport(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ew := &errWriter{w: w}

	ew.printf("=== Image Filter Benchmark Results ===\n")
	ew.printf("Timestamp: %s\n\n", records[0].Timestamp.Format("2006-01-02 15:04:05"))

	for _, r := range records {
		s := r.Summarize()
		ew.printf("=== %s [%s] Results ===\n", r.Filter, r.Variant)
		ew.printf("Image: %s (%dx%d)\n", r.Image, r.Width, r.Height)
		ew.printf("Kernel size: %d\n", r.KernelSize)
		if r.Workers > 0 {
			ew.printf("Workers: %d\n", r.Workers)
		}
		ew.printf("Runs: %d\n", s.Runs)
		ew.printf("Mean time: %.4fs\n", s.Mean)
		ew.printf("Std dev: %.4fs\n", s.StdDev)
		ew.printf("Best time: %.4fs\n", s.Min)
		ew.printf("Throughput: %.2f MP/s\n", s.Throughput)
		ew.printf("\n")
	}
	return ew.err
}

// WriteReportFile writes the report to dir/<prefix><timestamp>.txt and
// returns the file name.
func WriteReportFile(dir, prefix string, records []Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	timestamp := records[0].Timestamp.Format("2006-01-02_15-04-05")
	path := filepath.Join(dir, prefix+timestamp+".txt")

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create results file: %w", err)
	}
	defer file.Close()

	if err := WriteReport(file, records); err != nil {
		return "", err
	}
	return path, file.Close()
}

// WriteTable prints a one-line-per-record summary with a total row.
func WriteTable(w io.Writer, records []Record) error {
	ew := &errWriter{w: w}
	ew.printf("%-24s %-12s %15s %12s\n", "Filter Type", "Backend", "Processing Time", "Std Dev")
	ew.printf("%s\n", strings.Repeat("-", 66))

	var total float64
	for _, r := range records {
		s := r.Summarize()
		total += s.Mean
		ew.printf("%-24s %-12s %14.4fs %11.4fs\n", r.Filter, r.Variant, s.Mean, s.StdDev)
	}
	ew.printf("%-24s %-12s %14.4fs\n", "Total", "", total)
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

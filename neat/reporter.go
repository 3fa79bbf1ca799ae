package neat

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
)

// GenerationStats summarizes one evaluated generation.
type GenerationStats struct {
	RunID                  string  `csv:"run_id"`
	Generation             int     `csv:"generation"`
	PopulationSize         int     `csv:"population"`
	SpeciesCount           int     `csv:"species"`
	CompatibilityThreshold float64 `csv:"threshold"`
	Innovations            int     `csv:"innovations"`
	BestFitness            float64 `csv:"best_fitness"`
	AllTimeBestFitness     float64 `csv:"all_time_best_fitness"`
	MeanFitness            float64 `csv:"mean_fitness"`
	StdevFitness           float64 `csv:"stdev_fitness"`
	BestNetworkID          int     `csv:"best_network"`
	BestGenes              int     `csv:"best_genes"`
	BestHidden             int     `csv:"best_hidden"`
	DurationMs             int64   `csv:"duration_ms"`
}

// LogValue implements slog.LogValuer.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("population", s.PopulationSize),
		slog.Int("species", s.SpeciesCount),
		slog.Float64("threshold", s.CompatibilityThreshold),
		slog.Float64("best", s.BestFitness),
		slog.Float64("mean", s.MeanFitness),
		slog.Int("best_network", s.BestNetworkID),
		slog.Int("best_genes", s.BestGenes),
		slog.Int64("duration_ms", s.DurationMs),
	)
}

// Reporter receives the statistics of every evaluated generation.
type Reporter interface {
	Report(stats GenerationStats) error
}

// CSVReporter appends one row per generation to a CSV file. The header is written with the
// first row only.
type CSVReporter struct {
	mu      sync.Mutex
	file    *os.File
	written bool
}

// NewCSVReporter creates (or truncates) the file at path.
func NewCSVReporter(path string) (*CSVReporter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats file '%s': %w", path, err)
	}
	return &CSVReporter{file: f}, nil
}

// Report writes stats as one CSV row.
func (r *CSVReporter) Report(stats GenerationStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := []*GenerationStats{&stats}
	var err error
	if r.written {
		err = gocsv.MarshalWithoutHeaders(rows, r.file)
	} else {
		err = gocsv.Marshal(rows, r.file)
	}
	if err != nil {
		return fmt.Errorf("failed to write stats row: %w", err)
	}
	r.written = true
	return nil
}

// Close closes the underlying file.
func (r *CSVReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// MODUL: benchmark
// ZWECK: Latenz- und Durchsatzmessung fuer das Sampling von Aktions-Chunks
// INPUT: Config, Runner-Funktion (ein Sample-Aufruf pro Iteration)
// OUTPUT: Result pro Kombination aus Batch-Groesse und DDIM-Schritten
// NEBENEFFEKTE: CPU-Last waehrend der Messung, runtime.GC vor jeder Messreihe
// ABHAENGIGKEITEN: log/slog, runtime (Speichermessung)
// HINWEISE: Warmup-Laeufe werden nicht gemessen

package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"
)

// ============================================================================
// Datenstrukturen
// ============================================================================

// Result enthaelt das Ergebnis einer Messreihe.
type Result struct {
	Encoder    string        `json:"encoder"`     // Bild-Encoder des Modells
	BatchSize  int           `json:"batch_size"`  // Beobachtungen pro Aufruf
	Steps      int           `json:"steps"`       // DDIM-Schritte
	Iterations int           `json:"iterations"`  // gemessene Aufrufe
	TotalTime  time.Duration `json:"total_time"`  // Summe aller Aufrufe
	AvgLatency time.Duration `json:"avg_latency"` // pro Aufruf
	MinLatency time.Duration `json:"min_latency"`
	MaxLatency time.Duration `json:"max_latency"`
	P95Latency time.Duration `json:"p95_latency"`
	Throughput float64       `json:"throughput"`  // Chunks pro Sekunde
	MemoryUsed uint64        `json:"memory_used"` // Bytes, kumulativ allokiert
}

// Config definiert die Parameter einer Benchmark-Suite.
type Config struct {
	Encoder    string
	Iterations int   // Messungen ohne Warmup
	WarmupRuns int   // ungemessene Aufrufe
	BatchSizes []int // zu testende Batch-Groessen
	Steps      []int // zu testende DDIM-Schrittzahlen
}

// DefaultConfig gibt eine Standard-Konfiguration zurueck.
func DefaultConfig() Config {
	return Config{
		Iterations: 10,
		WarmupRuns: 2,
		BatchSizes: []int{1, 4},
		Steps:      []int{4, 16},
	}
}

// RunFunc fuehrt einen einzelnen Sample-Aufruf aus.
type RunFunc func(ctx context.Context, batchSize, steps int) error

// ============================================================================
// Haupt-Benchmark-Funktionen
// ============================================================================

// Run misst alle Kombinationen aus BatchSizes und Steps.
// Der erste Fehler von fn bricht die Suite ab.
func Run(ctx context.Context, cfg Config, fn RunFunc) ([]Result, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("benchmark: iterations must be > 0, got %d", cfg.Iterations)
	}

	var results []Result
	for _, steps := range cfg.Steps {
		for _, batch := range cfg.BatchSizes {
			r, err := runSingle(ctx, cfg, batch, steps, fn)
			if err != nil {
				return results, fmt.Errorf("benchmark batch=%d steps=%d: %w", batch, steps, err)
			}
			slog.Debug("benchmark finished", "batch", batch, "steps", steps, "avg", r.AvgLatency)
			results = append(results, r)
		}
	}
	return results, nil
}

// runSingle fuehrt Warmup und Messung fuer eine Konfiguration aus.
func runSingle(ctx context.Context, cfg Config, batch, steps int, fn RunFunc) (Result, error) {
	for range cfg.WarmupRuns {
		if err := fn(ctx, batch, steps); err != nil {
			return Result{}, err
		}
	}

	// GC erzwingen vor Messung
	runtime.GC()
	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	latencies := make([]time.Duration, 0, cfg.Iterations)
	for range cfg.Iterations {
		start := time.Now()
		if err := fn(ctx, batch, steps); err != nil {
			return Result{}, err
		}
		latencies = append(latencies, time.Since(start))
	}

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	stats := calculateStats(latencies)
	r := Result{
		Encoder:    cfg.Encoder,
		BatchSize:  batch,
		Steps:      steps,
		Iterations: cfg.Iterations,
		TotalTime:  stats.total,
		AvgLatency: stats.avg,
		MinLatency: stats.min,
		MaxLatency: stats.max,
		P95Latency: stats.p95,
		MemoryUsed: memAfter.TotalAlloc - memBefore.TotalAlloc,
	}
	if s := stats.total.Seconds(); s > 0 {
		r.Throughput = float64(batch*cfg.Iterations) / s
	}
	return r, nil
}

// ============================================================================
// Statistik-Hilfsfunktionen
// ============================================================================

type latencyStats struct {
	total time.Duration
	avg   time.Duration
	min   time.Duration
	max   time.Duration
	p95   time.Duration
}

// calculateStats berechnet Statistiken aus Latenz-Messungen.
func calculateStats(latencies []time.Duration) latencyStats {
	if len(latencies) == 0 {
		return latencyStats{}
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range latencies {
		total += d
	}

	// P95 Index
	p95Idx := min(int(float64(len(sorted))*0.95), len(sorted)-1)

	return latencyStats{
		total: total,
		avg:   total / time.Duration(len(latencies)),
		min:   sorted[0],
		max:   sorted[len(sorted)-1],
		p95:   sorted[p95Idx],
	}
}

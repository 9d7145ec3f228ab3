// MODUL: report
// ZWECK: Ausgabe von Benchmark-Ergebnissen als JSON oder Tabelle
// INPUT: Result Slices
// OUTPUT: JSON-Dokument oder tablewriter-Tabelle
// NEBENEFFEKTE: schreibt in den uebergebenen io.Writer
// ABHAENGIGKEITEN: olekukonko/tablewriter, encoding/json

package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Report enthaelt alle Ergebnisse mit Metadaten.
type Report struct {
	Timestamp  time.Time  `json:"timestamp"`
	SystemInfo SystemInfo `json:"system_info"`
	Config     Config     `json:"config"`
	Results    []Result   `json:"results"`
}

// SystemInfo enthaelt Systeminformationen zum Benchmark.
type SystemInfo struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	CPUCores int    `json:"cpu_cores"`
}

// CurrentSystem liest die Systeminformationen der laufenden Maschine.
func CurrentSystem() SystemInfo {
	return SystemInfo{OS: runtime.GOOS, Arch: runtime.GOARCH, CPUCores: runtime.NumCPU()}
}

// NewReport erstellt einen Report aus Ergebnissen.
func NewReport(results []Result, cfg Config) *Report {
	return &Report{
		Timestamp:  time.Now(),
		SystemInfo: CurrentSystem(),
		Config:     cfg,
		Results:    results,
	}
}

// WriteJSON schreibt den Report eingerueckt als JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteTable schreibt die Ergebnisse im Stil der CLI-Listen.
func (r *Report) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"BATCH", "STEPS", "AVG", "P95", "MIN", "MAX", "CHUNKS/S"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	for _, res := range r.Results {
		table.Append([]string{
			strconv.Itoa(res.BatchSize),
			strconv.Itoa(res.Steps),
			formatLatency(res.AvgLatency),
			formatLatency(res.P95Latency),
			formatLatency(res.MinLatency),
			formatLatency(res.MaxLatency),
			fmt.Sprintf("%.2f", res.Throughput),
		})
	}
	table.Render()
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
}

// SortByThroughput sortiert absteigend nach Durchsatz.
func SortByThroughput(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Throughput > b.Throughput:
			return -1
		case a.Throughput < b.Throughput:
			return 1
		}
		return 0
	})
}

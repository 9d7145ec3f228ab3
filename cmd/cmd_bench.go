// cmd_bench.go - Bench Command
// Hauptfunktionen: BenchHandler
package cmd

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/lucidrains/tri-lbm/benchmark"
	"github.com/lucidrains/tri-lbm/lbm"
	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/vision"
)

func newBenchCmd() *cobra.Command {
	d := benchmark.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure sampling latency on synthetic observations",
		Args:  cobra.NoArgs,
		RunE:  BenchHandler,
	}
	addModelFlags(cmd)
	cmd.Flags().IntSlice("batch", d.BatchSizes, "Batch sizes")
	cmd.Flags().IntSlice("steps", d.Steps, "DDIM sampling steps")
	cmd.Flags().Int("iterations", d.Iterations, "Measured iterations per configuration")
	cmd.Flags().Int("warmup", d.WarmupRuns, "Warmup iterations per configuration")
	cmd.Flags().String("format", "table", "Output format (table, json)")
	return cmd
}

// BenchHandler - Misst Sample-Latenzen ueber Batch-Groessen und Schrittzahlen
func BenchHandler(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	model, err := loadModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	bcfg := benchmark.Config{Encoder: model.image.ModelInfo().Name}
	bcfg.BatchSizes, _ = cmd.Flags().GetIntSlice("batch")
	bcfg.Steps, _ = cmd.Flags().GetIntSlice("steps")
	bcfg.Iterations, _ = cmd.Flags().GetInt("iterations")
	bcfg.WarmupRuns, _ = cmd.Flags().GetInt("warmup")

	// Beobachtungen pro Batch-Groesse einmal erzeugen
	size := model.image.ModelInfo().ImageSize
	gen := ml.NewGenerator(1)
	observations := make(map[int]lbm.Observation)
	for _, b := range bcfg.BatchSizes {
		if b <= 0 {
			return fmt.Errorf("batch size must be > 0, got %d", b)
		}
		observations[b] = lbm.Observation{
			Text:   slices.Repeat([]string{"pick up the red block"}, b),
			Images: gen.Uniform(0, 1, b, vision.Channels, size, size),
		}
	}

	results, err := benchmark.Run(cmd.Context(), bcfg, func(ctx context.Context, batch, steps int) error {
		_, err := model.Sample(ctx, observations[batch], lbm.WithSteps(steps))
		return err
	})
	if err != nil {
		return err
	}

	report := benchmark.NewReport(results, bcfg)
	if format == "json" {
		return report.WriteJSON(cmd.OutOrStdout())
	}
	report.WriteTable(cmd.OutOrStdout())
	return nil
}

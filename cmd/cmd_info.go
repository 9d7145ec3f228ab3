// cmd_info.go - Info Command
// Hauptfunktionen: InfoHandler
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lucidrains/tri-lbm/ml/nn"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show model configuration and parameter count",
		Args:  cobra.NoArgs,
		RunE:  InfoHandler,
	}
	addModelFlags(cmd)
	cmd.Flags().Int("frames", 1, "Image frames per observation")
	cmd.Flags().Int("pose-dim", 0, "Pose dimension (0 = no pose)")
	return cmd
}

// InfoHandler - Baut das Modell und zeigt Konfiguration und Groessen
func InfoHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	cfg.Frames, _ = cmd.Flags().GetInt("frames")
	cfg.DimPose, _ = cmd.Flags().GetInt("pose-dim")

	model, err := loadModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	dims := model.Dims()
	info := model.image.ModelInfo()
	rows := [][]string{
		{"variant", string(cfg.Variant)},
		{"action dim", strconv.Itoa(cfg.ActionDim)},
		{"chunk length", strconv.Itoa(cfg.ChunkLength)},
		{"dim", strconv.Itoa(cfg.Dim)},
		{"depth", strconv.Itoa(cfg.Depth)},
		{"heads", fmt.Sprintf("%d x %d", cfg.Heads, cfg.DimHead)},
		{"timesteps", fmt.Sprintf("%d (sampling %d)", cfg.Timesteps, cfg.SamplingTimesteps)},
		{"schedule", string(cfg.Schedule)},
		{"objective", string(cfg.Objective)},
		{"text encoder", fmt.Sprintf("dim %d", dims.Text)},
		{"image encoder", fmt.Sprintf("%s %dpx dim %d", info.Name, info.ImageSize, info.EmbeddingDim)},
		{"frames", strconv.Itoa(dims.Frames)},
		{"pose dim", strconv.Itoa(dims.Pose)},
		{"condition dim", strconv.Itoa(dims.Condition())},
		{"action norm", strconv.FormatBool(model.Normalizer().Enabled())},
		{"parameters", strconv.Itoa(nn.Count(model.Parameters()))},
	}

	table := newTable(cmd.OutOrStdout(), "KEY", "VALUE")
	table.AppendBulk(rows)
	table.Render()
	return nil
}

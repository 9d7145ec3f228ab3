// cmd_utils.go - Gemeinsame Helfer der Commands
// Hauptfunktionen: newTable, addModelFlags, configFromFlags, loadModel, parseFloats
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lucidrains/tri-lbm/diffusion"
	"github.com/lucidrains/tri-lbm/envconfig"
	"github.com/lucidrains/tri-lbm/lbm"
	"github.com/lucidrains/tri-lbm/text"
	"github.com/lucidrains/tri-lbm/vision"
)

// newTable - Tabelle ohne Rahmen, linksbuendig
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	return table
}

// =============================================================================
// Modell-Flags
// =============================================================================

// addModelFlags - Flags fuer die Modell-Konfiguration. Nicht gesetzte Flags
// behalten die Werte aus lbm.DefaultConfig.
func addModelFlags(cmd *cobra.Command) {
	d := lbm.DefaultConfig(20)
	cmd.Flags().Int("action-dim", d.ActionDim, "Action dimension")
	cmd.Flags().Int("chunk", d.ChunkLength, "Action chunk length")
	cmd.Flags().Int("dim", d.Dim, "Transformer width")
	cmd.Flags().Int("depth", d.Depth, "Transformer depth")
	cmd.Flags().Int("heads", d.Heads, "Attention heads")
	cmd.Flags().Int("dim-head", d.DimHead, "Attention head width")
	cmd.Flags().Int("ff-mult", d.FFMult, "Feed-forward expansion factor")
	cmd.Flags().Int("timesteps", d.Timesteps, "Diffusion timesteps")
	cmd.Flags().Int("sampling-timesteps", d.SamplingTimesteps, "Default DDIM sampling steps")
	cmd.Flags().String("schedule", string(d.Schedule), "Noise schedule (cosine, linear)")
	cmd.Flags().String("objective", string(d.Objective), "Training objective (pred_noise, pred_x0, pred_v)")
	cmd.Flags().String("variant", string(d.Variant), "Denoiser variant")
	cmd.Flags().Uint64("seed", d.Seed, "Model seed (0 = random)")
	cmd.Flags().Bool("normalize-embeddings", false, "L2-normalize encoder embeddings")
}

// configFromFlags - lbm.Config aus Default, Environment und Flags
func configFromFlags(cmd *cobra.Command) (lbm.Config, error) {
	flags := cmd.Flags()

	actionDim, err := flags.GetInt("action-dim")
	if err != nil {
		return lbm.Config{}, err
	}
	cfg := lbm.DefaultConfig(actionDim)

	ints := map[string]*int{
		"chunk":              &cfg.ChunkLength,
		"dim":                &cfg.Dim,
		"depth":              &cfg.Depth,
		"heads":              &cfg.Heads,
		"dim-head":           &cfg.DimHead,
		"ff-mult":            &cfg.FFMult,
		"timesteps":          &cfg.Timesteps,
		"sampling-timesteps": &cfg.SamplingTimesteps,
	}
	for name, dst := range ints {
		if flags.Changed(name) {
			if *dst, err = flags.GetInt(name); err != nil {
				return lbm.Config{}, err
			}
		}
	}

	if flags.Changed("schedule") {
		s, _ := flags.GetString("schedule")
		cfg.Schedule = diffusion.ScheduleKind(s)
	}
	if flags.Changed("objective") {
		s, _ := flags.GetString("objective")
		cfg.Objective = diffusion.Objective(s)
	}
	if flags.Changed("variant") {
		s, _ := flags.GetString("variant")
		cfg.Variant = lbm.Variant(s)
	}
	if flags.Changed("seed") {
		if cfg.Seed, err = flags.GetUint64("seed"); err != nil {
			return lbm.Config{}, err
		}
	}
	cfg.NormalizeEmbeddings, _ = flags.GetBool("normalize-embeddings")

	return cfg, nil
}

// =============================================================================
// Modell laden
// =============================================================================

// loadEncoders - Encoder aus den Registries, Namen aus LBM_TEXT_ENCODER / LBM_IMAGE_ENCODER
func loadEncoders() (text.Encoder, vision.ImageEncoder, error) {
	textEnc, err := text.NewEncoder(envconfig.TextEncoder())
	if err != nil {
		return nil, nil, err
	}

	opts := []vision.Option{vision.WithThreads(envconfig.NumThreads())}
	if path := envconfig.OnnxModel(); path != "" {
		opts = append(opts, vision.WithModelPath(path))
	}
	imageEnc, err := vision.NewEncoder(envconfig.ImageEncoder(), opts...)
	if err != nil {
		return nil, nil, errors.Join(err, textEnc.Close())
	}
	return textEnc, imageEnc, nil
}

// loadedModel buendelt Modell und Encoder fuer das gemeinsame Close
type loadedModel struct {
	*lbm.Model
	text  text.Encoder
	image vision.ImageEncoder
}

func (m *loadedModel) Close() error {
	return errors.Join(m.text.Close(), m.image.Close())
}

// loadModel - Modell mit zufaelligen Gewichten um die registrierten Encoder
func loadModel(cfg lbm.Config) (*loadedModel, error) {
	textEnc, imageEnc, err := loadEncoders()
	if err != nil {
		return nil, err
	}

	model, err := lbm.New(cfg, textEnc, imageEnc)
	if err != nil {
		return nil, errors.Join(err, textEnc.Close(), imageEnc.Close())
	}

	slog.Debug("model loaded", "text_encoder", envconfig.TextEncoder(), "image_encoder", imageEnc.ModelInfo().Name)
	return &loadedModel{Model: model, text: textEnc, image: imageEnc}, nil
}

// =============================================================================
// Parsing
// =============================================================================

// parseFloats - kommaseparierte Liste, leere Eingabe ergibt nil
func parseFloats(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q at position %d: %w", p, i, err)
		}
		out[i] = v
	}
	return out, nil
}

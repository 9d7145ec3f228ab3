// cmd_sample.go - Sample Command
// Hauptfunktionen: SampleHandler, loadObservation
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucidrains/tri-lbm/actionnorm"
	"github.com/lucidrains/tri-lbm/lbm"
	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/text"
	"github.com/lucidrains/tri-lbm/vision"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample an action chunk for an instruction and camera frames",
		Args:  cobra.NoArgs,
		RunE:  SampleHandler,
	}
	addModelFlags(cmd)
	cmd.Flags().StringP("instruction", "i", "", "Natural-language instruction")
	cmd.Flags().String("instruction-file", "", "Read the instruction from a file (- for stdin)")
	cmd.Flags().StringArray("image", nil, "Camera frame, oldest first (repeatable)")
	cmd.Flags().String("pose", "", "Comma-separated robot pose")
	cmd.Flags().String("stats", "", "JSON file with action normalization statistics")
	cmd.Flags().Int("steps", 0, "DDIM sampling steps (0 = model default)")
	cmd.Flags().Float64("eta", 0, "DDIM eta")
	cmd.Flags().String("format", "table", "Output format (table, json)")
	return cmd
}

// readInstruction - --instruction oder --instruction-file
func readInstruction(cmd *cobra.Command) (string, error) {
	instruction, _ := cmd.Flags().GetString("instruction")
	path, _ := cmd.Flags().GetString("instruction-file")

	switch {
	case instruction != "" && path != "":
		return "", errors.New("--instruction and --instruction-file are mutually exclusive")
	case path == "-":
		return text.ReadInstruction(cmd.InOrStdin())
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return text.ReadInstruction(f)
	}
	return instruction, nil
}

// loadFrames - Bilder laden und auf size x size bringen, Ergebnis [1,F,3,size,size] in [0,1]
func loadFrames(paths []string, size int) (*ml.Tensor, error) {
	data := make([]float32, 0, len(paths)*vision.Channels*size*size)
	for _, path := range paths {
		img, err := vision.LoadImage(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		frame, err := vision.PreprocessImage(img, size)
		if err != nil {
			return nil, fmt.Errorf("preprocess %s: %w", path, err)
		}
		data = append(data, frame.Data...)
	}
	return ml.FromFloat32s(data, 1, len(paths), vision.Channels, size, size), nil
}

func loadStats(path string) ([][2]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return actionnorm.LoadStats(f)
}

// SampleHandler - Baut das Modell, sampelt einen Chunk und gibt ihn aus
func SampleHandler(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	instruction, err := readInstruction(cmd)
	if err != nil {
		return err
	}
	if instruction == "" {
		return errors.New("an instruction is required")
	}

	images, _ := cmd.Flags().GetStringArray("image")
	if len(images) == 0 {
		return errors.New("at least one --image is required")
	}

	poseFlag, _ := cmd.Flags().GetString("pose")
	pose, err := parseFloats(poseFlag)
	if err != nil {
		return fmt.Errorf("--pose: %w", err)
	}

	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	cfg.Frames = len(images)
	cfg.DimPose = len(pose)
	if path, _ := cmd.Flags().GetString("stats"); path != "" {
		if cfg.ActionNormStats, err = loadStats(path); err != nil {
			return fmt.Errorf("--stats: %w", err)
		}
	}

	model, err := loadModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	frames, err := loadFrames(images, model.image.ModelInfo().ImageSize)
	if err != nil {
		return err
	}

	obs := lbm.Observation{Text: []string{instruction}, Images: frames}
	if len(pose) > 0 {
		obs.Pose = ml.New(pose, 1, len(pose))
	}

	var opts []lbm.SampleOption
	if cmd.Flags().Changed("steps") {
		steps, _ := cmd.Flags().GetInt("steps")
		opts = append(opts, lbm.WithSteps(steps))
	}
	if cmd.Flags().Changed("eta") {
		eta, _ := cmd.Flags().GetFloat64("eta")
		opts = append(opts, lbm.WithEta(eta))
	}

	start := time.Now()
	res, err := model.Sample(cmd.Context(), obs, opts...)
	if err != nil {
		return err
	}
	slog.Info("sampled action chunk", "frames", cfg.Frames, "chunk_length", cfg.ChunkLength,
		"action_dim", cfg.ActionDim, "elapsed", time.Since(start))

	if format == "json" {
		return writeActionsJSON(cmd.OutOrStdout(), res.Actions)
	}
	writeActionsTable(cmd.OutOrStdout(), res.Actions)
	return nil
}

// actionRows zerlegt [1,L,A] in L Zeilen
func actionRows(actions *ml.Tensor) [][]float64 {
	l, a := actions.Dim(1), actions.Dim(2)
	data := actions.Data()
	rows := make([][]float64, l)
	for i := range rows {
		rows[i] = data[i*a : (i+1)*a]
	}
	return rows
}

func writeActionsJSON(w io.Writer, actions *ml.Tensor) error {
	return json.NewEncoder(w).Encode(actionRows(actions))
}

func writeActionsTable(w io.Writer, actions *ml.Tensor) {
	header := []string{"STEP"}
	for i := range actions.Dim(2) {
		header = append(header, fmt.Sprintf("A%d", i))
	}

	table := newTable(w, header...)
	for i, row := range actionRows(actions) {
		cells := []string{strconv.Itoa(i)}
		for _, v := range row {
			cells = append(cells, strconv.FormatFloat(v, 'f', 4, 64))
		}
		table.Append(cells)
	}
	table.Render()
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/lucidrains/tri-lbm/benchmark"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// smallModel haelt Tests schnell
var smallModel = []string{
	"--action-dim", "3",
	"--chunk", "4",
	"--dim", "16",
	"--depth", "1",
	"--heads", "2",
	"--dim-head", "8",
	"--ff-mult", "2",
	"--timesteps", "20",
	"--sampling-timesteps", "4",
	"--seed", "7",
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("LBM_IMAGE_ENCODER", "projection")
	t.Setenv("LBM_TEXT_ENCODER", "hashing")

	var stdout, stderr bytes.Buffer
	cli := NewCLI()
	cli.SetOut(&stdout)
	cli.SetErr(&stderr)
	cli.SetArgs(args)
	err := cli.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writePNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestEnvCommand(t *testing.T) {
	t.Setenv("LBM_SEED", "42")
	out, _, err := run(t, "env")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.True(t, strings.HasPrefix(lines[0], "NAME"), out)
	require.Len(t, lines, 9)
	require.Contains(t, out, "LBM_SEED")
	require.Contains(t, out, "42")

	out, _, err = run(t, "env", "--format", "json")
	require.NoError(t, err)
	var values map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	require.Equal(t, "42", values["LBM_SEED"])
	require.Equal(t, "projection", values["LBM_IMAGE_ENCODER"])
}

func TestInfoCommand(t *testing.T) {
	out, _, err := run(t, append([]string{"info", "--frames", "2", "--pose-dim", "5"}, smallModel...)...)
	require.NoError(t, err)
	require.Contains(t, out, "parameters")
	require.Contains(t, out, "projection 224px dim 512")
	// 2*16 + 768 + 2*512 + 5
	require.Contains(t, out, "1829")
}

func TestSampleCommand(t *testing.T) {
	path := writePNG(t, 40, 30, color.RGBA{200, 10, 10, 255})

	args := append([]string{"sample", "--instruction", "pick up the cup", "--image", path, "--image", path,
		"--pose", "0.1, 0.2", "--format", "json"}, smallModel...)
	out, _, err := run(t, args...)
	require.NoError(t, err)

	var actions [][]float64
	require.NoError(t, json.Unmarshal([]byte(out), &actions))
	require.Len(t, actions, 4)
	for _, row := range actions {
		require.Len(t, row, 3)
	}

	// gleicher Seed, gleiche Eingabe
	again, _, err := run(t, args...)
	require.NoError(t, err)
	require.Equal(t, out, again)
}

func TestSampleCommandTable(t *testing.T) {
	path := writePNG(t, 16, 16, color.White)
	stats := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, os.WriteFile(stats, []byte(`{"shift":[0,0,0],"scale":[1,2,3]}`), 0o644))

	instruction := filepath.Join(t.TempDir(), "instruction.txt")
	require.NoError(t, os.WriteFile(instruction, []byte("\ufeff  open the drawer\n"), 0o644))

	out, _, err := run(t, append([]string{"sample", "--instruction-file", instruction, "--image", path,
		"--stats", stats, "--steps", "2"}, smallModel...)...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, []string{"STEP", "A0", "A1", "A2"}, strings.Fields(lines[0]))
	require.Equal(t, "3", strings.Fields(lines[4])[0])
}

func TestSampleCommandErrors(t *testing.T) {
	path := writePNG(t, 8, 8, color.Black)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no image", []string{"--instruction", "x"}, "--image"},
		{"no instruction", []string{"--image", path}, "instruction is required"},
		{"bad pose", []string{"--instruction", "x", "--image", path, "--pose", "1,a"}, "--pose"},
		{"bad format", []string{"--instruction", "x", "--image", path, "--format", "xml"}, "format"},
		{"missing image", []string{"--instruction", "x", "--image", "does-not-exist.png"}, "does-not-exist.png"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, append(append([]string{"sample"}, tt.args...), smallModel...)...)
			require.ErrorContains(t, err, tt.want)
		})
	}

	_, _, err := run(t, append([]string{"sample", "--instruction", "x", "--image", path, "--steps", "50"}, smallModel...)...)
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
}

func TestUnknownEncoder(t *testing.T) {
	path := writePNG(t, 8, 8, color.Black)
	t.Setenv("LBM_IMAGE_ENCODER", "projektion")

	var stdout, stderr bytes.Buffer
	cli := NewCLI()
	cli.SetOut(&stdout)
	cli.SetErr(&stderr)
	cli.SetArgs(append([]string{"sample", "--instruction", "x", "--image", path}, smallModel...))
	err := cli.ExecuteContext(context.Background())
	require.ErrorContains(t, err, `did you mean "projection"?`)
}

func TestBenchCommand(t *testing.T) {
	out, _, err := run(t, append([]string{"bench", "--batch", "1,2", "--steps", "2", "--iterations", "1",
		"--warmup", "0", "--format", "json"}, smallModel...)...)
	require.NoError(t, err)

	var report benchmark.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	got := make([][2]int, 0, len(report.Results))
	for _, r := range report.Results {
		got = append(got, [2]int{r.BatchSize, r.Steps})
	}
	if diff := cmp.Diff([][2]int{{1, 2}, {2, 2}}, got); diff != "" {
		t.Errorf("configurations mismatch (-want +got):\n%s", diff)
	}
}

func TestLogFile(t *testing.T) {
	t.Setenv("LBM_DEBUG", "1")
	path := writePNG(t, 8, 8, color.Black)
	logFile := filepath.Join(t.TempDir(), "lbm.log")

	_, stderr, err := run(t, append([]string{"sample", "--instruction", "x", "--image", path, "--log-file", logFile}, smallModel...)...)
	require.NoError(t, err)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "sampled action chunk")
	require.Contains(t, string(data), "run_id=")
	require.Contains(t, stderr, "sampled action chunk")
}

func TestParseFloats(t *testing.T) {
	got, err := parseFloats(" 1, -2.5 ,3e-1")
	require.NoError(t, err)
	require.Equal(t, []float64{1, -2.5, 0.3}, got)

	got, err = parseFloats("  ")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = parseFloats("1,,2")
	require.Error(t, err)
}

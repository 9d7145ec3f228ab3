// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs, setupLogging
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/lucidrains/tri-lbm/envconfig"
	"github.com/lucidrains/tri-lbm/logutil"

	// Encoder-Registrierung via init()
	_ "github.com/lucidrains/tri-lbm/text/hashing"
	_ "github.com/lucidrains/tri-lbm/vision/onnx"
	_ "github.com/lucidrains/tri-lbm/vision/projection"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// logSession haelt die optionale Log-Datei eines Aufrufs
type logSession struct {
	file io.Closer
}

// setupLogging - Text-Logger auf stderr, optional zusaetzlich in --log-file.
// Jeder Aufruf bekommt eine run_id.
func (s *logSession) setupLogging(cmd *cobra.Command, _ []string) error {
	level := envconfig.LogLevel()
	handlers := []slog.Handler{logutil.NewLogger(cmd.ErrOrStderr(), level).Handler()}

	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		s.file = f
		handlers = append(handlers, logutil.NewLogger(f, level).Handler())
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)).With("run_id", uuid.NewString()))
	return nil
}

func (s *logSession) close(*cobra.Command, []string) error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	logs := &logSession{}
	rootCmd := &cobra.Command{
		Use:           "lbm",
		Short:         "Large behavior model action sampler",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE:  logs.setupLogging,
		PersistentPostRunE: logs.close,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file")

	// Commands erstellen
	sampleCmd := newSampleCmd()
	infoCmd := newInfoCmd()
	benchCmd := newBenchCmd()
	envCmd := newEnvCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{sampleCmd, infoCmd, benchCmd} {
		switch cmd {
		case infoCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["LBM_SEED"], envVars["LBM_IMAGE_ENCODER"], envVars["LBM_TEXT_ENCODER"]})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["LBM_DEBUG"],
				envVars["LBM_NUM_THREADS"],
				envVars["LBM_SEED"],
				envVars["LBM_SAMPLING_STEPS"],
				envVars["LBM_CHECK_FINITE"],
				envVars["LBM_IMAGE_ENCODER"],
				envVars["LBM_TEXT_ENCODER"],
				envVars["LBM_ONNX_MODEL"],
			})
		}
	}

	rootCmd.AddCommand(
		sampleCmd,
		infoCmd,
		benchCmd,
		envCmd,
	)

	return rootCmd
}

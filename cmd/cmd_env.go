// cmd_env.go - Env Command
// Hauptfunktionen: EnvHandler
package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/lucidrains/tri-lbm/envconfig"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show LBM_* environment variables",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
	cmd.Flags().String("format", "table", "Output format (table, json)")
	return cmd
}

// EnvHandler - Listet alle LBM_* Variablen mit aktuellem Wert
func EnvHandler(cmd *cobra.Command, _ []string) error {
	switch format, _ := cmd.Flags().GetString("format"); format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(envconfig.Values())
	case "table":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	vars := envconfig.AsMap()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
	for _, name := range names {
		v := vars[name]
		table.Append([]string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}
	table.Render()
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor runs behavior trees for interactive agents",
	Long: `Arbor compiles behavior trees described in YAML or JSON files and ticks them
frame by frame, persisting each agent as a session.

Sessions are stored according to ARBOR_STORE (memory, file, redis or sqlite).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the tree descriptions")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging of node lifecycle events")
}

// openEnv wires the engine for cmd from the persistent flags and the environment.
func openEnv(cmd *cobra.Command) (*cli.Env, error) {
	dir, _ := cmd.Flags().GetString("dir")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.OpenEnv(cmd.Context(), dir, debug)
}

package main

import (
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [tree...]",
	Short: "Check tree descriptions for consistency",
	Long: `Compiles the named trees, or every tree under --dir, and reports dangling
child references, cycles, unreachable nodes, unknown kinds and bad properties.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close(cmd.Context())
		return env.ValidateAll(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

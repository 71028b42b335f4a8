package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [tree]",
	Short: "Export the tree as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart of the tree. With --session the node statuses
saved in that session are overlaid, and the tree argument may be omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		if len(args) == 0 && sessionID == "" {
			return fmt.Errorf("name a tree or a --session")
		}

		env, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close(cmd.Context())

		var treeID string
		if len(args) > 0 {
			treeID = args[0]
		}
		var overlay *graph.Overlay
		if sessionID != "" {
			st, err := env.Engine.State(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			if treeID == "" {
				treeID = st.TreeID
			}
			overlay = graph.OverlayFromState(st)
		}

		desc, err := env.Engine.Description(treeID)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(desc, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Overlay the statuses saved in this session")
}

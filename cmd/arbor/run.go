package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <tree>",
	Short: "Tick a behavior tree until it completes",
	Long: `Compiles the tree and ticks it frame by frame, printing the root status and
the active nodes of every frame.

Lines read from stdin send events: "<channel variable> [args...]".
With --session the agent is resumed from, and saved to, the session store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{Tree: args[0], In: os.Stdin, Out: cmd.OutOrStdout()}
		flags := cmd.Flags()
		opts.SessionID, _ = flags.GetString("session")
		opts.Frames, _ = flags.GetInt("frames")
		opts.Interval, _ = flags.GetDuration("interval")
		opts.Loop, _ = flags.GetBool("loop")
		opts.Watch, _ = flags.GetBool("watch")
		opts.Fresh, _ = flags.GetBool("fresh")
		opts.Verbose, _ = flags.GetBool("verbose")
		opts.Quiet, _ = flags.GetBool("quiet")

		if opts.Loop && opts.Frames == 0 && opts.Interval == 0 {
			return fmt.Errorf("--loop needs --frames or --interval")
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		env, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close(cmd.Context())

		if !opts.Quiet {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		status, err := env.Run(sc, opts)
		if err != nil {
			return err
		}
		if sig := sc.Signal(); sig != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "stopped by %v\n", sig)
			return nil
		}
		if status == domain.StatusFailure {
			return fmt.Errorf("tree %s failed", opts.Tree)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session to resume and save after every frame")
	runCmd.Flags().IntP("frames", "n", 0, "Stop after this many frames (0 runs until the root completes)")
	runCmd.Flags().Duration("interval", 0, "Wall-clock time between frames")
	runCmd.Flags().Bool("loop", false, "Restart the tree whenever the root completes")
	runCmd.Flags().BoolP("watch", "w", false, "Reload tree descriptions when their files change")
	runCmd.Flags().Bool("fresh", false, "Discard the saved session before running")
	runCmd.Flags().BoolP("verbose", "v", false, "Print every node status and the final variables")
	runCmd.Flags().BoolP("quiet", "q", false, "Print nothing but errors")
}

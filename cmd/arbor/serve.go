package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the sessions over HTTP: POST /sessions/{id}/tick advances a session
one frame, GET /sessions/{id}/events streams status changes and tree reloads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		watch, _ := cmd.Flags().GetBool("watch")

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		env, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close(context.Background())

		opts := []httpAdapter.Option{
			httpAdapter.WithMetrics(env.Telemetry.Registry),
			httpAdapter.WithVersion(arbor.Version),
			httpAdapter.WithLogger(env.Logger),
		}
		if watch {
			if err := env.Engine.Watch(sc); err != nil {
				return err
			}
			if w, ok := env.Engine.Loader().(ports.Watchable); ok {
				opts = append(opts, httpAdapter.WithWatcher(w))
			}
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           httpAdapter.NewHandler(env.Engine, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			env.Logger.Info("server listening", "addr", srv.Addr, "dir", env.Dir, "store", env.Config.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-sc.Done():
			env.Logger.Info("shutting down", "signal", sc.Signal())
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				env.Logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload tree descriptions when their files change")
}

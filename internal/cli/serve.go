package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/config"
	"github.com/raaihank/redactor/internal/server"
)

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workspace server and web form",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if flagPort > 0 {
			a.cfg.Server.Port = flagPort
		}

		a.log.Info("Starting redactor",
			zap.String("version", version),
			zap.String("commit", commit),
			zap.String("build_date", date),
			zap.Int("port", a.cfg.Server.Port),
		)

		srv, err := server.New(a.cfg, a.log, server.Deps{
			Anonymizer: a.anonymizer,
			Recorder:   a.recorder(),
			Health:     a.client.Health,
			Version:    version,
		})
		if err != nil {
			return err
		}

		if flagConfig != "" {
			// Only the log level is reloadable; everything else needs a restart
			err := config.Watch(flagConfig, func(next *config.Config) {
				if err := a.log.SetLevel(next.Logging.Level); err != nil {
					a.log.Warn("Ignoring invalid log level on reload", zap.Error(err))
					return
				}
				a.log.Info("Configuration reloaded", zap.String("log_level", next.Logging.Level))
			}, func(err error) {
				a.log.Warn("Ignoring invalid configuration reload", zap.Error(err))
			})
			if err != nil {
				a.log.Warn("Configuration watching disabled", zap.Error(err))
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.Start(ctx)
		}()

		select {
		case err := <-serverErrors:
			return err
		case <-ctx.Done():
			a.log.Info("Shutdown signal received")
		}

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			a.log.Error("Failed to shutdown server gracefully", zap.Error(err))
			return err
		}
		a.log.Info("Server shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "Listen port (overrides server.port)")
}

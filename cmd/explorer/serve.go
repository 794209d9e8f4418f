package main

import (
	"os"
	"os/signal"
	"syscall"

	"explorer/internal/app"
	"explorer/internal/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.App.HTTPAddr = addr
		}
		cleanup, err := setupLogging(cfg, os.Stdout)
		if err != nil {
			return err
		}
		defer cleanup()
		logger.Infof("✓ config loaded (env=%s, file=%s)", cfg.App.Env, orDefault(path, "built-in defaults"))

		a, err := app.NewApp(cfg, app.WithConfigPath(path))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides app.http_addr)")
	rootCmd.AddCommand(serveCmd)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

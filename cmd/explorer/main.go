// Command explorer fans one inspiration out to several language models and
// merges their answers.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"explorer/internal/config"
	"explorer/internal/logger"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "explorer",
	Short: "Explore an idea with several language models at once",
	Long: `explorer sends one piece of inspiration (text, a link, or an image caption)
to every configured model concurrently and combines the answers into a single
markdown document. Use "serve" for the HTTP API or "run" for one-off prompts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: $EXPLORER_CONFIG or "+defaultConfigPath+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitStatus(err))
	}
}

// configPath resolves --config, then EXPLORER_CONFIG, then the default path.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p)
	}
	if p := strings.TrimSpace(os.Getenv("EXPLORER_CONFIG")); p != "" {
		return p
	}
	return defaultConfigPath
}

// loadConfig falls back to defaults only when the default path is missing;
// an explicitly named file must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configPath(cmd)
	explicit := path != defaultConfigPath
	var (
		cfg *config.Config
		err error
	)
	if explicit {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		path = ""
	}
	return cfg, path, nil
}

// setupLogging sends logs to base (and the configured log file) plus the LLM
// transcript file. The returned func closes whatever was opened.
func setupLogging(cfg *config.Config, base io.Writer) (func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	out := base
	if path := strings.TrimSpace(cfg.App.LogPath); path != "" {
		f, err := openAppend(path)
		if err != nil {
			return cleanup, err
		}
		closers = append(closers, f)
		out = io.MultiWriter(base, f)
	}
	log.SetOutput(out)
	logger.SetOutput(out)

	logger.SetLLMWriter(nil)
	if cfg.App.LLMDump {
		if path := strings.TrimSpace(cfg.App.LLMLog); path != "" {
			f, err := openAppend(path)
			if err != nil {
				cleanup()
				return func() {}, err
			}
			closers = append(closers, f)
			logger.SetLLMWriter(f)
		}
	}
	config.ApplyRuntime(cfg)
	return cleanup, nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

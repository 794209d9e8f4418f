package config

import (
	"fmt"
	"strings"

	"explorer/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads path whenever it or any file it includes changes on disk and
// hands the fresh config to onChange. Only settings that are safe to swap at
// runtime (log level, credential) should be applied by the callback; the model
// catalog stays fixed for the process lifetime. The include list is resolved
// once, so files added to it later are not watched.
func Watch(path string, onChange func(*Config)) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config watch requires path")
	}
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return fmt.Errorf("resolve config files for watch failed: %w", err)
	}
	reload := func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("config reloaded after change to %s", evt.Name)
		if onChange != nil {
			onChange(cfg)
		}
	}
	for _, file := range files {
		v := viper.New()
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config for watch failed (%s): %w", file, err)
		}
		v.OnConfigChange(reload)
		v.WatchConfig()
	}
	return nil
}

// ApplyRuntime pushes the hot-swappable parts of cfg into the running process.
func ApplyRuntime(cfg *Config) {
	if cfg == nil {
		return
	}
	if prev := logger.Level(); !strings.EqualFold(prev, cfg.App.LogLevel) {
		logger.SetLevel(cfg.App.LogLevel)
		logger.Infof("log level %s -> %s", prev, logger.Level())
	}
	logger.EnableLLMPayloadDump(cfg.App.LLMDump)
}

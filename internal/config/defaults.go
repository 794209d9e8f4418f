package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9991"
	defaultAppLLMLogPath    = "data/logs/explorer-llm.log"
	defaultBackendBaseURL   = "https://openrouter.ai/api/v1"
	defaultBackendKeyEnv    = "OPENROUTER_API_KEY"
	defaultBackendSiteURL   = "http://localhost:3000"
	defaultBackendAppTitle  = "Inspiration Explorer"
	defaultBackendTimeout   = 60
	defaultBackendRetries   = 2
	defaultBackendCeiling   = 2000
	defaultBackendTemp      = 0.7
	defaultBackendRate      = 2
	defaultBackendBurst     = 2
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 60
	defaultScraperTimeout   = 10
	defaultScraperExcerpt   = 1000
	defaultScraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultHistoryPath      = "data/history.db"
	defaultCallLogPath      = "data/calls.db"
)

// Default returns a config with every default applied, as if loaded from an empty file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(keySet{})
	return cfg
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Backend.applyDefaults(keys)
	c.Scraper.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Models.CatalogPath = strings.TrimSpace(c.Models.CatalogPath)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (b *BackendConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backend.base_url", &b.BaseURL, defaultBackendBaseURL),
		stringFieldDefault("backend.api_key_env", &b.APIKeyEnv, defaultBackendKeyEnv),
		stringFieldDefault("backend.site_url", &b.SiteURL, defaultBackendSiteURL),
		stringFieldDefault("backend.app_title", &b.AppTitle, defaultBackendAppTitle),
		intFieldDefault("backend.timeout_seconds", &b.TimeoutSeconds, defaultBackendTimeout),
		intFieldDefault("backend.max_tokens_ceiling", &b.MaxTokensCeiling, defaultBackendCeiling),
		intFieldDefault("backend.burst", &b.Burst, defaultBackendBurst),
		intFieldDefault("backend.breaker_cooldown_seconds", &b.BreakerCooldownSeconds, defaultBreakerCooldown),
		// explicit zero is meaningful for these: no retries / unlimited rate / no breaker
		fieldDefault{
			key:   "backend.max_retries",
			apply: func() { b.MaxRetries = defaultBackendRetries },
		},
		fieldDefault{
			key:   "backend.rate_per_second",
			apply: func() { b.RatePerSecond = defaultBackendRate },
		},
		fieldDefault{
			key:   "backend.breaker_threshold",
			apply: func() { b.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "backend.temperature",
			apply: func() { b.Temperature = defaultBackendTemp },
		},
	)
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
}

func (s *ScraperConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("scraper.enabled", &s.Enabled, true),
		intFieldDefault("scraper.timeout_seconds", &s.TimeoutSeconds, defaultScraperTimeout),
		intFieldDefault("scraper.excerpt_chars", &s.ExcerptChars, defaultScraperExcerpt),
		stringFieldDefault("scraper.user_agent", &s.UserAgent, defaultScraperUserAgent),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	// an explicit empty path turns persistence off
	applyFieldDefaults(keys,
		fieldDefault{key: "store.history_path", apply: func() { s.HistoryPath = defaultHistoryPath }},
		fieldDefault{key: "store.call_log_path", apply: func() { s.CallLogPath = defaultCallLogPath }},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && strings.TrimSpace(*target) == "" },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

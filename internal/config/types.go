package config

import (
	"os"
	"strings"
	"time"
)

// Config 是 explorer 的主配置载体。
type Config struct {
	App     AppConfig     `toml:"app"`
	Backend BackendConfig `toml:"backend"`
	Models  ModelsConfig  `toml:"models"`
	Scraper ScraperConfig `toml:"scraper"`
	Store   StoreConfig   `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// BackendConfig 描述 OpenAI 兼容的聊天补全网关（默认 OpenRouter）。
type BackendConfig struct {
	BaseURL                string  `toml:"base_url"`
	APIKey                 string  `toml:"api_key"`
	APIKeyEnv              string  `toml:"api_key_env"`
	SiteURL                string  `toml:"site_url"`
	AppTitle               string  `toml:"app_title"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
	MaxRetries             int     `toml:"max_retries"`
	MaxTokensCeiling       int     `toml:"max_tokens_ceiling"`
	Temperature            float64 `toml:"temperature"`
	RatePerSecond          float64 `toml:"rate_per_second"`
	Burst                  int     `toml:"burst"`
	BreakerThreshold       int     `toml:"breaker_threshold"`
	BreakerCooldownSeconds int     `toml:"breaker_cooldown_seconds"`
}

// Credential resolves the API key: the inline value wins, then the named env var.
// It is read per request so a key exported after start-up is picked up.
func (b BackendConfig) Credential() string {
	if key := strings.TrimSpace(b.APIKey); key != "" {
		return key
	}
	name := strings.TrimSpace(b.APIKeyEnv)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func (b BackendConfig) BreakerCooldown() time.Duration {
	return time.Duration(b.BreakerCooldownSeconds) * time.Second
}

// ModelsConfig 指向可选的模型目录文件；为空时使用内置目录。
type ModelsConfig struct {
	CatalogPath string `toml:"catalog_path"`
}

type ScraperConfig struct {
	Enabled        bool   `toml:"enabled"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ExcerptChars   int    `toml:"excerpt_chars"`
	UserAgent      string `toml:"user_agent"`
	ExecPath       string `toml:"exec_path"`
}

func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// StoreConfig 指定历史记录与调用日志的 SQLite 路径；留空则不落盘。
type StoreConfig struct {
	HistoryPath string `toml:"history_path"`
	CallLogPath string `toml:"call_log_path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

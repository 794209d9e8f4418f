package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate 对配置进行基础校验。凭据缺失不在此处报错，而是在每次请求时作为配置错误返回。
func validate(c *Config) error {
	if err := c.Backend.validate(); err != nil {
		return err
	}
	if err := c.Scraper.validate(); err != nil {
		return err
	}
	return nil
}

func (b *BackendConfig) validate() error {
	u, err := url.Parse(b.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", b.BaseURL)
	}
	if b.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be > 0")
	}
	if b.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must be >= 0")
	}
	if b.MaxTokensCeiling <= 0 {
		return fmt.Errorf("backend.max_tokens_ceiling must be > 0")
	}
	if b.Temperature < 0 || b.Temperature > 2 {
		return fmt.Errorf("backend.temperature must be within [0, 2]")
	}
	if b.RatePerSecond < 0 {
		return fmt.Errorf("backend.rate_per_second must be >= 0")
	}
	if b.BreakerThreshold < 0 {
		return fmt.Errorf("backend.breaker_threshold must be >= 0")
	}
	if strings.TrimSpace(b.APIKey) == "" && strings.TrimSpace(b.APIKeyEnv) == "" {
		return fmt.Errorf("backend.api_key or backend.api_key_env is required")
	}
	return nil
}

func (s *ScraperConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if s.ExcerptChars <= 0 {
		return fmt.Errorf("scraper.excerpt_chars must be > 0")
	}
	return nil
}

package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"explorer/internal/config"
	"explorer/internal/models"
	"explorer/internal/types"
)

// StartupSummary is printed once when the service starts.
type StartupSummary struct {
	HTTPAddr    string
	BackendURL  string
	Credential  bool
	TimeoutSecs int
	Models      []types.ModelDescriptor
	Scraper     bool
	HistoryPath string
	CallLogPath string
}

func newStartupSummary(cfg *config.Config, catalog *models.Catalog, http, history, calls bool) *StartupSummary {
	s := &StartupSummary{
		BackendURL:  cfg.Backend.BaseURL,
		Credential:  cfg.Backend.Credential() != "",
		TimeoutSecs: cfg.Backend.TimeoutSeconds,
		Scraper:     cfg.Scraper.Enabled,
	}
	if catalog != nil {
		s.Models = catalog.ListAll()
	}
	if http {
		s.HTTPAddr = cfg.App.HTTPAddr
	}
	if history {
		s.HistoryPath = cfg.Store.HistoryPath
	}
	if calls {
		s.CallLogPath = cfg.Store.CallLogPath
	}
	return s
}

func (s *StartupSummary) Print() {
	s.WriteTo(os.Stdout)
}

func (s *StartupSummary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("STARTUP SUMMARY\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "[backend]\n  url: %s\n  credential: %s\n  per-call timeout: %ds\n", s.BackendURL, presence(s.Credential), s.TimeoutSecs)
	fmt.Fprintf(&b, "[models] %d\n", len(s.Models))
	for i, m := range s.Models {
		fmt.Fprintf(&b, "  %d. %s (%s, max %d tokens)\n", i+1, m.DisplayName, m.ID, m.MaxTokens)
	}
	fmt.Fprintf(&b, "[scraper] %s\n", enabled(s.Scraper))
	fmt.Fprintf(&b, "[store]\n  history: %s\n  call log: %s\n", orDash(s.HistoryPath), orDash(s.CallLogPath))
	fmt.Fprintf(&b, "[http] %s\n", orDash(s.HTTPAddr))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "MISSING"
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

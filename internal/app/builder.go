package app

import (
	"context"
	"fmt"
	"strings"

	"explorer/internal/config"
	"explorer/internal/dispatch"
	"explorer/internal/gateway/provider"
	"explorer/internal/gateway/scraper"
	"explorer/internal/logger"
	"explorer/internal/models"
	"explorer/internal/pipeline"
	"explorer/internal/pkg/circuit"
	"explorer/internal/store/calllog"
	"explorer/internal/store/gormstore"
	apihttp "explorer/internal/transport/http/api"
)

type AppBuilder struct {
	cfg     *config.Config
	cfgPath string

	catalogFn   func(config.ModelsConfig) (*models.Catalog, error)
	completerFn func(config.BackendConfig, func() string) provider.Completer
	extractorFn func(config.ScraperConfig) pipeline.Extractor
	historyFn   func(string) (*gormstore.HistoryStore, error)
	callLogFn   func(string) (*calllog.Store, error)

	skipStores bool
	skipHTTP   bool
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath enables hot reload of the given file while the app runs.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.cfgPath = strings.TrimSpace(path) }
}

// WithCompleter replaces the HTTP chat client, e.g. with a test double.
func WithCompleter(c provider.Completer) AppBuilderOption {
	return func(b *AppBuilder) {
		b.completerFn = func(config.BackendConfig, func() string) provider.Completer { return c }
	}
}

func WithExtractor(x pipeline.Extractor) AppBuilderOption {
	return func(b *AppBuilder) {
		b.extractorFn = func(config.ScraperConfig) pipeline.Extractor { return x }
	}
}

// WithoutStores skips the history and call-log databases.
func WithoutStores() AppBuilderOption {
	return func(b *AppBuilder) { b.skipStores = true }
}

// WithoutHTTP builds the pipeline only; Run then has nothing to serve.
func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) { b.skipHTTP = true }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		catalogFn:   buildCatalog,
		completerFn: buildCompleter,
		extractorFn: buildExtractor,
		historyFn:   gormstore.NewHistoryStore,
		callLogFn:   calllog.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	config.ApplyRuntime(cfg)

	a := &App{cfgPath: b.cfgPath}
	a.cfg.Store(cfg)

	catalog, err := b.catalogFn(cfg.Models)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog
	logger.Infof("✓ loaded %d models", catalog.Len())

	credential := func() string { return a.Config().Backend.Credential() }
	a.breakers = circuit.NewSet(cfg.Backend.BreakerThreshold, cfg.Backend.BreakerCooldown())
	caller := provider.NewCaller(b.completerFn(cfg.Backend, credential), provider.CallerOptions{
		MaxTokensCeiling: cfg.Backend.MaxTokensCeiling,
		Temperature:      cfg.Backend.Temperature,
		RatePerSecond:    cfg.Backend.RatePerSecond,
		Burst:            cfg.Backend.Burst,
		Breakers:         a.breakers,
	})
	dispatcher := dispatch.NewDispatcher(caller)
	dispatcher.SetTimeout(cfg.Backend.TimeoutSeconds)

	driverOpts := []pipeline.Option{
		pipeline.WithCredential(credential),
		pipeline.WithExcerptLimit(cfg.Scraper.ExcerptChars),
	}
	if x := b.extractorFn(cfg.Scraper); x != nil {
		driverOpts = append(driverOpts, pipeline.WithExtractor(x))
	}
	a.driver = pipeline.NewDriver(catalog, dispatcher, driverOpts...)

	if !b.skipStores {
		if err := b.openStores(a, cfg.Store); err != nil {
			a.Close()
			return nil, err
		}
	}
	if !b.skipHTTP {
		srvCfg := apihttp.ServerConfig{
			Addr:     cfg.App.HTTPAddr,
			Explorer: a.driver,
			Catalog:  catalog,
		}
		if a.history != nil {
			srvCfg.History = a.history
		}
		if a.calls != nil {
			srvCfg.Calls = a.calls
		}
		srv, err := apihttp.NewServer(srvCfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.api = srv
	}
	a.Summary = newStartupSummary(cfg, catalog, a.api != nil, a.history != nil, a.calls != nil)
	return a, nil
}

func (b *AppBuilder) openStores(a *App, cfg config.StoreConfig) error {
	if path := strings.TrimSpace(cfg.HistoryPath); path != "" {
		hs, err := b.historyFn(path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		a.history = hs
	}
	if path := strings.TrimSpace(cfg.CallLogPath); path != "" {
		cl, err := b.callLogFn(path)
		if err != nil {
			return fmt.Errorf("open call log: %w", err)
		}
		a.calls = cl
	}
	return nil
}

func buildCatalog(cfg config.ModelsConfig) (*models.Catalog, error) {
	return models.Resolve(cfg.CatalogPath)
}

func buildCompleter(cfg config.BackendConfig, credential func() string) provider.Completer {
	headers := map[string]string{}
	if v := strings.TrimSpace(cfg.SiteURL); v != "" {
		headers["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(cfg.AppTitle); v != "" {
		headers["X-Title"] = v
	}
	return provider.NewChatClient(cfg.BaseURL, credential, headers, cfg.MaxRetries)
}

func buildExtractor(cfg config.ScraperConfig) pipeline.Extractor {
	if !cfg.Enabled {
		return nil
	}
	return scraper.New(cfg.Timeout(), cfg.UserAgent, cfg.ExecPath)
}

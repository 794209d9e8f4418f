package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"explorer/internal/config"
	"explorer/internal/logger"
	"explorer/internal/models"
	"explorer/internal/pipeline"
	"explorer/internal/pkg/circuit"
	"explorer/internal/store/calllog"
	"explorer/internal/store/gormstore"
	"explorer/internal/types"
	apihttp "explorer/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 持有已装配好的流水线、存储与 HTTP 服务。
type App struct {
	cfgPath string
	cfg     atomic.Pointer[config.Config]

	catalog  *models.Catalog
	driver   *pipeline.Driver
	breakers *circuit.Set
	history  *gormstore.HistoryStore
	calls    *calllog.Store
	api      *apihttp.Server

	Summary *StartupSummary
}

// NewApp builds the full service from cfg.
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	return NewAppBuilder(cfg, opts...).Build(context.Background())
}

// Config returns the live configuration; it changes on hot reload.
func (a *App) Config() *config.Config {
	if a == nil {
		return nil
	}
	return a.cfg.Load()
}

func (a *App) Driver() *pipeline.Driver {
	if a == nil {
		return nil
	}
	return a.driver
}

func (a *App) Catalog() *models.Catalog {
	if a == nil {
		return nil
	}
	return a.catalog
}

// Persist writes a finished run to whichever stores are open. Without stores
// it does nothing.
func (a *App) Persist(ctx context.Context, res types.AggregateResult) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.history != nil {
		if err := a.history.SaveRun(ctx, res); err != nil {
			errs = append(errs, fmt.Errorf("save run %s: %w", res.ID, err))
		}
	}
	if a.calls != nil {
		if err := a.calls.RecordOutcomes(ctx, res.ID, res.ProducedAt, res.Outcomes); err != nil {
			errs = append(errs, fmt.Errorf("record calls for run %s: %w", res.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Reload swaps in cfg. Only runtime-safe settings take effect: log level,
// payload dumping and the backend credential.
func (a *App) Reload(cfg *config.Config) {
	if a == nil || cfg == nil {
		return
	}
	a.cfg.Store(cfg)
	config.ApplyRuntime(cfg)
}

// Run 启动 HTTP 服务并监听配置变更，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.driver == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.api == nil {
		return fmt.Errorf("http server not configured")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.cfgPath != "" {
		if err := config.Watch(a.cfgPath, a.Reload); err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.api.Start(ctx); err != nil {
			return fmt.Errorf("api http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.logOpenBreakers()
	return err
}

func (a *App) logOpenBreakers() {
	if a.breakers == nil {
		return
	}
	for id, state := range a.breakers.States() {
		if state != circuit.StateClosed {
			logger.Infof("breaker %s %s at shutdown", id, state)
		}
	}
}

// Close releases the stores. Safe to call more than once.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
		a.history = nil
	}
	if a.calls != nil {
		errs = append(errs, a.calls.Close())
		a.calls = nil
	}
	return errors.Join(errs...)
}

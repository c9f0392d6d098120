// Package app composes the tool governor from its infrastructure parts.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/audit"
	"toolgate/internal/infra/catalog"
	"toolgate/internal/infra/embedder"
	"toolgate/internal/infra/index"
	"toolgate/internal/infra/limiter"
	"toolgate/internal/infra/offload"
	"toolgate/internal/infra/permission"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/telemetry"
)

// App owns the governor and all of its supporting services.
type App struct {
	Governor *Governor

	cfg        domain.Config
	logger     *zap.Logger
	index      *index.Index
	loader     *catalog.Loader
	auditStore audit.Store
	ledger     *audit.Ledger

	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New wires the governor from a runtime config file. The returned App is
// running: the catalog is loaded and indexed, the watcher and the metrics
// listener (when enabled) are started, and stale audit records have been
// reconciled.
func New(ctx context.Context, configPath string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loader := catalog.NewLoader(logger)
	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.CatalogPath == "" {
		return nil, fmt.Errorf("config: catalogPath is required")
	}

	// A per-app registry keeps metric registration idempotent across
	// restarts within one process.
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)

	embedClient, err := embedder.NewOpenAIClient(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	idx := index.New(embedClient, index.Options{Logger: logger, Metrics: metrics})

	auditStore, err := audit.OpenBoltStore(cfg.Audit.Path)
	if err != nil {
		return nil, err
	}
	ledger := audit.NewLedger(auditStore, audit.Options{
		Config:  cfg.Audit,
		Logger:  logger,
		Metrics: metrics,
	})

	sweepCutoff := cfg.Audit.SweepCutoff
	if sweepCutoff <= 0 {
		sweepCutoff = domain.DefaultAuditSweepCutoff
	}
	if _, err := ledger.SweepStale(ctx, sweepCutoff); err != nil {
		logger.Warn("startup audit sweep failed", zap.Error(err))
	}

	gate := permission.NewGate(cfg.Permissions, logger)
	semanticRouter := router.New(idx, embedClient, gate, router.Options{
		Routing: cfg.Routing,
		Logger:  logger,
		Metrics: metrics,
	})
	callLimiter := limiter.New(limiter.NewMemoryStore(), limiter.Options{
		Limits:  cfg.Limits,
		Logger:  logger,
		Metrics: metrics,
	})
	offloader := offload.New(offload.Options{
		Config:  cfg.Offload,
		Logger:  logger,
		Metrics: metrics,
	})

	a := &App{
		Governor: NewGovernor(GovernorOptions{
			Router:    semanticRouter,
			Snapshots: idx,
			Gate:      gate,
			Limiter:   callLimiter,
			Offloader: offloader,
			Ledger:    ledger,
			Logger:    logger,
			Metrics:   metrics,
		}),
		cfg:        cfg,
		logger:     logger.Named("app"),
		index:      idx,
		loader:     loader,
		auditStore: auditStore,
		ledger:     ledger,
	}

	if err := a.Reload(ctx); err != nil {
		// A failed first build is survivable: the index published a
		// degraded snapshot and a later reload can recover.
		a.logger.Warn("initial catalog index build failed",
			telemetry.EventField(telemetry.EventIndexRebuildError),
			zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	watcher := catalog.NewWatcher(cfg.CatalogPath, func(wctx context.Context) {
		if err := a.Reload(wctx); err != nil {
			a.logger.Warn("catalog reload failed",
				telemetry.EventField(telemetry.EventIndexRebuildError),
				zap.Error(err))
		}
	}, logger)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := watcher.Run(runCtx); err != nil && runCtx.Err() == nil {
			a.logger.Warn("catalog watcher stopped", zap.Error(err))
		}
	}()

	if cfg.Observability.Enabled {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			err := telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
				Addr:     cfg.Observability.ListenAddress,
				Registry: registry,
			}, logger)
			if err != nil && runCtx.Err() == nil {
				a.logger.Warn("observability server failed", zap.Error(err))
			}
		}()
	}

	return a, nil
}

// Reload re-reads the catalog file and rebuilds the capability index.
func (a *App) Reload(ctx context.Context) error {
	parsed, err := catalog.LoadCatalog(a.cfg.CatalogPath)
	if err != nil {
		return err
	}
	return a.index.Rebuild(ctx, parsed.Tools, parsed.Skills)
}

// Config returns the effective runtime configuration.
func (a *App) Config() domain.Config {
	return a.cfg
}

// Close stops background work, drains the audit queue, and closes the
// audit store.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.wg.Wait()
		a.ledger.Close()
		if err := a.auditStore.Close(); err != nil {
			a.logger.Warn("audit store close failed", zap.Error(err))
		}
	})
}

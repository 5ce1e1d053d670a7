package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Mindburn-Labs/igcatalog/pkg/catalog"
	"github.com/Mindburn-Labs/igcatalog/pkg/chain"
	"github.com/Mindburn-Labs/igcatalog/pkg/config"
	"github.com/Mindburn-Labs/igcatalog/pkg/corpus"
	"github.com/Mindburn-Labs/igcatalog/pkg/observability"
	"github.com/Mindburn-Labs/igcatalog/pkg/reconcile"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
	"github.com/Mindburn-Labs/igcatalog/pkg/validator"
)

// app holds the configuration and shared services of one command.
type app struct {
	cfg    *config.Config
	obs    *observability.Provider
	logger *slog.Logger
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	slog.SetDefault(slog.New(newLogHandler(cfg, stderr)))

	obs, err := observability.New(ctx, cfg.ObservabilityConfig())
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	return &app{cfg: cfg, obs: obs, logger: slog.Default().With("component", "igcatalog")}, nil
}

func newLogHandler(cfg *config.Config, w io.Writer) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func (a *app) close(ctx context.Context) {
	if err := a.obs.Shutdown(ctx); err != nil {
		a.logger.WarnContext(ctx, "telemetry shutdown failed", "error", err)
	}
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	return store.New(ctx, a.cfg.StoreConfig())
}

func closeStore(s store.Store) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

func (a *app) loadCatalog(ctx context.Context, s store.Store) (*catalog.Catalog, error) {
	opts, err := a.cfg.ResolverOptions()
	if err != nil {
		return nil, err
	}
	return catalog.NewLoader(s, a.cfg.Storage.Type, catalog.NewResolver(opts), a.obs).Load(ctx)
}

func (a *app) buildChain(cat *catalog.Catalog) *chain.Chain {
	return chain.Build(cat, chain.BaseDefinitions(a.cfg.SchemaVersion()), chain.CommonTerminology())
}

// loadChain opens the store, resolves the catalog and assembles the chain.
func (a *app) loadChain(ctx context.Context) (*chain.Chain, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore(s)

	cat, err := a.loadCatalog(ctx, s)
	if err != nil {
		return nil, err
	}
	return a.buildChain(cat), nil
}

func (a *app) newValidator(holder *chain.Holder) (*validator.Validator, error) {
	engine := validator.NewStructuralEngine(nil)
	if a.cfg.DocumentSchema != "" {
		src, err := os.ReadFile(a.cfg.DocumentSchema)
		if err != nil {
			return nil, fmt.Errorf("document schema: %w", err)
		}
		schema, err := validator.CompileDocumentSchema(src)
		if err != nil {
			return nil, err
		}
		engine = validator.NewStructuralEngine(schema)
	}
	return validator.New(engine, holder, a.obs), nil
}

// desired checks the corpus dependency graph and loads its objects.
func (a *app) desired() ([]store.Object, error) {
	infos, err := corpus.NewDependencyChecker(a.cfg.IgnoreVersion).Check(a.cfg.IGDir)
	if err != nil {
		return nil, err
	}
	objects, err := corpus.Load(a.cfg.IGDir)
	if err != nil {
		return nil, err
	}
	a.logger.Info("loaded implementation guide corpus", "dir", a.cfg.IGDir, "guides", len(infos), "objects", len(objects))
	return objects, nil
}

func (a *app) reconcileOptions() []reconcile.Option {
	return []reconcile.Option{
		reconcile.WithRate(a.cfg.SyncRate),
		reconcile.WithObservability(a.obs),
	}
}

package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pranavgnn/thirdeye/internal/catalog"
	"github.com/pranavgnn/thirdeye/internal/index"
	"github.com/pranavgnn/thirdeye/internal/notify"
	"github.com/pranavgnn/thirdeye/internal/pipeline"
	"github.com/pranavgnn/thirdeye/internal/store"
	anthropicpkg "github.com/pranavgnn/thirdeye/pkg/anthropic"
	"github.com/pranavgnn/thirdeye/pkg/jina"
	"github.com/pranavgnn/thirdeye/pkg/whatsapp"
)

// pipelineEnv holds the initialized store, clients, and pipeline shared by
// the analyze/serve/reports commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	WhatsApp whatsapp.Client // nil when not configured
	Notifier *notify.Notifier
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// loadCatalog returns the violation catalog, from the configured override
// file when set.
func loadCatalog() ([]catalog.Entry, error) {
	if cfg.Catalog.Path != "" {
		entries, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, eris.Wrap(err, "load catalog file")
		}
		zap.L().Info("catalog loaded from file",
			zap.String("path", cfg.Catalog.Path),
			zap.Int("entries", len(entries)))
		return entries, nil
	}
	return catalog.Default(), nil
}

// initPipeline sets up the store, clients, and catalog index, and builds the
// pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	entries, err := loadCatalog()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	jinaClient := jina.NewClient(cfg.Jina.Key,
		jina.WithBaseURL(cfg.Jina.BaseURL),
		jina.WithModel(cfg.Jina.Model))
	idx := index.New(jinaClient, entries)

	env := &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, idx, anthropicClient, catalog.Names(entries)),
	}

	if cfg.WhatsApp.Token != "" && cfg.WhatsApp.PhoneNumberID != "" {
		env.WhatsApp = whatsapp.NewClient(cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID,
			whatsapp.WithBaseURL(cfg.WhatsApp.BaseURL))
		env.Notifier = notify.New(env.WhatsApp)
	} else {
		zap.L().Debug("whatsapp not configured, replies disabled")
	}

	return env, nil
}

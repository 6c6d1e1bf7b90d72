package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/config"
	"github.com/latticeforge/veridian/internal/discovery"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/pipeline"
	"github.com/latticeforge/veridian/internal/service"
	"github.com/latticeforge/veridian/internal/storage"
	"github.com/latticeforge/veridian/internal/storage/pgvectorstore"
)

// client bundles everything a one-shot CLI invocation needs, opened fresh
// for the lifetime of a single command — there is no long-running daemon
// process this CLI talks to, so every invocation pays its own storage
// connection cost, the same way the teacher's Client falls back to direct
// database access when substrated isn't reachable.
type client struct {
	cfg    config.NodeConfig
	facade *service.Facade
	store  storage.Storage
}

func newClient(ctx context.Context) (*client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var store storage.Storage
	for _, backend := range cfg.StorageBackends {
		if backend != config.StorageBackendPgvector {
			continue
		}
		pgStore, err := pgvectorstore.Open(ctx, pgvectorstore.Config{
			DSN: cfg.PostgresDSN,
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("opening pgvector store: %w", err)
		}
		store = pgStore
	}
	if store == nil {
		return nil, fmt.Errorf("no pgvector storage backend configured in %s", configPath)
	}

	model := llm.NewFixtureModel(512, 128, nil)

	// No MetricsPublisher: a one-shot CLI invocation doesn't run the
	// heartbeat loop that would use it, so stats stay local for the
	// duration of this command.
	pipelines := pipeline.NewSemanticService(actor.NewRealClock(), nil)
	sessions := discovery.NewSessionTable(store, model)

	return &client{
		cfg:    cfg,
		facade: service.NewFacade(pipelines, sessions),
		store:  store,
	}, nil
}

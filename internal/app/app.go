// Package app wires configuration into a ready-to-use game.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/agenthands/texty/internal/config"
	"github.com/agenthands/texty/internal/core"
	"github.com/agenthands/texty/internal/core/intent"
	"github.com/agenthands/texty/internal/core/narration"
	"github.com/agenthands/texty/internal/core/planning"
	"github.com/agenthands/texty/internal/driver"
	"github.com/agenthands/texty/internal/llm"
	"github.com/agenthands/texty/internal/store"
	"github.com/agenthands/texty/internal/telemetry"
)

type App struct {
	Config *config.Config
	Store  store.Store
	Game   *core.Game

	closers []func(context.Context) error
}

// Wire opens storage, builds the LLM client and collaborators and installs
// tracing. Close releases everything in reverse order.
func Wire(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	s, err := OpenStore(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Store = s
	a.closers = append(a.closers, func(context.Context) error { return s.Close() })

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("wire llm client: %w", err)
	}
	if c, ok := client.(io.Closer); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}

	a.Game = NewGame(s, client, cfg.Prompts)
	return a, nil
}

// NewGame builds the three collaborators on one client.
func NewGame(s store.Store, client llm.Client, prompts config.Prompts) *core.Game {
	return core.NewGame(s,
		intent.NewClassifier(client, prompts.Preamble, prompts.Intent),
		planning.NewPlanner(client, prompts.Preamble, prompts.Planning),
		narration.NewNarrator(client, prompts.Preamble, prompts.Narration),
	)
}

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		s, err := store.OpenSQLite(ctx, cfg.Storage.Path, cfg.Storage.MaxConnections)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Printf("Using sqlite store at %s", cfg.Storage.Path)
		return s, nil

	case config.BackendMemgraph:
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, cfg.Storage.MaxConnections)
		if err != nil {
			return nil, fmt.Errorf("connect to memgraph: %w", err)
		}
		if err := d.BuildIndices(ctx); err != nil {
			_ = d.Close(ctx)
			return nil, fmt.Errorf("build memgraph indices: %w", err)
		}
		log.Printf("Using memgraph store at %s", cfg.Memgraph.URI)
		return store.NewGraphStore(d), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

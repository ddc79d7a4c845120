// Package app wires the service together with a samber/do injector.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/do/v2"

	"github.com/nfrund/supportchat/internal/config"
	"github.com/nfrund/supportchat/internal/database"
	"github.com/nfrund/supportchat/internal/docstore"
	"github.com/nfrund/supportchat/internal/identity"
	"github.com/nfrund/supportchat/internal/pubsub"
	"github.com/nfrund/supportchat/internal/server"
	"github.com/nfrund/supportchat/internal/widget"
)

const connectTimeout = 30 * time.Second

// App owns the injector and everything that must be released on exit.
type App struct {
	injector *do.RootScope
	closers  []func(ctx context.Context) error
}

// New registers every service provider. Nothing is constructed until a
// service is first invoked.
func New(cfg config.Provider) *App {
	a := &App{injector: do.New()}
	i := a.injector

	do.ProvideValue[config.Provider](i, cfg)
	do.Provide(i, a.provideStore)
	do.Provide(i, a.provideBus)
	do.Provide(i, provideTokens)
	do.Provide(i, provideFeeds)
	do.Provide(i, provideCoordinator)
	do.Provide(i, provideServer)
	return a
}

// Server returns the fully wired HTTP server.
func (a *App) Server() (*server.Server, error) {
	return do.Invoke[*server.Server](a.injector)
}

// Store returns the configured document store.
func (a *App) Store() (docstore.Store, error) {
	return do.Invoke[docstore.Store](a.injector)
}

// Close releases resources in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.injector.Shutdown()
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) provideStore(i do.Injector) (docstore.Store, error) {
	cfg := do.MustInvoke[config.Provider](i)

	switch cfg.GetStoreBackend() {
	case config.BackendSurreal:
		conn := database.NewConnection(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := conn.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		conn.StartMonitoring()
		a.onClose(conn.Close)

		slog.Info("Using SurrealDB document store", "event", "store_selected", "backend", config.BackendSurreal)
		return docstore.NewSurrealStore(conn, database.NewSurrealLiveQueryService(conn)), nil

	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		store, err := docstore.NewRedisStoreFromURL(ctx, cfg.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.onClose(func(context.Context) error { return store.Close() })

		slog.Info("Using Redis document store", "event", "store_selected", "backend", config.BackendRedis)
		return store, nil

	case config.BackendMemory, "":
		store := docstore.NewMemoryStore()
		a.onClose(func(context.Context) error { return store.Close() })

		slog.Info("Using in-memory document store", "event", "store_selected", "backend", config.BackendMemory)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.GetStoreBackend())
	}
}

func (a *App) provideBus(i do.Injector) (pubsub.Bus, error) {
	bus := pubsub.NewWatermillBridge()
	a.onClose(func(context.Context) error { return bus.Close() })
	return bus, nil
}

func provideTokens(i do.Injector) (*identity.Tokens, error) {
	cfg := do.MustInvoke[config.Provider](i)
	return identity.NewTokens(cfg.GetJWTSecret()), nil
}

func provideFeeds(i do.Injector) (*widget.FeedSubscriber, error) {
	store, err := do.Invoke[docstore.Store](i)
	if err != nil {
		return nil, err
	}
	return widget.NewFeedSubscriber(store), nil
}

func provideCoordinator(i do.Injector) (*widget.Coordinator, error) {
	cfg := do.MustInvoke[config.Provider](i)
	store, err := do.Invoke[docstore.Store](i)
	if err != nil {
		return nil, err
	}
	return widget.NewCoordinator(store,
		widget.WithReplyDelay(cfg.GetReplyDelay()),
		widget.WithWriteTimeout(cfg.GetWriteTimeout()),
	), nil
}

func provideServer(i do.Injector) (*server.Server, error) {
	feeds, err := do.Invoke[*widget.FeedSubscriber](i)
	if err != nil {
		return nil, err
	}
	coord, err := do.Invoke[*widget.Coordinator](i)
	if err != nil {
		return nil, err
	}
	bus, err := do.Invoke[pubsub.Bus](i)
	if err != nil {
		return nil, err
	}

	return server.New(server.Dependencies{
		Config:      do.MustInvoke[config.Provider](i),
		Feeds:       feeds,
		Coordinator: coord,
		Tokens:      do.MustInvoke[*identity.Tokens](i),
		Bus:         bus,
	}), nil
}

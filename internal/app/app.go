// Package app wires the diagram server from its configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/diagram"
	"github.com/aretw0/diagram/internal/config"
	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/adapters/file"
	httpadapter "github.com/aretw0/diagram/pkg/adapters/http"
	"github.com/aretw0/diagram/pkg/adapters/memory"
	"github.com/aretw0/diagram/pkg/adapters/redis"
	"github.com/aretw0/diagram/pkg/adapters/websocket"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/layout"
	"github.com/aretw0/diagram/pkg/observability"
	"github.com/aretw0/diagram/pkg/persistence/middleware"
	"github.com/aretw0/diagram/pkg/ports"
	"github.com/aretw0/diagram/pkg/registry"
	"github.com/aretw0/diagram/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// App is a configured diagram server.
type App struct {
	Registry *registry.Registry
	Source   *file.Source
	Streams  *httpadapter.StreamManager
	Metrics  *observability.Metrics
	Handler  http.Handler

	cfg        config.Config
	layoutKind domain.LayoutKind
	store      ports.SnapshotStore
	websocket  *websocket.Server
	closeStore func() error
	logger     *slog.Logger
}

// New builds the server described by cfg. Metrics are registered with promReg.
func New(ctx context.Context, cfg config.Config, promReg *prometheus.Registry, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	kind, err := cfg.LayoutKind()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		layoutKind: kind,
		closeStore: func() error { return nil },
		logger:     logger,
	}
	a.Source = file.NewSource(cfg.ModelsDir, file.WithLogger(logger))

	var regOpts []registry.Option
	store, locker, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store
	regOpts = append(regOpts, registry.WithStore(store), registry.WithLogger(logger))
	if locker != nil {
		regOpts = append(regOpts, registry.WithLocker(locker))
	}

	a.Registry = registry.New(a.newSession, regOpts...)
	a.Metrics = observability.NewMetrics(promReg, a.Registry)
	a.Streams = httpadapter.NewStreamManager(logger)
	a.websocket = websocket.NewServer(a.Registry,
		websocket.WithLogger(logger),
		websocket.WithEvictOnDisconnect(cfg.EvictOnDisconnect),
	)
	a.Handler = httpadapter.NewHandler(a.Registry,
		httpadapter.WithWebSocket(a.websocket),
		httpadapter.WithGatherer(promReg),
		httpadapter.WithStreams(a.Streams),
		httpadapter.WithVersion(diagram.Version),
		httpadapter.WithLogger(logger),
	)
	return a, nil
}

// OpenStore returns the snapshot store named by cfg, wrapped in the configured
// snapshot middleware, and a locker when the store is shared.
// The returned function closes the store.
func OpenStore(ctx context.Context, cfg config.Config) (ports.SnapshotStore, ports.DistributedLocker, func() error, error) {
	mws, err := snapshotMiddleware(cfg.Snapshots)
	if err != nil {
		return nil, nil, nil, err
	}

	store, locker, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mws...), locker, closeFn, nil
}

func snapshotMiddleware(cfg config.Snapshots) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.RedactKeys) > 0 {
		mws = append(mws, middleware.NewRedactMiddleware(cfg.RedactKeys))
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for _, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return mws, nil
}

func openBackend(ctx context.Context, cfg config.Config) (ports.SnapshotStore, ports.DistributedLocker, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil, func() error { return nil }, nil
	case config.StoreFile:
		return file.NewStore(cfg.StoreDir), nil, func() error { return nil }, nil
	case config.StoreRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}
		return store, redis.NewLocker(store.Client(), store.Prefix()), store.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (a *App) openStore(ctx context.Context) (ports.SnapshotStore, ports.DistributedLocker, error) {
	store, locker, closeFn, err := OpenStore(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	a.closeStore = closeFn
	return store, locker, nil
}

func (a *App) newSession(_ context.Context, clientID string) (*session.Session, error) {
	return session.New(clientID,
		session.WithModelSource(a.Source),
		session.WithLayoutKind(a.layoutKind),
		session.WithLayoutEngine(layout.NewGrid()),
		session.WithClientLayout(a.cfg.ClientLayout),
		session.WithHooks(a.Metrics.Hooks()),
		session.WithLogger(a.logger.With("client_id", clientID)),
	), nil
}

// Refresh regenerates the model of every session showing diagramType and sends
// it as an update. It returns the number of updated sessions.
func (a *App) Refresh(ctx context.Context, diagramType string) (int, error) {
	var (
		updated int
		errs    []error
	)
	for _, clientID := range a.Registry.List() {
		s, ok := a.Registry.Lookup(clientID)
		if !ok || s.Revision() == 0 {
			continue
		}
		options := s.Options()
		shown := options[domain.OptionDiagramType]
		if shown == "" {
			shown = domain.DefaultDiagramType
		}
		if shown != diagramType {
			continue
		}

		root, err := a.Source.Generate(ctx, clientID, options)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", clientID, err))
			continue
		}
		if err := s.UpdateModel(ctx, root); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", clientID, err))
			continue
		}
		updated++
	}
	a.Streams.Broadcast(httpadapter.TopicDiagrams, diagramType)
	return updated, errors.Join(errs...)
}

// Run serves on ln until ctx is cancelled, then shuts down: the HTTP server stops,
// connections are closed and every session is evicted to the snapshot store.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Diagram server listening", "addr", ln.Addr().String(), "models_dir", a.cfg.ModelsDir)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Model watching is best-effort: the server runs without it.
	if changes, err := a.Source.Watch(ctx); err != nil {
		a.logger.Warn("Model watch disabled", "dir", a.cfg.ModelsDir, "err", err)
	} else {
		g.Go(func() error {
			for diagramType := range changes {
				n, err := a.Refresh(ctx, diagramType)
				if err != nil {
					a.logger.Warn("Model refresh incomplete", "diagram_type", diagramType, "err", err)
				}
				a.logger.Info("Model changed", "diagram_type", diagramType, "sessions", n)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return a.shutdown(srv)
	})

	return g.Wait()
}

func (a *App) shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Shutting down")
	var errs []error
	a.websocket.Close()
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("graceful shutdown did not complete: %w", err))
		_ = srv.Close()
	}
	if err := a.Registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.closeStore(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("Diagram server stopped")
	return errors.Join(errs...)
}

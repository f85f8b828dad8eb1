package daemon

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/backend"
	"github.com/matheus3301/koichat/internal/bus"
	"github.com/matheus3301/koichat/internal/config"
	"github.com/matheus3301/koichat/internal/conversation"
	"github.com/matheus3301/koichat/internal/lock"
	"github.com/matheus3301/koichat/internal/logging"
	"github.com/matheus3301/koichat/internal/profile"
	"github.com/matheus3301/koichat/internal/rpc"
	"github.com/matheus3301/koichat/internal/store"
	"github.com/matheus3301/koichat/internal/transport"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.koichat/config.toml
	LogLevel    string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideBackend,
			provideTransport,
			provideOptions,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	return config.LoadEffective(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, logging.ParseLevel(p.LogLevel))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by the
// daemon that owns the profile.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	return store.OpenMigrated(profile.DBPath(p.ProfileName), logger)
}

func provideBackend(cfg *config.Config, logger *zap.Logger) (*backend.Client, error) {
	return backend.New(cfg.Backend.APIURL, cfg.Backend.RequestTimeout, logger.Named("backend"))
}

func provideTransport(cfg *config.Config, logger *zap.Logger) *transport.Session {
	return transport.New(transport.Config{
		URL:          cfg.Backend.RealtimeURL,
		PingInterval: cfg.Realtime.PingInterval,
		PongWait:     cfg.Realtime.PongWait,
	}, logger.Named("realtime"))
}

func provideOptions(cfg *config.Config) (conversation.Options, error) {
	boundary, err := cfg.Boundary()
	if err != nil {
		return conversation.Options{}, fmt.Errorf("history boundary: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return conversation.Options{}, fmt.Errorf("display timezone: %w", err)
	}
	return conversation.Options{Boundary: boundary, Location: loc}, nil
}

func provideService(p Params, b *bus.Bus, db *store.DB, api *backend.Client, tr *transport.Session, opts conversation.Options, logger *zap.Logger) *rpc.Service {
	return rpc.NewService(rpc.Deps{
		Profile:   p.ProfileName,
		Bus:       b,
		Store:     db,
		API:       api,
		Transport: tr,
		Options:   opts,
		Logger:    logger.Named("conversation"),
	})
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, srv *Server, svc *rpc.Service, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("daemon starting",
				zap.String("api_url", cfg.Backend.APIURL),
				zap.String("realtime_url", cfg.Backend.RealtimeURL),
				zap.String("end_boundary", cfg.History.EndBoundary))

			if err := svc.Restore(); err != nil {
				logger.Warn("could not restore stored credentials", zap.Error(err))
			}

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			svc.Shutdown()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// Package app composes the sync core: one profile's store, session,
// gateway client, feeds, search, and toggles, wired through fx.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feiralabs/feira/internal/api"
	"github.com/feiralabs/feira/internal/bus"
	"github.com/feiralabs/feira/internal/config"
	"github.com/feiralabs/feira/internal/lock"
	"github.com/feiralabs/feira/internal/logging"
	"github.com/feiralabs/feira/internal/profile"
	"github.com/feiralabs/feira/internal/session"
	"github.com/feiralabs/feira/internal/social"
	"github.com/feiralabs/feira/internal/store"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the sync core, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("feira",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideSessionStore,
			provideClient,
			provideFeeds,
			provideActions,
			provideUserSearch,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogDir(p.ProfileName), p.ProfileName)
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

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSessionStore(db *store.DB, b *bus.Bus, logger *zap.Logger) *session.Store {
	return session.NewStore(db, b, logger)
}

func provideClient(cfg *config.Config, sessions *session.Store, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.API.BaseURL, cfg.Timeout(), sessions, logger)
}

func provideFeeds(c *api.Client, cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger) *social.Feeds {
	return social.NewFeeds(c, cfg, db, b, logger)
}

func provideActions(c *api.Client, feeds *social.Feeds, b *bus.Bus, logger *zap.Logger) *social.Actions {
	return social.NewActions(c, feeds, b, logger)
}

func provideUserSearch(c *api.Client, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *social.UserSearch {
	return social.NewUserSearch(c, cfg, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, sessions *session.Store, feeds *social.Feeds, _ *social.Actions, userSearch *social.UserSearch, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Snapshots first so there is something to render, then the
			// authoritative refreshes in the background.
			feeds.Restore()

			if _, err := sessions.Load(); err != nil {
				logger.Info("no session, skipping warmup")
				return nil
			}
			go warmup(feeds, cfg.Timeout(), logger)
			return nil
		},
		OnStop: func(_ context.Context) error {
			userSearch.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("sync core stopped")
			return nil
		},
	})
}

// warmup refreshes every list concurrently. Fail-soft: a list whose
// refresh fails keeps its snapshot until the UI retries.
func warmup(feeds *social.Feeds, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, refresh := range []func(context.Context) error{
		feeds.Home.Refresh,
		feeds.Notifications.Refresh,
		feeds.Chats.Refresh,
		feeds.Contacts.Refresh,
	} {
		refresh := refresh
		g.Go(func() error {
			if err := refresh(ctx); err != nil {
				logger.Warn("warmup refresh failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	logger.Info("warmup complete")
}

// Package daemon wires the pieces together: config, RPC client,
// registry, websocket watcher and the optional redis/postgres mirrors.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/mango-go/internal/blockchain/solbc"
	"github.com/rovshanmuradov/mango-go/internal/cache"
	"github.com/rovshanmuradov/mango-go/internal/config"
	"github.com/rovshanmuradov/mango-go/internal/events"
	"github.com/rovshanmuradov/mango-go/internal/logger"
	"github.com/rovshanmuradov/mango-go/internal/mango/registry"
	"github.com/rovshanmuradov/mango-go/internal/storage"
	"github.com/rovshanmuradov/mango-go/internal/storage/postgres"
	"github.com/rovshanmuradov/mango-go/internal/watcher"
)

type Runner struct {
	cfg      *config.Config
	log      *logger.Logger
	client   *solbc.Client
	registry *registry.Registry
	bus      *events.Bus
	watcher  *watcher.Watcher
	cache    *cache.Cache
	store    storage.Storage

	shutdownCh chan os.Signal
}

func NewRunner(configPath string) (*Runner, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// Every component logs with the served group attached.
	groupLog := log.WithGroup(cfg.GroupKey())

	client, err := solbc.NewClient(cfg.RPCList, groupLog)
	if err != nil {
		return nil, fmt.Errorf("init RPC client: %w", err)
	}

	bus := events.NewBus(groupLog, 256)
	reg := registry.New(client, groupLog, cfg.ProgramKey(), cfg.GroupKey(), registry.Options{
		MaxRetries: cfg.Retries,
		RetryDelay: time.Second,
	})

	r := &Runner{
		cfg:        cfg,
		log:        log,
		client:     client,
		registry:   reg,
		bus:        bus,
		shutdownCh: make(chan os.Signal, 1),
	}

	if cfg.WebSocketURL != "" {
		r.watcher = watcher.New(cfg.WebSocketURL, cfg.ProgramKey(), cfg.GroupKey(), reg, bus, groupLog)
	}

	return r, nil
}

func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.log.Info("📡 Signal received: " + sig.String())
		cancel()
	}()

	if err := r.connectMirrors(runCtx); err != nil {
		return err
	}

	loadDone := r.log.TrackPerformance("registry_load")
	if err := r.registry.Load(runCtx); err != nil {
		return fmt.Errorf("initial registry load: %w", err)
	}
	loadDone()
	r.publishRefresh()
	r.mirrorRegistry(runCtx)

	r.subscribeMirrors()

	g, gctx := errgroup.WithContext(runCtx)

	if r.watcher != nil {
		g.Go(func() error {
			err := r.watcher.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		return r.refreshLoop(gctx)
	})

	err := g.Wait()
	r.shutdown()
	if err != nil && runCtx.Err() == nil {
		return err
	}
	return nil
}

// connectMirrors sets up the optional redis and postgres sinks.
func (r *Runner) connectMirrors(ctx context.Context) error {
	if r.cfg.RedisAddr != "" {
		c, err := cache.New(ctx, r.cfg.RedisAddr, r.cfg.RedisPassword, r.cfg.Group, r.log.Logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		r.cache = c
	}
	if r.cfg.PostgresURL != "" {
		store, err := postgres.NewStorage(r.cfg.PostgresURL, r.log.Logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		r.store = store
	}
	return nil
}

// subscribeMirrors fans watcher updates out to redis and postgres.
func (r *Runner) subscribeMirrors() {
	r.bus.SubscribeFunc(events.BankUpdated, func(ctx context.Context, e events.Event) error {
		update := e.(events.BankUpdatedEvent)
		if r.cache != nil {
			if err := r.cache.PutBank(ctx, update.Bank, update.Slot); err != nil {
				return err
			}
		}
		if r.store != nil {
			return r.store.SaveBankSnapshot(ctx, bankSnapshot(update))
		}
		return nil
	})

	r.bus.SubscribeFunc(events.MarketUpdated, func(ctx context.Context, e events.Event) error {
		update := e.(events.MarketUpdatedEvent)
		if r.cache != nil {
			if err := r.cache.PutMarket(ctx, update.Market, update.Slot); err != nil {
				return err
			}
		}
		if r.store != nil {
			return r.store.UpsertMarket(ctx, marketRecord(update))
		}
		return nil
	})
}

// refreshLoop does a full registry reload on the configured interval as
// a safety net for missed websocket notifications, evicting dead RPC
// endpoints from the pool on the same cadence.
func (r *Runner) refreshLoop(ctx context.Context) error {
	interval := time.Duration(r.cfg.RefreshInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.client.HealthCheck(ctx)
			if err := r.registry.Refresh(ctx); err != nil {
				r.log.Warn("Periodic registry refresh failed", zap.Error(err))
				continue
			}
			r.publishRefresh()
			r.mirrorRegistry(ctx)
		}
	}
}

func (r *Runner) publishRefresh() {
	_ = r.bus.Publish(events.NewGroupRefreshed(
		r.cfg.GroupKey(), len(r.registry.Banks()), len(r.registry.Markets())))
}

// mirrorRegistry pushes the full registry contents to the sinks after a
// complete reload. Slot 0 marks snapshot-derived rows.
func (r *Runner) mirrorRegistry(ctx context.Context) {
	if r.cache == nil && r.store == nil {
		return
	}
	mirrorLog := r.log.WithComponent("mirror")
	for _, bank := range r.registry.Banks() {
		if r.cache != nil {
			if err := r.cache.PutBank(ctx, bank, 0); err != nil {
				mirrorLog.Warn("Bank cache mirror failed", zap.Error(err))
			}
		}
	}
	for _, market := range r.registry.Markets() {
		if r.cache != nil {
			if err := r.cache.PutMarket(ctx, market, 0); err != nil {
				mirrorLog.Warn("Market cache mirror failed", zap.Error(err))
			}
		}
		if r.store != nil {
			record := marketRecord(events.MarketUpdatedEvent{Market: market})
			if err := r.store.UpsertMarket(ctx, record); err != nil {
				mirrorLog.Warn("Market storage mirror failed", zap.Error(err))
			}
		}
	}
}

func (r *Runner) shutdown() {
	r.log.Info("👋 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.bus.Shutdown(shutdownCtx); err != nil {
		r.log.Warn("Event bus shutdown failed", zap.Error(err))
	}
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			r.log.Warn("Redis close failed", zap.Error(err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.Warn("Postgres close failed", zap.Error(err))
		}
	}
	_ = r.log.Sync()
}

package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/questgraph"
	"github.com/aretw0/questgraph/internal/config"
	"github.com/aretw0/questgraph/pkg/adapters/file"
	"github.com/aretw0/questgraph/pkg/adapters/memory"
	"github.com/aretw0/questgraph/pkg/adapters/redis"
	"github.com/aretw0/questgraph/pkg/adapters/sqlstore"
	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/observability"
	"github.com/aretw0/questgraph/pkg/persistence/middleware"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// Runtime is an engine wired from a config file, plus what it needs to shut down.
type Runtime struct {
	Engine  *questgraph.Engine
	Metrics *prometheus.Registry
	Config  *config.Config
	Logger  *slog.Logger

	closers []func() error
}

// Close releases store connections in reverse order of creation.
func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

type backendSet struct {
	store    ports.InstanceStore
	registry ports.DefinitionRegistry
	locker   ports.DistributedLocker
	close    func() error
}

// createEngine initializes an engine with standard CLI conventions: the
// configured backend and middleware, Prometheus metrics, and debug hooks
// when debug is set.
func createEngine(ctx context.Context, questPath string, cfg *config.Config, debug bool) (*Runtime, error) {
	logger, err := createLogger(cfg.Log, debug)
	if err != nil {
		return nil, err
	}
	if questPath == "" {
		questPath = cfg.Quest
	}
	if questPath == "" {
		return nil, fmt.Errorf("no quest document given (argument or quest: in config)")
	}

	rt := &Runtime{Config: cfg, Logger: logger, Metrics: prometheus.NewRegistry()}
	metrics, err := observability.NewMetrics(rt.Metrics)
	if err != nil {
		return nil, err
	}
	hooks := metrics.Hooks()
	if debug {
		hooks = observability.Combine(hooks, observability.LogHooks(logger))
	}

	format, err := codec.ParseFormat(cfg.Store.Format)
	if err != nil {
		return nil, err
	}
	set, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if set.close != nil {
		rt.closers = append(rt.closers, set.close)
	}
	store, err := wrapStore(set.store, cfg.Store)
	if err != nil {
		rt.Close()
		return nil, err
	}

	opts := []questgraph.Option{
		questgraph.WithLogger(logger),
		questgraph.WithLifecycleHooks(hooks),
		questgraph.WithStore(store),
		questgraph.WithRegistry(set.registry),
		questgraph.WithFormat(format),
		questgraph.WithCyclePolicy(cyclePolicy(cfg.Runtime.Cycles)),
		questgraph.WithMaxCascade(cfg.Runtime.MaxCascade),
	}
	if set.locker != nil {
		opts = append(opts, questgraph.WithLocker(set.locker), questgraph.WithLockTTL(cfg.Store.LockTTL))
	}
	if len(cfg.Symbols) > 0 {
		opts = append(opts, questgraph.WithResolver(memory.NewSymbols(cfg.Symbols...)))
	}

	if rt.Engine, err = questgraph.New(questPath, opts...); err != nil {
		rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	logger.Debug("engine ready", "quest", rt.Engine.Name, "backend", cfg.Store.Backend, "format", format)
	return rt, nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (backendSet, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return backendSet{
			store:    file.New(filepath.Join(cfg.Path, "instances")),
			registry: file.NewRegistry(filepath.Join(cfg.Path, "definitions")),
		}, nil

	case config.BackendRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return backendSet{}, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		storeOpts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(cfg.Redis.TTL))
		}
		return backendSet{
			store:    redis.NewFromClient(client, storeOpts...),
			registry: redis.NewRegistry(client, cfg.Redis.Prefix),
			locker:   redis.NewLocker(client, cfg.Redis.Prefix),
			close:    client.Close,
		}, nil

	case config.BackendSQLite, config.BackendPostgres:
		var (
			db  *sqlstore.DB
			err error
		)
		if cfg.Backend == config.BackendSQLite {
			db, err = sqlstore.OpenSQLite(ctx, cfg.Path)
		} else {
			db, err = sqlstore.OpenPostgres(ctx, cfg.DSN)
		}
		if err != nil {
			return backendSet{}, err
		}
		return backendSet{
			store:    sqlstore.NewStore(db),
			registry: sqlstore.NewRegistry(db),
			close:    db.Close,
		}, nil

	default:
		return backendSet{store: memory.NewStore(), registry: memory.NewRegistry()}, nil
	}
}

// wrapStore applies PII masking before encryption so masked values are
// what gets encrypted.
func wrapStore(store ports.InstanceStore, cfg config.StoreConfig) (ports.InstanceStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PII) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PII)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key must be hex: %w", err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}

func cyclePolicy(s string) questgraph.CyclePolicy {
	switch s {
	case "forbid":
		return questgraph.CycleForbid
	case "allow":
		return questgraph.CycleAllow
	default:
		return questgraph.CycleRepeatable
	}
}

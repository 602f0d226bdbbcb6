package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	innosupps "github.com/simd-personal/Inno-Supps"
	audithook "github.com/simd-personal/Inno-Supps/audit_hook"
	"github.com/simd-personal/Inno-Supps/broker"
	brokermem "github.com/simd-personal/Inno-Supps/broker/memory"
	brokerredis "github.com/simd-personal/Inno-Supps/broker/redis"
	"github.com/simd-personal/Inno-Supps/cache"
	cachemem "github.com/simd-personal/Inno-Supps/cache/memory"
	cacheredis "github.com/simd-personal/Inno-Supps/cache/redis"
	"github.com/simd-personal/Inno-Supps/engine"
	"github.com/simd-personal/Inno-Supps/jobs"
	"github.com/simd-personal/Inno-Supps/llm"
	"github.com/simd-personal/Inno-Supps/provider"
	"github.com/simd-personal/Inno-Supps/ratelimit"
	"github.com/simd-personal/Inno-Supps/store"
	bunstore "github.com/simd-personal/Inno-Supps/store/bun"
	"github.com/simd-personal/Inno-Supps/store/memory"
	"github.com/simd-personal/Inno-Supps/store/postgres"
	"github.com/simd-personal/Inno-Supps/stream"
	"github.com/simd-personal/Inno-Supps/tool"
	"github.com/simd-personal/Inno-Supps/toolkit"
)

// app is one process's wiring of the backends, engine and job bodies.
type app struct {
	cfg    innosupps.Config
	logger *slog.Logger

	store  store.Store
	broker broker.Broker
	cache  cache.Cache
	redis  *goredis.Client

	metrics *prometheus.Registry
	hub     *stream.Hub
	relay   *stream.RedisRelay
	kit     *toolkit.Kit
	tools   *tool.Registry
	eng     *engine.Engine
	jobs    *jobs.Jobs
}

func newApp(ctx context.Context, cfg innosupps.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeBackends()
		}
	}()

	if a.store, err = openStore(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}

	if cfg.Redis.URL != "" {
		opts, perr := goredis.ParseURL(cfg.Redis.URL)
		if perr != nil {
			return nil, fmt.Errorf("%w: redis.url: %v", innosupps.ErrValidation, perr)
		}
		a.redis = goredis.NewClient(opts)
		a.broker = brokerredis.New(a.redis, brokerredis.WithLogger(logger), brokerredis.WithPrefix(cfg.Redis.Prefix))
		a.cache = cacheredis.New(a.redis)
		a.relay = stream.NewRedisRelay(a.redis, cfg.Redis.Prefix+"events", logger)
	} else {
		a.broker = brokermem.New()
		a.cache = cachemem.New()
	}

	hubOpts := []stream.Option{}
	if a.relay != nil {
		hubOpts = append(hubOpts, stream.WithRelay(a.relay))
	}
	a.hub = stream.NewHub(logger, hubOpts...)

	a.metrics = prometheus.NewRegistry()
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d, err := innosupps.New(
		innosupps.WithConfig(cfg),
		innosupps.WithLogger(logger),
		innosupps.WithStore(a.store),
		innosupps.WithBroker(a.broker),
	)
	if err != nil {
		return nil, err
	}
	engOpts := []engine.Option{
		engine.WithRegisterer(a.metrics),
		engine.WithExtension(a.hub),
	}
	if cfg.Log.Audit {
		audit := audithook.New(audithook.NewSlogRecorder(logger.With(slog.String("component", "audit"))),
			audithook.WithLogger(logger))
		engOpts = append(engOpts, engine.WithExtension(audit))
	}
	if a.eng, err = engine.Build(d, engOpts...); err != nil {
		return nil, err
	}

	if a.kit, err = newKit(cfg, logger); err != nil {
		return nil, err
	}
	a.tools = tool.NewRegistry()
	if err = toolkit.Register(a.tools, a.kit); err != nil {
		return nil, err
	}

	email := ratelimit.NewEmailLimiter(ratelimit.New(a.cache), ratelimit.EmailConfig{
		Limit:    cfg.Email.RateLimit,
		Window:   cfg.Email.RateWindow,
		Cooldown: cfg.Email.Cooldown,
	})
	if a.jobs, err = jobs.Register(a.eng, jobs.Deps{
		Kit:    a.kit,
		CRM:    a.store,
		Email:  email,
		Logger: logger,
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// newKit selects mock providers in mock mode. Otherwise completions and
// transcription go to OpenAI; calendar, enrichment and mail stay mocked
// until real integrations exist.
func newKit(cfg innosupps.Config, logger *slog.Logger) (*toolkit.Kit, error) {
	providers := provider.NewMockSet(nil)
	if cfg.MockMode {
		return toolkit.New(nil, providers, toolkit.WithMockMode(true), toolkit.WithLogger(logger)), nil
	}
	openai, err := llm.NewOpenAI(cfg.LLM, nil, llm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	providers.Transcriber = provider.NewWhisper(openai.Client(), nil)
	return toolkit.New(openai, providers, toolkit.WithLogger(logger)), nil
}

func openStore(ctx context.Context, cfg innosupps.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.URL, postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "bun":
		return bunstore.New(bunstore.OpenPostgres(cfg.URL), bunstore.WithLogger(logger)), nil
	case "sqlite":
		db, err := bunstore.OpenSQLite(cfg.URL)
		if err != nil {
			return nil, err
		}
		return bunstore.New(db, bunstore.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", innosupps.ErrValidation, cfg.Driver)
	}
}

// close stops the engine, which closes the store and broker, then the
// shared Redis client.
func (a *app) close(ctx context.Context) error {
	err := a.eng.Stop(ctx)
	if a.redis != nil {
		err = errors.Join(err, a.redis.Close())
	}
	return err
}

// closeBackends releases whatever newApp opened before it failed.
func (a *app) closeBackends() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

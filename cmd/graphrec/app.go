package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/catalog"
	"github.com/rushteam/graphrec/config"
	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/engine"
	"github.com/rushteam/graphrec/experiment"
	"github.com/rushteam/graphrec/graph"
	"github.com/rushteam/graphrec/metrics"
	"github.com/rushteam/graphrec/resilience"
	"github.com/rushteam/graphrec/service"
	"github.com/rushteam/graphrec/store"
	"github.com/rushteam/graphrec/train"
)

// app 持有一次命令执行所需的全部组件。
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector

	kv      core.Store // persist.backend 为 none 时为 nil
	store   *store.EmbeddingStore
	codec   *store.SnapshotCodec
	catalog *catalog.File
}

func newApp(ctx context.Context, g *globalFlags, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.edges != "" {
		cfg.Data.Edges = g.edges
	}
	if g.catalog != "" {
		cfg.Data.Catalog = g.catalog
	}

	a := &app{
		cfg:      cfg,
		logger:   cfg.Log.NewLogger(stderr),
		registry: prometheus.NewRegistry(),
	}
	a.metrics = metrics.New(a.registry)
	a.store = store.NewEmbeddingStore(cfg.Index, a.logger, a.metrics)

	switch cfg.Persist.Backend {
	case config.BackendRedis:
		a.kv, err = store.NewRedisStore(ctx, cfg.Persist.Redis)
	case config.BackendBadger:
		a.kv, err = store.OpenBadgerStore(cfg.Persist.Badger.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Persist.Backend, err)
	}
	if a.kv != nil {
		a.codec = store.NewSnapshotCodec(a.kv, cfg.Persist.Prefix)
		a.codec.Logger = a.logger
	}

	if cfg.Data.Catalog != "" {
		if a.catalog, err = catalog.Load(cfg.Data.Catalog); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close store")
		}
	}
}

func (a *app) loadEdges(context.Context) ([]core.InteractionEdge, error) {
	if a.cfg.Data.Edges == "" {
		return nil, core.NewDomainError(core.ModuleGraph, core.ErrorCodeInvalidInput, "no edges file configured (data.edges or --edges)")
	}
	return graph.LoadEdges(a.cfg.Data.Edges)
}

func (a *app) trainer() *train.Trainer {
	return train.New(a.cfg.Train, a.logger, a.metrics)
}

// trainAndPublish 训练一个新版本并发布，配置了持久化时同时保存。
func (a *app) trainAndPublish(ctx context.Context) (*train.Result, core.ModelVersion, error) {
	edges, err := a.loadEdges(ctx)
	if err != nil {
		return nil, core.ModelVersion{}, err
	}
	res, err := a.trainer().Fit(ctx, edges)
	if err != nil {
		return nil, core.ModelVersion{}, err
	}
	v, err := a.store.Put(ctx, res.Version, res.Users, res.Items, nil)
	if err != nil {
		return nil, core.ModelVersion{}, err
	}
	if a.codec != nil {
		if err := a.store.Persist(ctx, a.codec); err != nil {
			return res, v, err
		}
	}
	return res, v, nil
}

// ensureVersion 先尝试从持久化存储恢复版本；没有保存过时用 data.edges 现场训练。
func (a *app) ensureVersion(ctx context.Context) error {
	if a.codec != nil {
		v, err := a.store.Restore(ctx, a.codec)
		if err == nil {
			a.logger.Debug().Str("version", v.String()).Msg("restored embedding version")
			return nil
		}
		if !core.IsNotFound(err) {
			return err
		}
	}
	if a.cfg.Data.Edges == "" {
		return errors.New("no published version: run `graphrec train` with a persist backend, or pass --edges")
	}
	a.logger.Info().Str("edges", a.cfg.Data.Edges).Msg("no saved version, training in process")
	_, _, err := a.trainAndPublish(ctx)
	return err
}

func (a *app) engine() (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.metrics),
		engine.WithAssigner(experiment.NewAssigner(a.cfg.Experiment.Groups...)),
		engine.WithHealth(resilience.NewGuard(nil, a.cfg.Health, a.logger, a.metrics)),
	}
	if a.catalog != nil {
		opts = append(opts, engine.WithMetadata(a.catalog))
	}
	if a.kv != nil {
		opts = append(opts, engine.WithBlockStore(a.kv))
	}
	if a.cfg.Embedder.Endpoint != "" {
		emb, err := service.NewKServeEmbedder(a.cfg.Embedder, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithEmbedder(emb))
	}
	return engine.New(a.store, a.cfg.Engine, opts...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

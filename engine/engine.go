// Package engine 组装召回、过滤、融合与截断，回答已知用户与冷启动两类推荐请求。
//
// 引擎本身无状态：每次请求从 EmbeddingSource 取一次当前版本，整个请求内使用同一版本，
// 除读取存储外没有任何副作用。
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/experiment"
	"github.com/rushteam/graphrec/filter"
	"github.com/rushteam/graphrec/metrics"
	"github.com/rushteam/graphrec/pipeline"
	"github.com/rushteam/graphrec/rank"
	"github.com/rushteam/graphrec/recall"
	"github.com/rushteam/graphrec/rerank"
	"github.com/rushteam/graphrec/resilience"
)

const (
	pathUser      = "user"
	pathColdStart = "coldstart"
)

// Health 是引擎对向量后端健康状态的依赖：询问是否健康，并上报向量路径失败。
type Health interface {
	core.HealthChecker
	ReportFailure(err error)
}

// Engine 是推荐引擎。
type Engine struct {
	source   core.EmbeddingSource
	embedder core.TextEmbedder
	metadata core.MetadataProvider
	health   Health
	assigner *experiment.Assigner
	blocks   *filter.StoreAdapter

	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// Option 配置 Engine。
type Option func(*Engine)

func WithEmbedder(e core.TextEmbedder) Option { return func(n *Engine) { n.embedder = e } }
func WithMetadata(m core.MetadataProvider) Option { return func(n *Engine) { n.metadata = m } }
func WithHealth(h Health) Option { return func(n *Engine) { n.health = h } }
func WithAssigner(a *experiment.Assigner) Option { return func(n *Engine) { n.assigner = a } }
func WithLogger(l zerolog.Logger) Option { return func(n *Engine) { n.logger = l } }
func WithMetrics(m *metrics.Collector) Option { return func(n *Engine) { n.metrics = m } }

// WithBlockStore 启用 Store 中的全局黑名单与用户屏蔽列表。
func WithBlockStore(s core.Store) Option {
	return func(n *Engine) { n.blocks = filter.NewStoreAdapter(s) }
}

// New 创建引擎。未注入 Health 时向量后端视为始终健康（仍会因召回失败而熔断）。
func New(source core.EmbeddingSource, cfg Config, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: embedding source is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.WrapDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine config", err)
	}
	e := &Engine{source: source, cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "engine").Logger()
	if e.health == nil {
		e.health = resilience.NewGuard(nil, resilience.DefaultGuardConfig(), e.logger, e.metrics)
	}
	if e.assigner == nil {
		e.assigner = experiment.NewAssigner()
	}
	return e, nil
}

// UserOptions 是已知用户请求的可选项。
type UserOptions struct {
	// FallbackToColdStart 为 true 且 ColdStart 非空时，未知用户走冷启动路径而不是报错
	FallbackToColdStart bool
	ColdStart           *core.ColdStartRequest

	ExcludeItemIDs []int64

	// Filter 是 CEL 过滤表达式，只保留求值为 true 的物品
	Filter string
}

// Bucket 返回用户所在实验分组。
func (e *Engine) Bucket(userID int64) string {
	return e.assigner.Assign(userID)
}

// RecommendForUser 按用户协同嵌入与物品嵌入的内积返回 topK 个物品，
// 分数降序，同分按物品 ID 升序。
//
// 用户没有训练嵌入时返回 UNKNOWN_USER，除非 opts 允许回退到冷启动。
// 向量后端不健康时不会返回错误：有冷启动偏好时走类型启发式，否则返回空的降级结果。
func (e *Engine) RecommendForUser(ctx context.Context, userID int64, topK int, opts UserOptions) (*core.Result, error) {
	res, err := e.recommendForUser(ctx, userID, topK, opts)
	e.observe(pathUser, res, err)
	return res, err
}

func (e *Engine) recommendForUser(ctx context.Context, userID int64, topK int, opts UserOptions) (*core.Result, error) {
	if userID < 1 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, fmt.Sprintf("user id must be >= 1, got %d", userID))
	}
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}
	var expr *filter.ExprFilter
	if strings.TrimSpace(opts.Filter) != "" {
		f, err := filter.NewExprFilter(opts.Filter)
		if err != nil {
			return nil, err
		}
		expr = f
	}
	bucket := e.assigner.Assign(userID)
	fallback := opts.FallbackToColdStart && !opts.ColdStart.Empty()

	view, reason := e.vectorView(ctx)
	if view == nil {
		res, err := e.degradedUser(ctx, userID, topK, opts, reason)
		if err != nil {
			return nil, err
		}
		res.Bucket = bucket
		return res, nil
	}

	rctx := &core.RecommendContext{UserID: userID, View: view, Bucket: bucket}
	rctx.Exclude(opts.ExcludeItemIDs...)
	e.preloadBlocks(ctx, rctx)

	diversity := e.cfg.TreatmentDiversity && bucket == experiment.Treatment
	k := topK
	filters := e.filters()
	if expr != nil {
		filters = append(filters, expr)
	}
	if diversity || expr != nil {
		// 表达式过滤与去重会丢弃候选，检索全部物品以保证 topK 准确
		k = 0
	}

	nodes := []pipeline.Node{
		e.fanout(&recall.UserEmbedding{TopK: k, Exact: e.cfg.ExactUserSearch}),
		&filter.FilterNode{Filters: filters, Logger: e.logger},
		&rank.Fusion{Weights: e.cfg.Weights},
	}
	if diversity {
		nodes = append(nodes, &rerank.Diversity{Metadata: e.metadata})
	}
	nodes = append(nodes, &rerank.TopNNode{N: topK})

	items, err := (&pipeline.Pipeline{Nodes: nodes}).Run(ctx, rctx, nil)
	if err != nil {
		if core.IsUnknownUser(err) && fallback {
			e.logger.Info().Int64("user", userID).Msg("unknown user, falling back to cold start")
			cs := *opts.ColdStart
			cs.TopK = topK
			res, cerr := e.recommendColdStart(ctx, cs, opts.ExcludeItemIDs)
			if cerr != nil {
				return nil, cerr
			}
			res.Bucket = bucket
			return res, nil
		}
		return nil, err
	}

	if failed := recall.FailedSources(rctx); len(failed) > 0 {
		res, err := e.degradedUser(ctx, userID, topK, opts, "search_failed")
		if err != nil {
			return nil, err
		}
		res.Bucket = bucket
		return res, nil
	}

	res := toResult(items)
	res.Version = view.Version().String()
	res.Bucket = bucket
	return res, nil
}

// degradedUser 是已知用户请求在向量路径不可用时的降级结果。
func (e *Engine) degradedUser(ctx context.Context, userID int64, topK int, opts UserOptions, reason string) (*core.Result, error) {
	if opts.ColdStart.Empty() {
		e.logger.Warn().Int64("user", userID).Str("reason", reason).Msg("vector path unavailable, returning empty degraded result")
		e.metrics.DegradedResponse(reason)
		return &core.Result{Items: []core.ScoredItem{}, Degraded: true}, nil
	}
	cs := *opts.ColdStart
	cs.TopK = topK
	return e.degradedGenre(ctx, cs, opts.ExcludeItemIDs, reason)
}

// RecommendColdStart 为没有历史的请求推荐：种子质心近邻、文本查询、类型启发式，
// 多个信号时按权重融合。三类信号都为空时返回 EMPTY_PREFERENCE。
func (e *Engine) RecommendColdStart(ctx context.Context, req core.ColdStartRequest) (*core.Result, error) {
	res, err := e.recommendColdStart(ctx, req, nil)
	e.observe(pathColdStart, res, err)
	return res, err
}

func (e *Engine) recommendColdStart(ctx context.Context, req core.ColdStartRequest, exclude []int64) (*core.Result, error) {
	if req.Empty() {
		return nil, core.ErrEmptyPreference
	}
	if req.TopK <= 0 {
		req.TopK = e.cfg.DefaultTopK
	}

	view, reason := e.vectorView(ctx)
	if view == nil {
		return e.degradedGenre(ctx, req, exclude, reason)
	}

	rctx := &core.RecommendContext{ColdStart: &req, View: view}
	rctx.Exclude(exclude...)
	e.preloadBlocks(ctx, rctx)

	cand := req.TopK * e.cfg.CandidateFactor
	var sources []recall.Source
	if len(req.SeedItemIDs) > 0 {
		sources = append(sources, &recall.SeedCentroid{TopK: cand})
	}
	if strings.TrimSpace(req.Query) != "" {
		sources = append(sources, &recall.TextQuery{Embedder: e.embedder, TopK: cand})
	}
	if len(recall.GenreSet(req.Genres)) > 0 {
		sources = append(sources, &recall.Genre{Metadata: e.metadata})
	}

	items, err := e.coldStartPipeline(req.TopK, sources...).Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	res := toResult(items)
	res.Version = view.Version().String()
	if failed := recall.FailedSources(rctx); len(failed) > 0 {
		if len(res.Items) == 0 {
			return e.degradedGenre(ctx, req, exclude, "search_failed")
		}
		e.logger.Warn().Strs("failed", failed).Msg("cold start served without some sources")
		e.metrics.DegradedResponse("partial")
		res.Degraded = true
	}
	return res, nil
}

func (e *Engine) coldStartPipeline(topK int, sources ...recall.Source) *pipeline.Pipeline {
	return &pipeline.Pipeline{Nodes: []pipeline.Node{
		e.fanout(sources...),
		&filter.FilterNode{Filters: e.filters(), Logger: e.logger},
		&rank.Fusion{Weights: e.cfg.Weights},
		&rerank.TopNNode{N: topK},
	}}
}

// degradedGenre 只用类型启发式推荐：优先用请求中的类型，没有时用种子物品的类型。
// 没有任何类型信号时返回空的降级结果。
func (e *Engine) degradedGenre(ctx context.Context, req core.ColdStartRequest, exclude []int64, reason string) (*core.Result, error) {
	e.metrics.DegradedResponse(reason)
	res := &core.Result{Items: []core.ScoredItem{}, Degraded: true}
	if e.metadata == nil {
		e.logger.Warn().Str("reason", reason).Msg("vector path unavailable and no metadata, returning empty degraded result")
		return res, nil
	}

	genres := req.Genres
	if len(recall.GenreSet(genres)) == 0 {
		var err error
		if genres, err = e.seedGenres(ctx, req.SeedItemIDs); err != nil {
			return nil, err
		}
	}
	if len(recall.GenreSet(genres)) == 0 {
		e.logger.Warn().Str("reason", reason).Msg("vector path unavailable and no genre signal, returning empty degraded result")
		return res, nil
	}
	e.logger.Warn().Str("reason", reason).Strs("genres", genres).Msg("vector path unavailable, serving genre heuristic")

	heuristic := core.ColdStartRequest{Genres: genres, SeedItemIDs: req.SeedItemIDs, TopK: req.TopK}
	rctx := &core.RecommendContext{ColdStart: &heuristic}
	rctx.Exclude(exclude...)
	items, err := e.coldStartPipeline(req.TopK, &recall.Genre{Metadata: e.metadata}).Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	out := toResult(items)
	out.Degraded = true
	return out, nil
}

func (e *Engine) seedGenres(ctx context.Context, seeds []int64) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, id := range seeds {
		genres, err := e.metadata.GenresOf(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, g := range genres {
			key := strings.ToLower(strings.TrimSpace(g))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, g)
		}
	}
	return out, nil
}

// vectorView 返回本次请求可用的嵌入版本；不可用时返回 nil 与原因。
func (e *Engine) vectorView(ctx context.Context) (core.EmbeddingView, string) {
	if !e.health.IsVectorBackendHealthy(ctx) {
		return nil, "unhealthy"
	}
	view, err := e.source.Current()
	if err != nil {
		return nil, "no_version"
	}
	return view, ""
}

func (e *Engine) fanout(sources ...recall.Source) *recall.Fanout {
	return &recall.Fanout{
		Sources:       sources,
		Timeout:       e.cfg.SourceTimeout,
		MaxConcurrent: e.cfg.MaxConcurrent,
		Logger:        e.logger,
		OnError: func(source string, vectorBacked bool, err error) {
			if vectorBacked {
				e.health.ReportFailure(err)
			}
		},
	}
}

// preloadBlocks 读取全局黑名单与用户屏蔽列表并并入请求级排除集合，检索阶段直接跳过这些物品。
// 读取结果缓存在 rctx 上，后续过滤器不会再访问 Store。读取失败时不屏蔽。
func (e *Engine) preloadBlocks(ctx context.Context, rctx *core.RecommendContext) {
	if e.blocks == nil {
		return
	}
	keys := []string{e.cfg.BlacklistKey}
	if rctx.UserID > 0 {
		keys = append(keys, filter.UserBlockKey(e.cfg.UserBlockPrefix, rctx.UserID))
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		ids, err := filter.LoadIDSet(ctx, rctx, e.blocks, key)
		if err != nil {
			e.logger.Warn().Err(err).Str("key", key).Msg("block list unavailable, serving without it")
			continue
		}
		for id := range ids {
			rctx.Exclude(id)
		}
	}
}

func (e *Engine) filters() []filter.Filter {
	fs := []filter.Filter{filter.NewExcludeFilter(nil, e.blocks, e.cfg.BlacklistKey)}
	if e.blocks != nil {
		fs = append(fs, filter.NewUserBlockFilter(e.blocks, e.cfg.UserBlockPrefix))
	}
	return fs
}

func (e *Engine) observe(path string, res *core.Result, err error) {
	switch {
	case err != nil:
		e.metrics.Request(path, "error")
	case res.Degraded:
		e.metrics.Request(path, "degraded")
	default:
		e.metrics.Request(path, "ok")
	}
}

func toResult(items []*core.Item) *core.Result {
	out := &core.Result{Items: make([]core.ScoredItem, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, core.ScoredItem{ItemID: it.ID, Score: it.Score, Sources: it.Sources()})
	}
	return out
}

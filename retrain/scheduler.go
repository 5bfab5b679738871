// Package retrain 按 cron 计划周期性重训并发布嵌入版本。
package retrain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/store"
	"github.com/rushteam/graphrec/train"
)

// EdgeLoader 返回本次训练使用的全部交互边。
type EdgeLoader func(ctx context.Context) ([]core.InteractionEdge, error)

// Run 记录一次重训。
type Run struct {
	Started  time.Time
	Finished time.Time
	Version  core.ModelVersion
	Err      error
}

// Scheduler 执行 加载边 → 训练 → 发布 → 持久化。
// 任何一步失败都不会影响正在服务的版本；持久化失败时新版本已发布，只记录错误。
type Scheduler struct {
	trainer *train.Trainer
	store   *store.EmbeddingStore
	load    EdgeLoader
	codec   *store.SnapshotCodec
	timeout time.Duration
	logger  zerolog.Logger

	cron *cron.Cron

	mu   sync.Mutex
	last Run
}

type Option func(*Scheduler)

// WithCodec 在每次发布后把快照写入 codec。
func WithCodec(c *store.SnapshotCodec) Option { return func(s *Scheduler) { s.codec = c } }

// WithTimeout 限制单次重训时长。
func WithTimeout(d time.Duration) Option { return func(s *Scheduler) { s.timeout = d } }

func WithLogger(l zerolog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// New 创建调度器。
func New(trainer *train.Trainer, st *store.EmbeddingStore, load EdgeLoader, opts ...Option) *Scheduler {
	s := &Scheduler{
		trainer: trainer,
		store:   st,
		load:    load,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "retrain").Logger()
	cl := cronLogger{s.logger}
	s.cron = cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	return s
}

// Schedule 注册一个 cron 计划（标准 5 段表达式或 @every 1h）。
func (s *Scheduler) Schedule(expr string) (cron.EntryID, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, core.WrapDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput, "invalid retrain schedule "+expr, err)
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("scheduled retrain failed")
		}
	}))
	s.logger.Info().Str("schedule", expr).Time("next", sched.Next(time.Now())).Msg("retrain scheduled")
	return id, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop 停止调度，返回的 ctx 在正在运行的任务结束后完成。
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Entries 返回已注册的计划。
func (s *Scheduler) Entries() []cron.Entry { return s.cron.Entries() }

// LastRun 返回最近一次重训的结果。
func (s *Scheduler) LastRun() Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunOnce 立即执行一次重训。
func (s *Scheduler) RunOnce(ctx context.Context) (core.ModelVersion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	run := Run{Started: time.Now()}
	v, err := s.run(ctx)
	run.Finished = time.Now()
	run.Version, run.Err = v, err

	s.mu.Lock()
	s.last = run
	s.mu.Unlock()

	ev := s.logger.Info()
	if err != nil {
		ev = s.logger.Error().Err(err)
	}
	ev.Str("version", v.String()).Dur("took", run.Finished.Sub(run.Started)).Msg("retrain finished")
	return v, err
}

func (s *Scheduler) run(ctx context.Context) (core.ModelVersion, error) {
	edges, err := s.load(ctx)
	if err != nil {
		return core.ModelVersion{}, fmt.Errorf("load edges: %w", err)
	}
	res, err := s.trainer.Fit(ctx, edges)
	if err != nil {
		return core.ModelVersion{}, fmt.Errorf("train: %w", err)
	}
	v, err := s.store.Put(ctx, res.Version, res.Users, res.Items, nil)
	if err != nil {
		return core.ModelVersion{}, fmt.Errorf("publish: %w", err)
	}
	if s.codec != nil {
		if err := s.store.Persist(ctx, s.codec); err != nil {
			return v, fmt.Errorf("persist %s: %w", v, err)
		}
	}
	return v, nil
}

// cronLogger 把 cron 的日志接到 zerolog。
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Fields(kv).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}

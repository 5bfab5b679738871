// Package train 在交互图上训练 LightGCN 嵌入。
//
// 训练流程：
//   - 按 Seed 初始化第 0 层嵌入，并留出部分边作为验证集
//   - 每个 epoch 打乱正样本，按 batch 采样负样本、计算 BPR 损失、反向传播、Adam 更新
//   - 每个 epoch 结束在留出边上计算 Recall@K，保留最好的一组嵌入
//   - 连续 Patience 个 epoch 没有提升则早停（Converged），跑满 MaxEpochs 则 Stopped
//
// 训练失败或被取消时不产出任何嵌入，线上版本保持不变。
package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/graph"
	"github.com/rushteam/graphrec/metrics"
	"github.com/rushteam/graphrec/model"
	"github.com/rushteam/graphrec/vector"
)

// State 是训练器状态。
type State int

const (
	Uninitialized State = iota
	Training
	Converged // 早停
	Stopped   // 达到 MaxEpochs
	Failed
)

func (s State) String() string {
	switch s {
	case Training:
		return "training"
	case Converged:
		return "converged"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Result 是一次成功训练的产出。
type Result struct {
	Version    core.ModelVersion
	Users      *vector.Table // 协同空间用户嵌入
	Items      *vector.Table // 协同空间物品嵌入
	Losses     []float64     // 每个 epoch 的平均损失
	Recalls    []float64     // 每个 epoch 的验证 Recall@K（无验证集时为空）
	BestEpoch  int           // 从 1 开始
	BestRecall float64
	State      State
}

// ErrBusy 表示训练器正在运行。
var ErrBusy = errors.New("train: trainer is already running")

// Trainer 管理训练状态机。同一时刻只允许一次训练。
type Trainer struct {
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu      sync.Mutex
	state   State
	running bool
}

// New 创建训练器。
func New(cfg Config, logger zerolog.Logger, m *metrics.Collector) *Trainer {
	return &Trainer{
		cfg:     cfg,
		logger:  logger.With().Str("component", "train").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// State 返回当前状态。
func (t *Trainer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Trainer) begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrBusy
	}
	t.running = true
	t.state = Training
	return nil
}

func (t *Trainer) finish(s State) {
	t.mu.Lock()
	t.running = false
	t.state = s
	t.mu.Unlock()
	t.metrics.TrainingFinished(s.String())
}

// Fit 由交互边构建图并训练。负采样耗尽时放宽采样参数重试一次。
func (t *Trainer) Fit(ctx context.Context, edges []core.InteractionEdge) (*Result, error) {
	g, err := graph.Build(edges)
	if err != nil {
		// 另一次训练仍在进行时不覆盖它的状态
		t.mu.Lock()
		busy := t.running
		if !busy {
			t.state = Failed
		}
		t.mu.Unlock()
		if !busy {
			t.metrics.TrainingFinished(Failed.String())
		}
		return nil, err
	}

	res, err := t.Train(ctx, g)
	if err == nil || !core.IsNegativeSamplingExhausted(err) || t.cfg.SkipSaturated {
		return res, err
	}
	t.logger.Warn().Err(err).Msg("negative sampling exhausted, retrying with relaxed bounds")
	return t.train(ctx, g, t.cfg.relaxed())
}

// Train 在给定图上执行一次训练。
func (t *Trainer) Train(ctx context.Context, g *graph.Graph) (*Result, error) {
	return t.train(ctx, g, t.cfg)
}

func (t *Trainer) train(ctx context.Context, g *graph.Graph, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := t.begin(); err != nil {
		return nil, err
	}

	res, err := t.run(ctx, g, cfg)
	if err != nil {
		t.finish(Failed)
		t.logger.Error().Err(err).Msg("training failed")
		return nil, err
	}
	t.finish(res.State)
	t.logger.Info().
		Str("version", res.Version.Tag).
		Str("state", res.State.String()).
		Int("epochs", len(res.Losses)).
		Int("best_epoch", res.BestEpoch).
		Float64("best_recall", res.BestRecall).
		Msg("training finished")
	return res, nil
}

func (t *Trainer) run(ctx context.Context, full *graph.Graph, cfg Config) (*Result, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	trainG, holdout := full.Split(cfg.HoldoutRatio, rng)

	net := model.NewLightGCN(trainG, cfg.Layers)
	e0 := model.RandomEmbeddings(trainG.NumUsers(), trainG.NumItems(), cfg.Dim, cfg.InitStd, rng)
	opt := model.NewAdam(cfg.LearningRate)
	sampler := NewSampler(full, rng, cfg.NegativeRetries)
	eval := newEvaluator(trainG, holdout, cfg.RecallK)

	positives := make([]model.Triplet, 0, trainG.NumEdges())
	for u := 0; u < trainG.NumUsers(); u++ {
		if cfg.SkipSaturated && sampler.Saturated(u) {
			continue
		}
		for _, i := range trainG.UserAdj(u) {
			positives = append(positives, model.Triplet{User: u, Pos: i})
		}
	}
	if len(positives) == 0 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeNegativeSamplingExhausted,
			"train: every user has interacted with every item")
	}

	res := &Result{State: Stopped}
	best := e0.Clone()
	bestScore := math.Inf(-1)
	since := 0

	for epoch := 1; epoch <= cfg.MaxEpochs; epoch++ {
		rng.Shuffle(len(positives), func(a, b int) { positives[a], positives[b] = positives[b], positives[a] })

		var sum float64
		for start := 0; start < len(positives); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			end := start + cfg.BatchSize
			if end > len(positives) {
				end = len(positives)
			}
			batch := positives[start:end]
			for k := range batch {
				j, err := sampler.Negative(batch[k].User)
				if err != nil {
					return nil, err
				}
				batch[k].Neg = j
			}
			loss, grad, err := net.LossAndGrad(ctx, e0, batch, cfg.Lambda)
			if err != nil {
				return nil, err
			}
			opt.Step(e0, grad)
			sum += loss * float64(len(batch))
		}
		loss := sum / float64(len(positives))
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInternalError,
				fmt.Sprintf("train: loss diverged at epoch %d", epoch))
		}
		res.Losses = append(res.Losses, loss)

		// 有验证集时按 Recall@K 选最优，否则按损失
		score := -loss
		var recall float64
		if eval.enabled() {
			final, err := net.Forward(ctx, e0)
			if err != nil {
				return nil, err
			}
			recall, err = eval.recall(ctx, final)
			if err != nil {
				return nil, err
			}
			res.Recalls = append(res.Recalls, recall)
			score = recall
		}
		t.metrics.ObserveEpoch(loss, recall, eval.enabled())
		t.logger.Debug().Int("epoch", epoch).Float64("loss", loss).Float64("recall", recall).Msg("epoch finished")

		if score > bestScore+cfg.MinDelta {
			bestScore = score
			best = e0.Clone()
			res.BestEpoch = epoch
			res.BestRecall = recall
			since = 0
		} else {
			since++
		}
		if cfg.Patience > 0 && since >= cfg.Patience {
			res.State = Converged
			break
		}
	}

	final, err := net.Forward(ctx, best)
	if err != nil {
		return nil, err
	}
	if res.Users, err = vector.NewTable(cfg.Dim, trainG.Users(), final.Users); err != nil {
		return nil, err
	}
	if res.Items, err = vector.NewTable(cfg.Dim, trainG.Items(), final.Items); err != nil {
		return nil, err
	}
	res.Version = core.ModelVersion{Tag: uuid.NewString(), CreatedAt: t.now()}
	return res, nil
}

package recall

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pipeline"
	"github.com/rushteam/graphrec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，按物品 ID 合并结果。
//
// 单个召回源失败或超时不会中断其他源：失败的源名记录在请求级 label
// recall_failed 上，并回调 OnError。两种错误例外，直接返回给调用方：
// 父 ctx 已取消，以及 UNKNOWN_USER（调用方据此决定是否走冷启动）。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）

	// OnError 在召回源失败时调用，vectorBacked 表示该源依赖向量后端。
	OnError func(source string, vectorBacked bool, err error)

	Logger zerolog.Logger
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([][]*core.Item, len(n.Sources))
	errs := make([]error, len(n.Sources))

	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}
			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				if core.IsUnknownUser(err) {
					return err
				}
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		src := n.Sources[i]
		n.Logger.Warn().Err(err).Str("source", src.Name()).Msg("recall source failed")
		rctx.PutLabel(core.LabelRecallFailed, utils.Label{Value: src.Name(), Source: "recall"})
		if n.OnError != nil {
			n.OnError(src.Name(), isVectorBacked(src), err)
		}
	}
	return n.merge(results), nil
}

// merge 按 ID 去重，保留首次出现的 Item，并合并其他源的特征与 label。
func (n *Fanout) merge(results [][]*core.Item) []*core.Item {
	seen := make(map[int64]*core.Item)
	var out []*core.Item
	for i, items := range results {
		name := n.Sources[i].Name()
		for _, it := range items {
			if it == nil {
				continue
			}
			it.PutLabel(core.LabelRecallSource, utils.Label{Value: name, Source: "recall"})
			old, ok := seen[it.ID]
			if !ok {
				seen[it.ID] = it
				out = append(out, it)
				continue
			}
			for k, v := range it.Features {
				old.SetFeature(k, v)
			}
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
		}
	}
	return out
}

// FailedSources 返回本次请求中失败的召回源。
func FailedSources(rctx *core.RecommendContext) []string {
	lbl, ok := rctx.GetLabel(core.LabelRecallFailed)
	if !ok {
		return nil
	}
	return utils.SplitLabelValue(lbl.Value)
}

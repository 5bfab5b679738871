package pipeline

import (
	"context"

	"github.com/rushteam/graphrec/core"
)

// Kind 标记 Node 所处阶段，用于日志与指标分组。
type Kind string

const (
	KindRecall      Kind = "recall"      // 召回阶段：生成候选集
	KindFilter      Kind = "filter"      // 过滤阶段：剔除不符合约束的候选
	KindRank        Kind = "rank"        // 排序阶段：融合各召回源分数
	KindReRank      Kind = "rerank"      // 重排阶段：多样性与截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：补充标签等
)

// Node 是 Pipeline 的最小可扩展单元，统一为“输入 items -> 输出 items”。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeFunc 把普通函数适配为 Node。
type NodeFunc struct {
	NodeName string
	NodeKind Kind
	Fn       func(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error)
}

func (f NodeFunc) Name() string { return f.NodeName }
func (f NodeFunc) Kind() Kind   { return f.NodeKind }

func (f NodeFunc) Process(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return f.Fn(ctx, rctx, items)
}

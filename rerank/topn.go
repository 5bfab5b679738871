package rerank

import (
	"context"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pipeline"
	"github.com/rushteam/graphrec/rank"
)

// TopNNode 按分数降序（同分 ID 升序）排序后截取前 N 个物品。
// N <= 0 时不截断。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	rank.SortItems(items)
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/graphrec/core"
)

// Pipeline 把一次推荐拆成可组合的 Node 链：召回 → 过滤 → 融合排序 → 截断。
type Pipeline struct {
	Nodes []Node
}

// Run 依次执行各 Node。每个 Node 执行前检查 ctx，请求超时后不再继续。
// Node 返回的错误会带上 Node 名称，原始错误仍可通过 errors.Is / errors.As 取到。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Append 返回追加了 nodes 的新 Pipeline，原 Pipeline 不变。
func (p *Pipeline) Append(nodes ...Node) *Pipeline {
	out := make([]Node, 0, len(p.Nodes)+len(nodes))
	out = append(out, p.Nodes...)
	out = append(out, nodes...)
	return &Pipeline{Nodes: out}
}

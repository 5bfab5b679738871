package filter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pipeline"
	"github.com/rushteam/graphrec/pkg/utils"
)

// FilterNode 组合多个过滤器，任何一个过滤器命中，物品即被移除。
// 过滤器求值出错时记录日志并保留该物品。
type FilterNode struct {
	Filters []Filter
	Logger  zerolog.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		reason := ""
		for _, f := range n.Filters {
			hit, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				n.Logger.Debug().Err(err).Str("filter", f.Name()).Int64("item", item.ID).Msg("filter error, item kept")
				continue
			}
			if hit {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			item.PutLabel(core.LabelFiltered, utils.Label{Value: "true", Source: reason})
			continue
		}
		out = append(out, item)
	}
	if dropped := len(items) - len(out); dropped > 0 {
		n.Logger.Debug().Int("dropped", dropped).Int("kept", len(out)).Msg("candidates filtered")
	}
	return out, nil
}

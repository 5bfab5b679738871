package rerank

import (
	"context"
	"strings"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pipeline"
	"github.com/rushteam/graphrec/pkg/utils"
)

// Diversity 按主类型去重：同一主类型只保留排在最前的物品，其余顺序不变。
// 主类型取 label["genre"] 的第一个值；没有 label 时通过 Metadata 查询并补写 label。
// 没有类型的物品总是保留。
type Diversity struct {
	LabelKey string // 默认 "genre"
	Metadata core.MetadataProvider
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	key := n.LabelKey
	if key == "" {
		key = core.LabelGenre
	}

	seen := make(map[string]bool, 32)
	out := make([]*core.Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}
		primary := strings.ToLower(strings.TrimSpace(n.primary(ctx, key, it)))
		if primary == "" {
			out = append(out, it)
			continue
		}
		if seen[primary] {
			continue
		}
		seen[primary] = true
		out = append(out, it)
	}

	return out, nil
}

func (n *Diversity) primary(ctx context.Context, key string, it *core.Item) string {
	if lbl, ok := it.Labels[key]; ok {
		if vals := utils.SplitLabelValue(lbl.Value); len(vals) > 0 {
			return vals[0]
		}
	}
	if n.Metadata == nil {
		return ""
	}
	genres, err := n.Metadata.GenresOf(ctx, it.ID)
	if err != nil || len(genres) == 0 {
		return ""
	}
	it.PutLabel(key, utils.Label{Value: strings.Join(genres, "|"), Source: "metadata"})
	return genres[0]
}

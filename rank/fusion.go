package rank

import (
	"context"
	"sort"
	"strings"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pipeline"
	"github.com/rushteam/graphrec/recall"
)

const scorePrefix = "recall."

// DefaultWeights 是冷启动各信号的默认融合权重。
// 只有实际召回到候选的源参与融合，权重在这些源之间重新归一化。
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		recall.SourceUserEmbedding: 1,
		recall.SourceSeedCentroid:  0.5,
		recall.SourceTextQuery:     0.3,
		recall.SourceGenre:         0.2,
	}
}

// Fusion 把多个召回源的分数融合为最终分数。
//
// 每个源的原始分数先在本次候选内做 min-max 归一化到 [0,1]（只有一个候选或
// 分数全部相同时记为 1），再按权重加权求和；没有被某个源召回的候选在该源上记 0。
// 只有一个源召回到候选时直接使用它的原始分数。
// 输出按分数降序、同分按 ID 升序排列。
type Fusion struct {
	Weights map[string]float64 // 为空时使用 DefaultWeights
}

func (n *Fusion) Name() string        { return "rank.fusion" }
func (n *Fusion) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *Fusion) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	active := ActiveSources(items)

	switch len(active) {
	case 0:
	case 1:
		key := scorePrefix + active[0]
		for _, it := range items {
			it.Score = it.Features[key]
		}
	default:
		weights := n.Weights
		if len(weights) == 0 {
			weights = DefaultWeights()
		}
		var total float64
		for _, src := range active {
			total += weights[src]
		}
		for _, it := range items {
			it.Score = 0
		}
		for _, src := range active {
			w := 1 / float64(len(active))
			if total > 0 {
				w = weights[src] / total
			}
			key := scorePrefix + src
			lo, hi := bounds(items, key)
			for _, it := range items {
				raw, ok := it.Features[key]
				if !ok {
					continue
				}
				norm := MinMax(raw, lo, hi)
				it.SetFeature("fusion."+src, norm)
				it.Score += w * norm
			}
		}
	}

	SortItems(items)
	return items, nil
}

// ActiveSources 返回在 items 中出现过分数的召回源，按名称排序。
func ActiveSources(items []*core.Item) []string {
	seen := make(map[string]struct{})
	for _, it := range items {
		for k := range it.Features {
			if src, ok := strings.CutPrefix(k, scorePrefix); ok {
				seen[src] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for src := range seen {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

func bounds(items []*core.Item, key string) (lo, hi float64) {
	first := true
	for _, it := range items {
		v, ok := it.Features[key]
		if !ok {
			continue
		}
		if first || v < lo {
			lo = v
		}
		if first || v > hi {
			hi = v
		}
		first = false
	}
	return lo, hi
}

// MinMax 把 v 从 [lo,hi] 映射到 [0,1]；区间退化时返回 1。
func MinMax(v, lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	return (v - lo) / (hi - lo)
}

// SortItems 按分数降序排序，同分按 ID 升序。
func SortItems(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}

package recall

import (
	"context"

	"github.com/rushteam/graphrec/core"
)

// Source 是一个召回源（用户嵌入 / 种子质心 / 文本查询 / 类型启发式）。
// 返回的 Item.Score 是该源自己的原始分数，不同源的分数尺度不可直接比较。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// 召回源名称，同时作为 recall_source label 的值。
const (
	SourceUserEmbedding = "user_embedding"
	SourceSeedCentroid  = "seed_centroid"
	SourceTextQuery     = "text_query"
	SourceGenre         = "genre"
)

// ScoreFeature 返回保存某个源原始分数的特征名。
func ScoreFeature(source string) string {
	return "recall." + source
}

// VectorBacked 由依赖向量后端的召回源实现，失败时需要上报健康检查。
type VectorBacked interface {
	VectorBacked() bool
}

func isVectorBacked(s Source) bool {
	vb, ok := s.(VectorBacked)
	return ok && vb.VectorBacked()
}

func toItems(source string, hits []core.VectorSearchItem) []*core.Item {
	out := make([]*core.Item, 0, len(hits))
	for _, h := range hits {
		it := core.NewItem(h.ID)
		it.Score = h.Score
		it.SetFeature(ScoreFeature(source), h.Score)
		out = append(out, it)
	}
	return out
}

package recall

import (
	"context"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/vector"
)

// SeedCentroid 以种子物品协同嵌入的质心作为合成用户向量检索近邻。
// 没有嵌入的种子被忽略；一个都解析不到时返回空结果。种子本身不会被召回。
type SeedCentroid struct {
	TopK int
}

func (r *SeedCentroid) Name() string       { return SourceSeedCentroid }
func (r *SeedCentroid) VectorBacked() bool { return true }

func (r *SeedCentroid) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.ColdStart == nil || len(rctx.ColdStart.SeedItemIDs) == 0 {
		return nil, nil
	}
	if rctx.View == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeVectorBackendUnavailable, "no embedding version")
	}
	centroid, ok := SeedVector(rctx.View, rctx.ColdStart.SeedItemIDs)
	if !ok {
		return nil, nil
	}

	exclude := make(map[int64]struct{}, len(rctx.ColdStart.SeedItemIDs)+len(rctx.Excluded()))
	for id := range rctx.Excluded() {
		exclude[id] = struct{}{}
	}
	for _, id := range rctx.ColdStart.SeedItemIDs {
		exclude[id] = struct{}{}
	}
	k := r.TopK
	if k <= 0 {
		k = 10
	}
	res, err := rctx.View.Search(ctx, &core.VectorSearchRequest{
		Space:   core.SpaceCollaborative,
		Vector:  centroid,
		TopK:    k,
		Exclude: exclude,
	})
	if err != nil {
		return nil, err
	}
	return toItems(SourceSeedCentroid, res.Items), nil
}

// SeedVector 返回种子物品协同嵌入的质心，ok=false 表示没有任何种子有嵌入。
func SeedVector(view core.EmbeddingView, seeds []int64) ([]float64, bool) {
	vecs := make([][]float64, 0, len(seeds))
	seen := make(map[int64]struct{}, len(seeds))
	for _, id := range seeds {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		v, err := view.ItemVector(id, core.SpaceCollaborative)
		if err != nil {
			continue
		}
		vecs = append(vecs, v)
	}
	if len(vecs) == 0 {
		return nil, false
	}
	return vector.Centroid(vecs), true
}

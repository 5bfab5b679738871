package recall

import (
	"context"
	"sort"
	"strings"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pkg/utils"
)

// Genre 是不依赖嵌入的类型启发式召回：按请求类型与物品类型的 Jaccard 相似度排序，
// 没有任何重合的物品不召回。向量后端不可用时引擎退回到这个源。
type Genre struct {
	Metadata core.MetadataProvider
	TopK     int // <= 0 表示不截断
}

func (r *Genre) Name() string { return SourceGenre }

func (r *Genre) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.ColdStart == nil || len(rctx.ColdStart.Genres) == 0 {
		return nil, nil
	}
	if r.Metadata == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "no metadata provider configured")
	}
	want := GenreSet(rctx.ColdStart.Genres)
	if len(want) == 0 {
		return nil, nil
	}

	catalog, err := r.Metadata.CatalogItems(ctx)
	if err != nil {
		return nil, err
	}
	skip := rctx.Excluded()
	seeds := make(map[int64]struct{}, len(rctx.ColdStart.SeedItemIDs))
	for _, id := range rctx.ColdStart.SeedItemIDs {
		seeds[id] = struct{}{}
	}

	var out []*core.Item
	for _, id := range catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := skip[id]; ok {
			continue
		}
		if _, ok := seeds[id]; ok {
			continue
		}
		genres, err := r.Metadata.GenresOf(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		score := Jaccard(want, GenreSet(genres))
		if score <= 0 {
			continue
		}
		it := core.NewItem(id)
		it.Score = score
		it.SetFeature(ScoreFeature(SourceGenre), score)
		it.PutLabel(core.LabelGenre, utils.Label{Value: strings.Join(genres, "|"), Source: "metadata"})
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if r.TopK > 0 && len(out) > r.TopK {
		out = out[:r.TopK]
	}
	return out, nil
}

// GenreSet 把类型列表规范化为小写去空白的集合。
func GenreSet(genres []string) map[string]struct{} {
	set := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			set[g] = struct{}{}
		}
	}
	return set
}

// Jaccard 返回 |a∩b| / |a∪b|，任一为空时为 0。
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

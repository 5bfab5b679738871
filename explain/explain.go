// Package explain 根据实际评分输入生成推荐理由：共同类型、靠近的种子物品、
// 协同分数百分位。文本只由这些事实拼出。
package explain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/recall"
	"github.com/rushteam/graphrec/vector"
)

// Request 描述要解释的物品与请求方。UserID 为 0 表示冷启动请求。
type Request struct {
	ItemID      int64    `json:"item_id"`
	UserID      int64    `json:"user_id,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	SeedItemIDs []int64  `json:"seed_item_ids,omitempty"`
}

// Explanation 是结构化事实加上由事实拼出的文本。
type Explanation struct {
	ItemID        int64            `json:"item_id"`
	SharedGenres  []string         `json:"shared_genres,omitempty"`
	NearSeeds     []SeedSimilarity `json:"near_seeds,omitempty"`
	Percentile    float64          `json:"percentile,omitempty"`
	HasPercentile bool             `json:"has_percentile"`
	Version       string           `json:"version,omitempty"`
	Text          string           `json:"text"`
}

// SeedSimilarity 是物品与某个种子在协同空间的余弦相似度。
type SeedSimilarity struct {
	SeedID     int64   `json:"seed_id"`
	Similarity float64 `json:"similarity"`
}

// Titler 是可选的元数据能力，提供物品标题用于文本。
type Titler interface {
	TitleOf(ctx context.Context, itemID int64) (string, bool)
}

// Explainer 生成推荐理由。
type Explainer struct {
	source   core.EmbeddingSource
	metadata core.MetadataProvider

	// SeedThreshold 是判定“靠近种子”的最小余弦相似度
	SeedThreshold float64
}

func NewExplainer(source core.EmbeddingSource, metadata core.MetadataProvider) *Explainer {
	return &Explainer{source: source, metadata: metadata, SeedThreshold: 0.5}
}

// Explain 收集事实并生成文本。嵌入或元数据缺失时对应的事实为空，不会报错。
func (e *Explainer) Explain(ctx context.Context, req Request) (*Explanation, error) {
	if req.ItemID == 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "item id is required")
	}
	out := &Explanation{ItemID: req.ItemID}

	if e.metadata != nil && len(req.Genres) > 0 {
		genres, err := e.metadata.GenresOf(ctx, req.ItemID)
		if err != nil && !core.IsNotFound(err) {
			return nil, fmt.Errorf("genres of %d: %w", req.ItemID, err)
		}
		out.SharedGenres = sharedGenres(req.Genres, genres)
	}

	var view core.EmbeddingView
	if e.source != nil {
		if v, err := e.source.Current(); err == nil {
			view = v
			out.Version = v.Version().String()
		}
	}
	if view != nil {
		if item, err := view.ItemVector(req.ItemID, core.SpaceCollaborative); err == nil {
			out.NearSeeds = e.nearSeeds(view, item, req)
			if req.UserID != 0 {
				if p, ok, err := percentile(ctx, view, req.UserID, item); err != nil {
					return nil, err
				} else if ok {
					out.Percentile, out.HasPercentile = p, true
				}
			}
		}
	}

	out.Text = e.render(ctx, out)
	return out, nil
}

func sharedGenres(requested, item []string) []string {
	want := recall.GenreSet(requested)
	var out []string
	seen := make(map[string]struct{})
	for _, g := range item {
		key := strings.ToLower(strings.TrimSpace(g))
		if _, ok := want[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(g))
	}
	return out
}

func (e *Explainer) nearSeeds(view core.EmbeddingView, item []float64, req Request) []SeedSimilarity {
	var out []SeedSimilarity
	for _, seed := range req.SeedItemIDs {
		if seed == req.ItemID {
			continue
		}
		v, err := view.ItemVector(seed, core.SpaceCollaborative)
		if err != nil {
			continue
		}
		if sim := vector.Cosine(item, v); sim >= e.SeedThreshold {
			out = append(out, SeedSimilarity{SeedID: seed, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].SeedID < out[j].SeedID
	})
	return out
}

// percentile 返回物品的用户分数高于目录中其他物品的比例（0-100）。
func percentile(ctx context.Context, view core.EmbeddingView, userID int64, item []float64) (float64, bool, error) {
	user, err := view.UserVector(userID)
	if err != nil {
		return 0, false, nil
	}
	target := vector.Dot(user, item)
	ids := view.ItemIDs(core.SpaceCollaborative)
	if len(ids) <= 1 {
		return 100, true, nil
	}
	below := 0
	for i, id := range ids {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, false, err
			}
		}
		v, err := view.ItemVector(id, core.SpaceCollaborative)
		if err != nil {
			continue
		}
		if vector.Dot(user, v) < target {
			below++
		}
	}
	return 100 * float64(below) / float64(len(ids)-1), true, nil
}

func (e *Explainer) title(ctx context.Context, id int64) string {
	if t, ok := e.metadata.(Titler); ok {
		if s, ok := t.TitleOf(ctx, id); ok && s != "" {
			return s
		}
	}
	return "item " + strconv.FormatInt(id, 10)
}

func (e *Explainer) render(ctx context.Context, x *Explanation) string {
	var parts []string
	if len(x.SharedGenres) > 0 {
		parts = append(parts, "Matches your genres: "+strings.Join(x.SharedGenres, ", ")+".")
	}
	if len(x.NearSeeds) > 0 {
		names := make([]string, len(x.NearSeeds))
		for i, s := range x.NearSeeds {
			names[i] = e.title(ctx, s.SeedID)
		}
		parts = append(parts, "Similar to what you liked: "+strings.Join(names, ", ")+".")
	}
	if x.HasPercentile {
		parts = append(parts, fmt.Sprintf("Scores above %d%% of the catalog for you.", int(math.Floor(x.Percentile))))
	}
	if len(parts) == 0 {
		return "No shared genres, liked items or personal score support this item."
	}
	return strings.Join(parts, " ")
}

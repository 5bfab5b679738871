package recall

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/graphrec/core"
)

// TextQuery 把自由文本查询编码后在内容空间检索（余弦相似度）。
type TextQuery struct {
	Embedder core.TextEmbedder
	TopK     int
}

func (r *TextQuery) Name() string       { return SourceTextQuery }
func (r *TextQuery) VectorBacked() bool { return true }

func (r *TextQuery) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.ColdStart == nil || strings.TrimSpace(rctx.ColdStart.Query) == "" {
		return nil, nil
	}
	if r.Embedder == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "no text embedder configured")
	}
	if rctx.View == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeVectorBackendUnavailable, "no embedding version")
	}
	q, err := r.Embedder.Embed(ctx, rctx.ColdStart.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
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
		Space:   core.SpaceContent,
		Vector:  q,
		TopK:    k,
		Exclude: exclude,
	})
	if err != nil {
		return nil, err
	}
	return toItems(SourceTextQuery, res.Items), nil
}

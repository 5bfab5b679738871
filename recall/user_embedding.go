package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/graphrec/core"
)

// UserEmbedding 用用户的协同嵌入与全部物品做内积检索。
// 用户没有训练嵌入时返回 UNKNOWN_USER。
type UserEmbedding struct {
	TopK  int
	Exact bool // 强制精确检索，忽略 ANN 索引
}

func (r *UserEmbedding) Name() string       { return SourceUserEmbedding }
func (r *UserEmbedding) VectorBacked() bool { return true }

func (r *UserEmbedding) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.View == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeVectorBackendUnavailable, "no embedding version")
	}
	vec, err := rctx.View.UserVector(rctx.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.WrapDomainError(core.ModuleEngine, core.ErrorCodeUnknownUser,
				fmt.Sprintf("user %d has no trained embedding", rctx.UserID), err)
		}
		return nil, err
	}
	k := r.TopK
	if k <= 0 {
		k = len(rctx.View.ItemIDs(core.SpaceCollaborative))
	}
	if k == 0 {
		return nil, nil
	}
	res, err := rctx.View.Search(ctx, &core.VectorSearchRequest{
		Space:   core.SpaceCollaborative,
		Vector:  vec,
		TopK:    k,
		Exclude: rctx.Excluded(),
		Exact:   r.Exact,
	})
	if err != nil {
		return nil, err
	}
	return toItems(SourceUserEmbedding, res.Items), nil
}

package filter

import (
	"context"

	"github.com/rushteam/graphrec/core"
)

// Filter 判断一个候选是否应被移除：返回 true 表示移除，false 表示保留。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

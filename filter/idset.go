package filter

import (
	"context"

	"github.com/rushteam/graphrec/core"
)

// idSet 是一次请求内缓存的 ID 列表读取结果。读取失败同样缓存，同一请求不再重试。
type idSet struct {
	ids map[int64]struct{}
	err error
}

func idSetParam(key string) string { return "idset:" + key }

// LoadIDSet 读取 key 对应的 ID 列表，结果缓存在 rctx.Params 上，
// 同一请求内对同一个 key 只访问一次 Store。key 不存在视为空集合。
func LoadIDSet(ctx context.Context, rctx *core.RecommendContext, s BlacklistStore, key string) (map[int64]struct{}, error) {
	if rctx != nil && rctx.Params != nil {
		if c, ok := rctx.Params[idSetParam(key)].(*idSet); ok {
			return c.ids, c.err
		}
	}

	c := &idSet{}
	ids, err := s.GetBlacklist(ctx, key)
	switch {
	case err == nil:
		c.ids = make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			c.ids[id] = struct{}{}
		}
	case core.IsStoreNotFound(err):
		c.ids = map[int64]struct{}{}
	default:
		c.err = err
	}
	if rctx != nil {
		rctx.SetParam(idSetParam(key), c)
	}
	return c.ids, c.err
}

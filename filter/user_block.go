package filter

import (
	"context"
	"strconv"

	"github.com/rushteam/graphrec/core"
)

// UserBlockFilter 移除用户自己屏蔽的物品。冷启动请求（UserID 为 0）不生效。
type UserBlockFilter struct {
	Store UserBlockStore

	// KeyPrefix 是 Store 中的 key 前缀，实际 key 为 {KeyPrefix}:{UserID}
	KeyPrefix string
}

// UserBlockStore 是用户屏蔽列表存储接口。
type UserBlockStore interface {
	GetBlacklist(ctx context.Context, key string) ([]int64, error)
}

// NewUserBlockFilter 创建用户屏蔽过滤器。
func NewUserBlockFilter(storeAdapter *StoreAdapter, keyPrefix string) *UserBlockFilter {
	f := &UserBlockFilter{KeyPrefix: keyPrefix}
	if storeAdapter != nil {
		f.Store = storeAdapter
	}
	return f
}

// UserBlockKey 返回用户屏蔽列表的 key。
func UserBlockKey(prefix string, userID int64) string {
	if prefix == "" {
		prefix = "user:block"
	}
	return prefix + ":" + strconv.FormatInt(userID, 10)
}

func (f *UserBlockFilter) Name() string {
	return "filter.user_block"
}

func (f *UserBlockFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil || rctx.UserID == 0 || f.Store == nil {
		return false, nil
	}
	blocked, err := LoadIDSet(ctx, rctx, f.Store, UserBlockKey(f.KeyPrefix, rctx.UserID))
	if err != nil {
		return false, err
	}
	if _, ok := blocked[item.ID]; ok {
		return true, nil
	}
	return false, nil
}

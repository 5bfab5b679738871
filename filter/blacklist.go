package filter

import (
	"context"

	"github.com/rushteam/graphrec/core"
)

// ExcludeFilter 移除请求级排除集合、静态黑名单以及 Store 中全局黑名单里的物品。
type ExcludeFilter struct {
	// ItemIDs 是静态黑名单
	ItemIDs map[int64]struct{}

	// Store 与 Key 可选，指向 Store 中的全局黑名单
	Store BlacklistStore
	Key   string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	GetBlacklist(ctx context.Context, key string) ([]int64, error)
}

// NewExcludeFilter 创建排除过滤器。storeAdapter 为 nil 时只使用静态名单与请求级排除。
func NewExcludeFilter(itemIDs []int64, storeAdapter *StoreAdapter, key string) *ExcludeFilter {
	f := &ExcludeFilter{ItemIDs: make(map[int64]struct{}, len(itemIDs)), Key: key}
	for _, id := range itemIDs {
		f.ItemIDs[id] = struct{}{}
	}
	if storeAdapter != nil {
		f.Store = storeAdapter
	}
	return f
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

func (f *ExcludeFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if _, ok := rctx.Excluded()[item.ID]; ok {
		return true, nil
	}
	if rctx != nil && rctx.ColdStart != nil {
		for _, id := range rctx.ColdStart.SeedItemIDs {
			if id == item.ID {
				return true, nil
			}
		}
	}
	if _, ok := f.ItemIDs[item.ID]; ok {
		return true, nil
	}

	if f.Store != nil && f.Key != "" {
		blacklist, err := LoadIDSet(ctx, rctx, f.Store, f.Key)
		if err != nil {
			return false, err
		}
		if _, ok := blacklist[item.ID]; ok {
			return true, nil
		}
	}
	return false, nil
}

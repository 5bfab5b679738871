package train

import (
	"context"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/graph"
	"github.com/rushteam/graphrec/model"
	"github.com/rushteam/graphrec/vector"
)

// evaluator 在留出边上计算 Recall@K：对每个有留出边的用户，在训练图中
// 未交互的物品里取分数最高的 K 个，统计命中留出物品的比例，再对用户取平均。
type evaluator struct {
	train   *graph.Graph
	k       int
	users   []int // 用户下标
	heldOut []map[int64]struct{}
	seen    []map[int64]struct{} // 训练正样本，检索时排除
	itemIDs []int64
}

func newEvaluator(train *graph.Graph, holdout []core.InteractionEdge, k int) *evaluator {
	e := &evaluator{train: train, k: k}
	if len(holdout) == 0 || k <= 0 {
		return e
	}
	byUser := make(map[int]map[int64]struct{})
	var order []int
	for _, edge := range holdout {
		u, ok := train.UserIndex(edge.UserID)
		if !ok {
			continue
		}
		if byUser[u] == nil {
			byUser[u] = make(map[int64]struct{})
			order = append(order, u)
		}
		// 用物品下标作 ID，和 Forward 输出的行号对齐
		i, _ := train.ItemIndex(edge.ItemID)
		byUser[u][int64(i)] = struct{}{}
	}
	for _, u := range order {
		seen := make(map[int64]struct{}, len(train.UserAdj(u)))
		for _, i := range train.UserAdj(u) {
			seen[int64(i)] = struct{}{}
		}
		e.users = append(e.users, u)
		e.heldOut = append(e.heldOut, byUser[u])
		e.seen = append(e.seen, seen)
	}
	e.itemIDs = make([]int64, train.NumItems())
	for i := range e.itemIDs {
		e.itemIDs[i] = int64(i)
	}
	return e
}

func (e *evaluator) enabled() bool { return len(e.users) > 0 }

func (e *evaluator) recall(ctx context.Context, final *model.Embeddings) (float64, error) {
	items, err := vector.NewTable(final.Dim(), e.itemIDs, final.Items)
	if err != nil {
		return 0, err
	}
	index := vector.NewFlat(items, core.MetricInnerProduct)

	var total float64
	for n, u := range e.users {
		top, err := index.Search(ctx, final.Users[u], e.k, e.seen[n])
		if err != nil {
			return 0, err
		}
		var hit int
		for _, it := range top {
			if _, ok := e.heldOut[n][it.ID]; ok {
				hit++
			}
		}
		total += float64(hit) / float64(len(e.heldOut[n]))
	}
	return total / float64(len(e.users)), nil
}

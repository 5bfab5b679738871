package vector

import (
	"container/heap"
	"context"
	"sort"

	"github.com/rushteam/graphrec/core"
)

// Index 是单个向量空间上的只读检索索引。
// 结果按分数降序，同分时 ID 小的在前；exclude 中的 ID 不会出现在结果里。
type Index interface {
	Search(ctx context.Context, query []float64, k int, exclude map[int64]struct{}) ([]core.VectorSearchItem, error)
	Len() int
	Metric() core.MetricType
}

// ctxCheckEvery 控制检索循环中检查 ctx 的频率。
const ctxCheckEvery = 256

// better 定义全局排序：分数高者优先，同分 ID 小者优先。
func better(a, b core.VectorSearchItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// SortItems 按 better 排序。
func SortItems(items []core.VectorSearchItem) {
	sort.Slice(items, func(i, j int) bool { return better(items[i], items[j]) })
}

// worstFirst 是堆顶为当前最差元素的有界堆，用于 TopK。
type worstFirst []core.VectorSearchItem

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(core.VectorSearchItem)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK 收集最多 k 个最好的结果。
type topK struct {
	k int
	h worstFirst
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(worstFirst, 0, k)}
}

func (t *topK) offer(it core.VectorSearchItem) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, it)
		return
	}
	if better(it, t.h[0]) {
		t.h[0] = it
		heap.Fix(&t.h, 0)
	}
}

func (t *topK) sorted() []core.VectorSearchItem {
	out := make([]core.VectorSearchItem, len(t.h))
	copy(out, t.h)
	SortItems(out)
	return out
}

// Flat 是精确（暴力）检索，作为 ANN 的召回率基线。
type Flat struct {
	table  *Table
	metric core.MetricType
	unit   [][]float64 // 余弦度量下预先归一化的向量
}

// NewFlat 基于表构建精确索引。
func NewFlat(t *Table, metric core.MetricType) *Flat {
	f := &Flat{table: t, metric: metric}
	if metric == core.MetricCosine {
		f.unit = make([][]float64, t.Len())
		for pos := range t.vecs {
			f.unit[pos] = Normalize(t.vecs[pos])
		}
	}
	return f
}

func (f *Flat) Len() int                 { return f.table.Len() }
func (f *Flat) Metric() core.MetricType { return f.metric }

func (f *Flat) Search(ctx context.Context, query []float64, k int, exclude map[int64]struct{}) ([]core.VectorSearchItem, error) {
	if len(query) != f.table.dim {
		return nil, invalid("vector: query dimension %d, index dimension %d", len(query), f.table.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	q := query
	vecs := f.table.vecs
	if f.metric == core.MetricCosine {
		q = Normalize(query)
		vecs = f.unit
	}

	top := newTopK(k)
	for pos, id := range f.table.ids {
		if pos%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		top.offer(core.VectorSearchItem{ID: id, Score: Dot(q, vecs[pos])})
	}
	return top.sorted(), nil
}

package vector

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/rushteam/graphrec/core"
)

// HNSWConfig 是 HNSW 索引参数。
type HNSWConfig struct {
	M              int   `koanf:"m" json:"m"`                             // 每层最大连接数（第 0 层为 2M）
	EfConstruction int   `koanf:"ef_construction" json:"ef_construction"` // 构建时候选集大小
	EfSearch       int   `koanf:"ef_search" json:"ef_search"`             // 检索时候选集大小
	Seed           int64 `koanf:"seed" json:"seed"`                       // 层级随机种子，保证同一张表构建出同一个图
}

// DefaultHNSWConfig 返回默认参数。
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 64, Seed: 42}
}

func (c HNSWConfig) withDefaults() HNSWConfig {
	d := DefaultHNSWConfig()
	if c.M < 2 {
		c.M = d.M
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = d.EfConstruction
	}
	if c.EfSearch <= 0 {
		c.EfSearch = d.EfSearch
	}
	return c
}

// HNSW 是分层可导航小世界图上的近似最近邻索引。
// 从不可变的 Table 一次性构建，构建后只读，可并发检索。
type HNSW struct {
	cfg      HNSWConfig
	table    *Table
	metric   core.MetricType
	vecs     [][]float64 // 余弦度量下为单位向量
	links    [][][]int32 // 节点 -> 层 -> 邻居
	entry    int32
	maxLevel int
}

// NewHNSW 基于表构建 HNSW 索引。
func NewHNSW(t *Table, metric core.MetricType, cfg HNSWConfig) *HNSW {
	cfg = cfg.withDefaults()
	h := &HNSW{
		cfg:    cfg,
		table:  t,
		metric: metric,
		vecs:   t.vecs,
		links:  make([][][]int32, t.Len()),
		entry:  -1,
	}
	if metric == core.MetricCosine {
		h.vecs = make([][]float64, t.Len())
		for pos := range t.vecs {
			h.vecs[pos] = Normalize(t.vecs[pos])
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	mult := 1 / math.Log(float64(cfg.M))
	for pos := range h.vecs {
		level := int(-math.Log(1-rng.Float64()) * mult)
		h.insert(int32(pos), level)
	}
	return h
}

func (h *HNSW) Len() int                 { return h.table.Len() }
func (h *HNSW) Metric() core.MetricType { return h.metric }

func (h *HNSW) maxConn(level int) int {
	if level == 0 {
		return 2 * h.cfg.M
	}
	return h.cfg.M
}

func (h *HNSW) sim(q []float64, n int32) float64 { return Dot(q, h.vecs[n]) }

func (h *HNSW) insert(n int32, level int) {
	h.links[n] = make([][]int32, level+1)
	if h.entry < 0 {
		h.entry = n
		h.maxLevel = level
		return
	}

	q := h.vecs[n]
	ep := h.entry
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedy(q, ep, l)
	}

	top := level
	if h.maxLevel < top {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		cands, _ := h.searchLayer(context.Background(), q, ep, h.cfg.EfConstruction, l)
		neighbors := h.selectNeighbors(cands, h.cfg.M)
		h.links[n][l] = neighbors
		for _, nb := range neighbors {
			h.links[nb][l] = append(h.links[nb][l], n)
			if len(h.links[nb][l]) > h.maxConn(l) {
				h.shrink(nb, l)
			}
		}
		if len(cands) > 0 {
			ep = cands[0].idx
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = n
	}
}

// greedy 在单层上贪心移动到局部最优。
func (h *HNSW) greedy(q []float64, ep int32, level int) int32 {
	cur, curSim := ep, h.sim(q, ep)
	for changed := true; changed; {
		changed = false
		for _, nb := range h.links[cur][level] {
			if s := h.sim(q, nb); s > curSim {
				cur, curSim, changed = nb, s, true
			}
		}
	}
	return cur
}

type cand struct {
	idx int32
	sim float64
}

type candMax []cand

func (c candMax) Len() int           { return len(c) }
func (c candMax) Less(i, j int) bool { return c[i].sim > c[j].sim }
func (c candMax) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c *candMax) Push(x any)        { *c = append(*c, x.(cand)) }
func (c *candMax) Pop() any {
	old := *c
	x := old[len(old)-1]
	*c = old[:len(old)-1]
	return x
}

type candMin []cand

func (c candMin) Len() int           { return len(c) }
func (c candMin) Less(i, j int) bool { return c[i].sim < c[j].sim }
func (c candMin) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c *candMin) Push(x any)        { *c = append(*c, x.(cand)) }
func (c *candMin) Pop() any {
	old := *c
	x := old[len(old)-1]
	*c = old[:len(old)-1]
	return x
}

// searchLayer 返回单层上与 q 最相近的至多 ef 个节点，按相似度降序。
func (h *HNSW) searchLayer(ctx context.Context, q []float64, ep int32, ef, level int) ([]cand, error) {
	visited := map[int32]struct{}{ep: {}}
	first := cand{idx: ep, sim: h.sim(q, ep)}
	candidates := &candMax{first}
	results := &candMin{first}

	for steps := 0; candidates.Len() > 0; steps++ {
		if steps%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := heap.Pop(candidates).(cand)
		if results.Len() >= ef && c.sim < (*results)[0].sim {
			break
		}
		for _, nb := range h.links[c.idx][level] {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			s := h.sim(q, nb)
			if results.Len() < ef || s > (*results)[0].sim {
				heap.Push(candidates, cand{idx: nb, sim: s})
				heap.Push(results, cand{idx: nb, sim: s})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]cand, results.Len())
	copy(out, *results)
	sort.Slice(out, func(i, j int) bool { return out[i].sim > out[j].sim })
	return out, nil
}

// selectNeighbors 从按相似度降序的候选中选出至多 m 个邻居。
// 余弦度量使用启发式：候选与已选邻居比与查询点更近时先跳过，名额不足再补回。
func (h *HNSW) selectNeighbors(cands []cand, m int) []int32 {
	if len(cands) <= m || h.metric != core.MetricCosine {
		if len(cands) > m {
			cands = cands[:m]
		}
		out := make([]int32, len(cands))
		for k, c := range cands {
			out[k] = c.idx
		}
		return out
	}

	selected := make([]int32, 0, m)
	var pruned []int32
	for _, c := range cands {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if Dot(h.vecs[c.idx], h.vecs[s]) > c.sim {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c.idx)
		} else {
			pruned = append(pruned, c.idx)
		}
	}
	for _, p := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, p)
	}
	return selected
}

func (h *HNSW) shrink(n int32, level int) {
	base := h.vecs[n]
	nbs := h.links[n][level]
	cands := make([]cand, len(nbs))
	for k, nb := range nbs {
		cands[k] = cand{idx: nb, sim: Dot(base, h.vecs[nb])}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].sim > cands[j].sim })
	h.links[n][level] = h.selectNeighbors(cands, h.maxConn(level))
}

func (h *HNSW) Search(ctx context.Context, query []float64, k int, exclude map[int64]struct{}) ([]core.VectorSearchItem, error) {
	if len(query) != h.table.dim {
		return nil, invalid("vector: query dimension %d, index dimension %d", len(query), h.table.dim)
	}
	if k <= 0 || h.entry < 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := query
	if h.metric == core.MetricCosine {
		q = Normalize(query)
	}

	ep := h.entry
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedy(q, ep, l)
	}
	ef := h.cfg.EfSearch
	if need := k + len(exclude); need > ef {
		ef = need
	}
	cands, err := h.searchLayer(ctx, q, ep, ef, 0)
	if err != nil {
		return nil, err
	}

	top := newTopK(k)
	for _, c := range cands {
		id := h.table.ids[c.idx]
		if _, skip := exclude[id]; skip {
			continue
		}
		top.offer(core.VectorSearchItem{ID: id, Score: c.sim})
	}
	return top.sorted(), nil
}

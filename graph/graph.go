// Package graph 实现用户-物品二部交互图。
//
// 图在构建后不可变，可被多个训练 goroutine 并发读取。
// 节点在内部用稠密下标表示（用户、物品各自按 ID 升序编号），
// 模型层按下标访问邻接表与归一化系数，对外 API 使用原始 ID。
package graph

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rushteam/graphrec/core"
)

// NodeKind 区分二部图的两侧。
type NodeKind int

const (
	UserNode NodeKind = iota
	ItemNode
)

func (k NodeKind) String() string {
	if k == ItemNode {
		return "item"
	}
	return "user"
}

// Graph 是不可变的二部交互图。
type Graph struct {
	userIDs   []int64
	itemIDs   []int64
	userIndex map[int64]int
	itemIndex map[int64]int

	userAdj [][]int // 用户下标 -> 物品下标
	userW   [][]float64
	itemAdj [][]int // 物品下标 -> 用户下标
	itemW   [][]float64

	// 1/sqrt(|N(v)|)，构建时计算一次
	userNorm []float64
	itemNorm []float64

	edges []core.InteractionEdge
}

type pair struct{ u, i int64 }

func malformed(format string, args ...any) error {
	return core.NewDomainError(core.ModuleGraph, core.ErrorCodeMalformedGraph, fmt.Sprintf(format, args...))
}

// Build 由交互边构建图。
//
// 同一 (user, item) 重复出现且权重一致时合并；权重不一致、权重不在 (0, 1]、
// 或没有任何边时返回 MALFORMED_GRAPH。
func Build(edges []core.InteractionEdge) (*Graph, error) {
	if len(edges) == 0 {
		return nil, malformed("graph: no edges")
	}

	weights := make(map[pair]float64, len(edges))
	for _, e := range edges {
		if math.IsNaN(e.Weight) || e.Weight <= 0 || e.Weight > 1 {
			return nil, malformed("graph: edge (%d,%d) weight %v out of (0,1]", e.UserID, e.ItemID, e.Weight)
		}
		k := pair{e.UserID, e.ItemID}
		if w, ok := weights[k]; ok {
			if w != e.Weight {
				return nil, malformed("graph: edge (%d,%d) has conflicting weights %v and %v", e.UserID, e.ItemID, w, e.Weight)
			}
			continue
		}
		weights[k] = e.Weight
	}

	uniq := make([]core.InteractionEdge, 0, len(weights))
	for k, w := range weights {
		uniq = append(uniq, core.InteractionEdge{UserID: k.u, ItemID: k.i, Weight: w})
	}
	sort.Slice(uniq, func(a, b int) bool {
		if uniq[a].UserID != uniq[b].UserID {
			return uniq[a].UserID < uniq[b].UserID
		}
		return uniq[a].ItemID < uniq[b].ItemID
	})
	return fromSorted(uniq), nil
}

// fromSorted 由已去重、按 (user, item) 排序的边构建图。
func fromSorted(edges []core.InteractionEdge) *Graph {
	userSet := make(map[int64]struct{})
	itemSet := make(map[int64]struct{})
	for _, e := range edges {
		userSet[e.UserID] = struct{}{}
		itemSet[e.ItemID] = struct{}{}
	}

	g := &Graph{
		userIDs: sortedKeys(userSet),
		itemIDs: sortedKeys(itemSet),
		edges:   edges,
	}
	g.userIndex = indexOf(g.userIDs)
	g.itemIndex = indexOf(g.itemIDs)

	g.userAdj = make([][]int, len(g.userIDs))
	g.userW = make([][]float64, len(g.userIDs))
	g.itemAdj = make([][]int, len(g.itemIDs))
	g.itemW = make([][]float64, len(g.itemIDs))
	for _, e := range edges {
		u, i := g.userIndex[e.UserID], g.itemIndex[e.ItemID]
		g.userAdj[u] = append(g.userAdj[u], i)
		g.userW[u] = append(g.userW[u], e.Weight)
		g.itemAdj[i] = append(g.itemAdj[i], u)
		g.itemW[i] = append(g.itemW[i], e.Weight)
	}

	g.userNorm = make([]float64, len(g.userIDs))
	for u, adj := range g.userAdj {
		g.userNorm[u] = 1 / math.Sqrt(float64(len(adj)))
	}
	g.itemNorm = make([]float64, len(g.itemIDs))
	for i, adj := range g.itemAdj {
		g.itemNorm[i] = 1 / math.Sqrt(float64(len(adj)))
	}
	return g
}

func sortedKeys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

func indexOf(ids []int64) map[int64]int {
	m := make(map[int64]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func (g *Graph) NumUsers() int { return len(g.userIDs) }
func (g *Graph) NumItems() int { return len(g.itemIDs) }
func (g *Graph) NumEdges() int { return len(g.edges) }

// Users 返回全部用户 ID（升序，调用方不得修改）。
func (g *Graph) Users() []int64 { return g.userIDs }

// Items 返回全部物品 ID（升序，调用方不得修改）。
func (g *Graph) Items() []int64 { return g.itemIDs }

// Edges 返回去重后的边（按 user、item 排序，调用方不得修改）。
func (g *Graph) Edges() []core.InteractionEdge { return g.edges }

// UserIndex 返回用户的内部下标。
func (g *Graph) UserIndex(id int64) (int, bool) {
	u, ok := g.userIndex[id]
	return u, ok
}

// ItemIndex 返回物品的内部下标。
func (g *Graph) ItemIndex(id int64) (int, bool) {
	i, ok := g.itemIndex[id]
	return i, ok
}

func (g *Graph) UserID(u int) int64 { return g.userIDs[u] }
func (g *Graph) ItemID(i int) int64 { return g.itemIDs[i] }

// UserAdj 返回用户下标的邻居物品下标（只读）。
func (g *Graph) UserAdj(u int) []int { return g.userAdj[u] }

// ItemAdj 返回物品下标的邻居用户下标（只读）。
func (g *Graph) ItemAdj(i int) []int { return g.itemAdj[i] }

// UserNorm 返回用户下标的 1/sqrt(deg)。
func (g *Graph) UserNorm(u int) float64 { return g.userNorm[u] }

// ItemNorm 返回物品下标的 1/sqrt(deg)。
func (g *Graph) ItemNorm(i int) float64 { return g.itemNorm[i] }

// Neighbors 返回节点的邻居 ID。节点不存在时返回 NOT_FOUND。
func (g *Graph) Neighbors(kind NodeKind, id int64) ([]int64, error) {
	switch kind {
	case UserNode:
		u, ok := g.userIndex[id]
		if !ok {
			return nil, g.notFound(kind, id)
		}
		out := make([]int64, len(g.userAdj[u]))
		for k, i := range g.userAdj[u] {
			out[k] = g.itemIDs[i]
		}
		return out, nil
	default:
		i, ok := g.itemIndex[id]
		if !ok {
			return nil, g.notFound(kind, id)
		}
		out := make([]int64, len(g.itemAdj[i]))
		for k, u := range g.itemAdj[i] {
			out[k] = g.userIDs[u]
		}
		return out, nil
	}
}

// NormalizedDegree 返回 1/sqrt(|N(node)|)。
func (g *Graph) NormalizedDegree(kind NodeKind, id int64) (float64, error) {
	if kind == UserNode {
		u, ok := g.userIndex[id]
		if !ok {
			return 0, g.notFound(kind, id)
		}
		return g.userNorm[u], nil
	}
	i, ok := g.itemIndex[id]
	if !ok {
		return 0, g.notFound(kind, id)
	}
	return g.itemNorm[i], nil
}

// Weight 返回边权重。
func (g *Graph) Weight(userID, itemID int64) (float64, bool) {
	u, ok := g.userIndex[userID]
	if !ok {
		return 0, false
	}
	i, ok := g.itemIndex[itemID]
	if !ok {
		return 0, false
	}
	for k, j := range g.userAdj[u] {
		if j == i {
			return g.userW[u][k], true
		}
	}
	return 0, false
}

// HasEdge 判断用户与物品之间是否存在边。
func (g *Graph) HasEdge(userID, itemID int64) bool {
	_, ok := g.Weight(userID, itemID)
	return ok
}

func (g *Graph) notFound(kind NodeKind, id int64) error {
	return core.NewDomainError(core.ModuleGraph, core.ErrorCodeNotFound, fmt.Sprintf("graph: %s %d not found", kind, id))
}

// Split 随机留出约 ratio 比例的边用于验证。
//
// 只有两端度数都大于 1 时边才会被留出，因此训练图保留全部节点，
// 且节点下标与原图一致。没有可留出的边时 holdout 为空。
func (g *Graph) Split(ratio float64, rng *rand.Rand) (*Graph, []core.InteractionEdge) {
	if ratio <= 0 || len(g.edges) < 2 {
		return g, nil
	}
	target := int(math.Round(ratio * float64(len(g.edges))))
	if target == 0 {
		return g, nil
	}

	userDeg := make([]int, len(g.userIDs))
	itemDeg := make([]int, len(g.itemIDs))
	for u := range g.userAdj {
		userDeg[u] = len(g.userAdj[u])
	}
	for i := range g.itemAdj {
		itemDeg[i] = len(g.itemAdj[i])
	}

	held := make([]bool, len(g.edges))
	holdout := make([]core.InteractionEdge, 0, target)
	for _, k := range rng.Perm(len(g.edges)) {
		if len(holdout) >= target {
			break
		}
		e := g.edges[k]
		u, i := g.userIndex[e.UserID], g.itemIndex[e.ItemID]
		if userDeg[u] <= 1 || itemDeg[i] <= 1 {
			continue
		}
		userDeg[u]--
		itemDeg[i]--
		held[k] = true
		holdout = append(holdout, e)
	}
	if len(holdout) == 0 {
		return g, nil
	}

	train := make([]core.InteractionEdge, 0, len(g.edges)-len(holdout))
	for k, e := range g.edges {
		if !held[k] {
			train = append(train, e)
		}
	}
	sort.Slice(holdout, func(a, b int) bool {
		if holdout[a].UserID != holdout[b].UserID {
			return holdout[a].UserID < holdout[b].UserID
		}
		return holdout[a].ItemID < holdout[b].ItemID
	})
	return fromSorted(train), holdout
}

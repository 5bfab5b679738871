package model

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/graphrec/graph"
)

// LightGCN 是简化图卷积协同过滤模型。
//
// 核心思想：
//   - 每层把邻居嵌入按 1/sqrt(deg(u)·deg(i)) 加权求和，没有激活函数和特征变换
//   - 最终嵌入为第 0..L 层的平均
//   - 只有第 0 层嵌入是参数
//
// 工程特征：
//   - 传播是对不可变层序列的纯折叠，每层都是新分配的矩阵
//   - 归一化邻接矩阵对称，反向传播复用同一个层平均算子
//   - 用户侧与物品侧在同一层内互不依赖，并行计算
type LightGCN struct {
	Graph  *graph.Graph
	Layers int
}

// NewLightGCN 创建模型。layers 为 0 时不做传播，最终嵌入即第 0 层（纯矩阵分解）。
func NewLightGCN(g *graph.Graph, layers int) *LightGCN {
	if layers < 0 {
		layers = 0
	}
	return &LightGCN{Graph: g, Layers: layers}
}

// Propagate 返回 e^0..e^L 共 L+1 层嵌入，e^0 即输入本身。
func (m *LightGCN) Propagate(ctx context.Context, e0 *Embeddings) ([]*Embeddings, error) {
	layers := make([]*Embeddings, 0, m.Layers+1)
	layers = append(layers, e0)
	for k := 0; k < m.Layers; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := m.step(ctx, layers[k])
		if err != nil {
			return nil, err
		}
		layers = append(layers, next)
	}
	return layers, nil
}

// step 计算下一层：e'_u = Σ_{i∈N(u)} e_i / sqrt(deg(u)·deg(i))，物品侧对称。
func (m *LightGCN) step(ctx context.Context, prev *Embeddings) (*Embeddings, error) {
	g := m.Graph
	next := NewEmbeddings(len(prev.Users), len(prev.Items), prev.Dim())

	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for u := range next.Users {
			nu := g.UserNorm(u)
			for _, i := range g.UserAdj(u) {
				axpy(next.Users[u], prev.Items[i], nu*g.ItemNorm(i))
			}
		}
		return nil
	})
	eg.Go(func() error {
		for i := range next.Items {
			ni := g.ItemNorm(i)
			for _, u := range g.ItemAdj(i) {
				axpy(next.Items[i], prev.Users[u], ni*g.UserNorm(u))
			}
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return next, nil
}

// LayerMean 返回各层的逐元素平均。
func LayerMean(layers []*Embeddings) *Embeddings {
	first := layers[0]
	out := NewEmbeddings(len(first.Users), len(first.Items), first.Dim())
	w := 1 / float64(len(layers))
	for _, l := range layers {
		out.AddScaled(l, w)
	}
	return out
}

// Forward 返回最终嵌入（层平均）。
func (m *LightGCN) Forward(ctx context.Context, e0 *Embeddings) (*Embeddings, error) {
	layers, err := m.Propagate(ctx, e0)
	if err != nil {
		return nil, err
	}
	return LayerMean(layers), nil
}

// Backward 把关于最终嵌入的梯度传回第 0 层。
// Forward 是线性算子 (1/(L+1))·Σ_k Â^k，Â 对称，所以它的转置就是它自己。
func (m *LightGCN) Backward(ctx context.Context, gradFinal *Embeddings) (*Embeddings, error) {
	return m.Forward(ctx, gradFinal)
}

// LossAndGrad 计算一个 batch 的 BPR 损失及其关于第 0 层嵌入的梯度。
func (m *LightGCN) LossAndGrad(ctx context.Context, e0 *Embeddings, batch []Triplet, lambda float64) (float64, *Embeddings, error) {
	final, err := m.Forward(ctx, e0)
	if err != nil {
		return 0, nil, err
	}
	loss, gradFinal, gradReg := BPR(final, e0, batch, lambda)
	grad, err := m.Backward(ctx, gradFinal)
	if err != nil {
		return 0, nil, err
	}
	grad.AddScaled(gradReg, 1)
	return loss, grad, nil
}

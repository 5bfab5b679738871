package model

import "math/rand"

// Embeddings 是二部图两侧的嵌入矩阵，行号即图内部下标。
type Embeddings struct {
	Users [][]float64
	Items [][]float64
}

// NewEmbeddings 创建全零矩阵。
func NewEmbeddings(numUsers, numItems, dim int) *Embeddings {
	return &Embeddings{
		Users: zeros(numUsers, dim),
		Items: zeros(numItems, dim),
	}
}

// RandomEmbeddings 按 N(0, std²) 初始化，rng 决定结果，便于复现。
func RandomEmbeddings(numUsers, numItems, dim int, std float64, rng *rand.Rand) *Embeddings {
	e := NewEmbeddings(numUsers, numItems, dim)
	for _, m := range [][][]float64{e.Users, e.Items} {
		for _, row := range m {
			for d := range row {
				row[d] = rng.NormFloat64() * std
			}
		}
	}
	return e
}

func zeros(rows, dim int) [][]float64 {
	backing := make([]float64, rows*dim)
	out := make([][]float64, rows)
	for r := range out {
		out[r] = backing[r*dim : (r+1)*dim : (r+1)*dim]
	}
	return out
}

// Dim 返回向量维度。
func (e *Embeddings) Dim() int {
	if len(e.Users) > 0 {
		return len(e.Users[0])
	}
	if len(e.Items) > 0 {
		return len(e.Items[0])
	}
	return 0
}

// Clone 深拷贝。
func (e *Embeddings) Clone() *Embeddings {
	out := NewEmbeddings(len(e.Users), len(e.Items), e.Dim())
	for r := range e.Users {
		copy(out.Users[r], e.Users[r])
	}
	for r := range e.Items {
		copy(out.Items[r], e.Items[r])
	}
	return out
}

// AddScaled 执行 e += s * o。
func (e *Embeddings) AddScaled(o *Embeddings, s float64) {
	for r := range e.Users {
		axpy(e.Users[r], o.Users[r], s)
	}
	for r := range e.Items {
		axpy(e.Items[r], o.Items[r], s)
	}
}

func axpy(dst, src []float64, s float64) {
	for d := range dst {
		dst[d] += s * src[d]
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

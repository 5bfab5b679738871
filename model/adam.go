package model

import "math"

// Adam 优化器，状态按参数矩阵形状惰性分配。
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t int
	m *Embeddings
	v *Embeddings
}

// NewAdam 使用常用默认值（β1=0.9, β2=0.999, ε=1e-8）。
func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Step 用梯度原地更新参数。
func (a *Adam) Step(params, grad *Embeddings) {
	if a.m == nil {
		a.m = NewEmbeddings(len(params.Users), len(params.Items), params.Dim())
		a.v = NewEmbeddings(len(params.Users), len(params.Items), params.Dim())
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	a.update(params.Users, grad.Users, a.m.Users, a.v.Users, c1, c2)
	a.update(params.Items, grad.Items, a.m.Items, a.v.Items, c1, c2)
}

func (a *Adam) update(p, g, m, v [][]float64, c1, c2 float64) {
	for r := range p {
		for d := range p[r] {
			gd := g[r][d]
			m[r][d] = a.Beta1*m[r][d] + (1-a.Beta1)*gd
			v[r][d] = a.Beta2*v[r][d] + (1-a.Beta2)*gd*gd
			mh := m[r][d] / c1
			vh := v[r][d] / c2
			p[r][d] -= a.LR * mh / (math.Sqrt(vh) + a.Epsilon)
		}
	}
}

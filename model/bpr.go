package model

import "math"

// Triplet 是一个 BPR 训练样本（图内部下标）：用户 u 偏好正样本 i 胜过负样本 j。
type Triplet struct {
	User int
	Pos  int
	Neg  int
}

// BPR 计算 batch 平均损失
//
//	-ln σ(s_ui - s_uj) + λ·½(‖e0_u‖² + ‖e0_i‖² + ‖e0_j‖²)
//
// 其中 s 为最终嵌入的内积，正则只作用于第 0 层嵌入。
// 返回损失、关于最终嵌入的梯度、关于第 0 层嵌入的正则梯度。
func BPR(final, e0 *Embeddings, batch []Triplet, lambda float64) (float64, *Embeddings, *Embeddings) {
	dim := final.Dim()
	gradFinal := NewEmbeddings(len(final.Users), len(final.Items), dim)
	gradReg := NewEmbeddings(len(e0.Users), len(e0.Items), dim)
	if len(batch) == 0 {
		return 0, gradFinal, gradReg
	}

	inv := 1 / float64(len(batch))
	var loss float64
	for _, t := range batch {
		fu, fi, fj := final.Users[t.User], final.Items[t.Pos], final.Items[t.Neg]
		x := dot(fu, fi) - dot(fu, fj)
		loss += softplus(-x)

		// d(-ln σ(x))/dx = -σ(-x)
		g := -sigmoid(-x) * inv
		du := gradFinal.Users[t.User]
		di := gradFinal.Items[t.Pos]
		dj := gradFinal.Items[t.Neg]
		for d := 0; d < dim; d++ {
			du[d] += g * (fi[d] - fj[d])
			di[d] += g * fu[d]
			dj[d] -= g * fu[d]
		}

		eu, ei, ej := e0.Users[t.User], e0.Items[t.Pos], e0.Items[t.Neg]
		loss += lambda * 0.5 * (dot(eu, eu) + dot(ei, ei) + dot(ej, ej))
		axpy(gradReg.Users[t.User], eu, lambda*inv)
		axpy(gradReg.Items[t.Pos], ei, lambda*inv)
		axpy(gradReg.Items[t.Neg], ej, lambda*inv)
	}
	return loss * inv, gradFinal, gradReg
}

// softplus(x) = ln(1 + e^x)，对大 |x| 数值稳定。
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

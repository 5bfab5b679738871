package vector

import (
	"math"

	"github.com/rushteam/graphrec/core"
)

// Dot 内积。调用方保证等长。
func Dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Norm L2 范数。
func Norm(a []float64) float64 {
	return math.Sqrt(Dot(a, a))
}

// Cosine 余弦相似度，任一向量为零向量时返回 0。
func Cosine(a, b []float64) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Normalize 返回单位向量副本；零向量返回零向量。
func Normalize(a []float64) []float64 {
	out := make([]float64, len(a))
	n := Norm(a)
	if n == 0 {
		return out
	}
	for i, x := range a {
		out[i] = x / n
	}
	return out
}

// Centroid 返回逐维均值。单个向量时结果与其完全相同。
func Centroid(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i, x := range v {
			out[i] += x
		}
	}
	n := float64(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out
}

// Similarity 按度量计算相似度。
func Similarity(metric core.MetricType, a, b []float64) float64 {
	if metric == core.MetricCosine {
		return Cosine(a, b)
	}
	return Dot(a, b)
}

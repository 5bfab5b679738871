package vector

import (
	"context"

	"github.com/rushteam/graphrec/core"
)

// MeasureRecall 计算 approx 相对 exact 基线的平均 Recall@k。
func MeasureRecall(ctx context.Context, exact, approx Index, queries [][]float64, k int) (float64, error) {
	if len(queries) == 0 || k <= 0 {
		return 1, nil
	}
	var total float64
	for _, q := range queries {
		want, err := exact.Search(ctx, q, k, nil)
		if err != nil {
			return 0, err
		}
		if len(want) == 0 {
			total++
			continue
		}
		got, err := approx.Search(ctx, q, k, nil)
		if err != nil {
			return 0, err
		}
		hit := make(map[int64]struct{}, len(got))
		for _, it := range got {
			hit[it.ID] = struct{}{}
		}
		var n int
		for _, it := range want {
			if _, ok := hit[it.ID]; ok {
				n++
			}
		}
		total += float64(n) / float64(len(want))
	}
	return total / float64(len(queries)), nil
}

// IndexOptions 控制空间索引的构建方式。
type IndexOptions struct {
	ANN          bool       `koanf:"ann" json:"ann"`
	HNSW         HNSWConfig `koanf:"hnsw" json:"hnsw"`
	MinSize      int        `koanf:"min_size" json:"min_size"`           // 向量数少于该值时只用精确检索
	MinRecall    float64    `koanf:"min_recall" json:"min_recall"`       // ANN 召回率下限
	RecallSample int        `koanf:"recall_sample" json:"recall_sample"` // 校验召回率时的查询数
	RecallK      int        `koanf:"recall_k" json:"recall_k"`
}

// DefaultIndexOptions 返回默认索引选项。
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		ANN:          true,
		HNSW:         DefaultHNSWConfig(),
		MinSize:      256,
		MinRecall:    0.9,
		RecallSample: 50,
		RecallK:      10,
	}
}

// BuildReport 描述索引构建结果。
type BuildReport struct {
	Approximate bool
	Recall      float64
}

// BuildIndex 为表构建检索索引。
//
// 启用 ANN 时，从 queries 中均匀抽样作为查询（协同空间应传入用户表，与线上查询同分布），
// 校验 HNSW 相对精确检索的召回率；未给出可用的查询表时用物品向量本身。
// 低于 MinRecall 时退回精确检索。返回的索引总是满足召回率下限。
func BuildIndex(ctx context.Context, t *Table, metric core.MetricType, opts IndexOptions, queries ...*Table) (Index, BuildReport, error) {
	flat := NewFlat(t, metric)
	if !opts.ANN || t.Len() < opts.MinSize || t.Len() == 0 {
		return flat, BuildReport{Recall: 1}, nil
	}

	approx := NewHNSW(t, metric, opts.HNSW)
	k := opts.RecallK
	if k <= 0 {
		k = 10
	}
	if k > t.Len() {
		k = t.Len()
	}

	recall, err := MeasureRecall(ctx, flat, approx, recallQueries(t, opts.RecallSample, queries...), k)
	if err != nil {
		return nil, BuildReport{}, err
	}
	if recall < opts.MinRecall {
		return flat, BuildReport{Recall: recall}, nil
	}
	return approx, BuildReport{Approximate: true, Recall: recall}, nil
}

// recallQueries 从每个维度匹配的查询表中等距抽取至多 sample 行；都不可用时从 t 中抽取。
func recallQueries(t *Table, sample int, tables ...*Table) [][]float64 {
	var out [][]float64
	for _, q := range tables {
		if q == nil || q.Len() == 0 || q.Dim() != t.Dim() {
			continue
		}
		out = append(out, sampleRows(q, sample)...)
	}
	if len(out) == 0 {
		out = sampleRows(t, sample)
	}
	return out
}

func sampleRows(t *Table, sample int) [][]float64 {
	if sample <= 0 || sample > t.Len() {
		sample = t.Len()
	}
	stride := t.Len() / sample
	rows := make([][]float64, 0, sample)
	for pos := 0; pos < t.Len() && len(rows) < sample; pos += stride {
		rows = append(rows, t.vecs[pos])
	}
	return rows
}

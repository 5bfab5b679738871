package core

import "context"

// EmbeddingView 是某一版本嵌入表的只读视图。
//
// 一次请求只持有一个 EmbeddingView，保证不会读到混合版本。
// 实现：store.Snapshot
type EmbeddingView interface {
	// Version 返回该视图对应的模型版本
	Version() ModelVersion

	// Dimension 返回空间维度，空间不存在时返回 0
	Dimension(space Space) int

	// UserVector 读取协同空间的用户向量
	UserVector(userID int64) ([]float64, error)

	// ItemVector 读取指定空间的物品向量
	ItemVector(itemID int64, space Space) ([]float64, error)

	// ItemIDs 返回指定空间内全部物品 ID（升序）
	ItemIDs(space Space) []int64

	// Search 在指定空间内检索最近邻
	Search(ctx context.Context, req *VectorSearchRequest) (*VectorSearchResult, error)
}

// EmbeddingSource 提供当前线上版本。
// 实现：store.EmbeddingStore
type EmbeddingSource interface {
	// Current 返回当前版本视图；尚未发布任何版本时返回 NOT_FOUND
	Current() (EmbeddingView, error)
}

// VectorSearchRequest 向量搜索请求
type VectorSearchRequest struct {
	// Space 检索空间，决定相似度：协同空间用内积，内容空间用余弦
	Space Space

	// Vector 查询向量，维度须与空间一致
	Vector []float64

	// TopK 返回 TopK 个最相似的结果
	TopK int

	// Exclude 需要排除的物品 ID
	Exclude map[int64]struct{}

	// Exact 强制精确检索（忽略 ANN 索引）
	Exact bool
}

// VectorSearchItem 单个向量搜索结果项
type VectorSearchItem struct {
	ID    int64
	Score float64
}

// VectorSearchResult 向量搜索结果
type VectorSearchResult struct {
	// Items 按分数降序排列，同分时 ID 小的在前
	Items []VectorSearchItem
}

// MetricType 相似度类型
type MetricType string

const (
	MetricCosine       MetricType = "cosine"
	MetricInnerProduct MetricType = "inner_product"
)

// MetricOf 返回空间对应的相似度。
func MetricOf(space Space) MetricType {
	if space == SpaceContent {
		return MetricCosine
	}
	return MetricInnerProduct
}

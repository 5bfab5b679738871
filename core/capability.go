package core

import "context"

// 外部能力接口。由调用方在构造时注入，引擎内部不持有任何全局单例。

// TextEmbedder 把自然语言编码为内容空间向量。
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// MetadataProvider 提供物品元数据。
type MetadataProvider interface {
	// GenresOf 返回物品的类型标签，未知物品返回空切片
	GenresOf(ctx context.Context, itemID int64) ([]string, error)

	// CatalogItems 返回目录中的全部物品 ID
	CatalogItems(ctx context.Context) ([]int64, error)
}

// HealthChecker 是向量后端的存活探针。
type HealthChecker interface {
	IsVectorBackendHealthy(ctx context.Context) bool
}

// HealthCheckerFunc 把函数适配为 HealthChecker。
type HealthCheckerFunc func(ctx context.Context) bool

func (f HealthCheckerFunc) IsVectorBackendHealthy(ctx context.Context) bool { return f(ctx) }

// TextEmbedderFunc 把函数适配为 TextEmbedder。
type TextEmbedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f TextEmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

package core

import "github.com/rushteam/graphrec/pkg/utils"

// RecommendContext 承载一次请求的用户/偏好/实验信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID int64

	// ColdStart 非空表示冷启动请求
	ColdStart *ColdStartRequest

	// View 是本次请求固定使用的嵌入版本，整个请求内不会切换
	View EmbeddingView

	// Bucket 是实验分组（control / treatment ...）
	Bucket string

	// Labels 是请求级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级参数（如 exclude 列表、过滤表达式）
	Params map[string]any
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// SetParam 写入请求参数。
func (rctx *RecommendContext) SetParam(key string, v any) {
	if rctx.Params == nil {
		rctx.Params = make(map[string]any)
	}
	rctx.Params[key] = v
}

// ParamExclude 是请求级排除集合（map[int64]struct{}）的参数名。
const ParamExclude = "exclude"

// Excluded 返回请求级排除集合，可能为 nil。
func (rctx *RecommendContext) Excluded() map[int64]struct{} {
	if rctx == nil || rctx.Params == nil {
		return nil
	}
	ex, _ := rctx.Params[ParamExclude].(map[int64]struct{})
	return ex
}

// Exclude 把 ids 加入请求级排除集合。
func (rctx *RecommendContext) Exclude(ids ...int64) {
	ex := rctx.Excluded()
	if ex == nil {
		ex = make(map[int64]struct{}, len(ids))
		rctx.SetParam(ParamExclude, ex)
	}
	for _, id := range ids {
		ex[id] = struct{}{}
	}
}

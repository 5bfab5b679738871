// Package graphrec 是基于图嵌入的混合推荐引擎。
//
// 设计要点：
// - 训练：交互图 → LightGCN 传播 → BPR 损失，产出协同空间的用户/物品嵌入
// - 版本：嵌入表按版本整体发布，读者在一次请求内只看到一个版本
// - 推荐：Pipeline 串联 召回 → 过滤 → 融合 → 多样性 → 截断，labels 全链路透传用于解释
// - 降级：向量后端不可用时退回类型启发式，结果带 degraded 标记
package graphrec

import "github.com/rushteam/graphrec/pipeline"

// 轻量 facade：便于直接 import "graphrec" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

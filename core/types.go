package core

import (
	"fmt"
	"strings"
	"time"
)

// Space 标识向量空间。不同空间的向量不可比较。
type Space string

const (
	// SpaceCollaborative 由交互图训练得到，用户与物品共享，使用内积。
	SpaceCollaborative Space = "collaborative"
	// SpaceContent 由文本编码得到，仅物品，使用余弦相似度。
	SpaceContent Space = "content"
)

func (s Space) Valid() bool {
	return s == SpaceCollaborative || s == SpaceContent
}

// ParseSpace 解析空间名称。
func ParseSpace(s string) (Space, error) {
	sp := Space(strings.ToLower(strings.TrimSpace(s)))
	if !sp.Valid() {
		return "", NewDomainError(ModuleVector, ErrorCodeInvalidInput, fmt.Sprintf("unknown space %q", s))
	}
	return sp, nil
}

// InteractionEdge 是一条隐式反馈：用户与物品的交互及其强度。
type InteractionEdge struct {
	UserID int64   `json:"user_id"`
	ItemID int64   `json:"item_id"`
	Weight float64 `json:"weight"` // (0, 1]
}

// ModelVersion 标识一次训练产出的嵌入表。
type ModelVersion struct {
	Seq       uint64    `json:"seq"`
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

func (v ModelVersion) String() string {
	if v.Tag == "" {
		return fmt.Sprintf("v%d", v.Seq)
	}
	return fmt.Sprintf("v%d-%s", v.Seq, v.Tag)
}

func (v ModelVersion) IsZero() bool { return v.Seq == 0 && v.Tag == "" }

// ColdStartRequest 是无历史用户的推荐请求。三类信号至少需要一种。
type ColdStartRequest struct {
	Genres      []string `json:"genres,omitempty"`
	Query       string   `json:"query,omitempty"`
	SeedItemIDs []int64  `json:"seed_item_ids,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

// Empty 表示请求没有任何偏好信号。
func (r *ColdStartRequest) Empty() bool {
	if r == nil {
		return true
	}
	if strings.TrimSpace(r.Query) != "" || len(r.SeedItemIDs) > 0 {
		return false
	}
	for _, g := range r.Genres {
		if strings.TrimSpace(g) != "" {
			return false
		}
	}
	return true
}

// ScoredItem 是最终返回给调用方的推荐结果项。
type ScoredItem struct {
	ItemID  int64    `json:"item_id"`
	Score   float64  `json:"score"`
	Sources []string `json:"sources,omitempty"`
}

// Result 是一次推荐的输出。Degraded 表示走了降级路径。
type Result struct {
	Items    []ScoredItem `json:"items"`
	Degraded bool         `json:"degraded"`
	Version  string       `json:"version,omitempty"`
	Bucket   string       `json:"bucket,omitempty"`
}

// ItemIDs 返回结果中的物品 ID（保持顺序）。
func (r *Result) ItemIDs() []int64 {
	if r == nil {
		return nil
	}
	ids := make([]int64, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.ItemID
	}
	return ids
}

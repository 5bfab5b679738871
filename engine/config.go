package engine

import (
	"fmt"
	"time"

	"github.com/rushteam/graphrec/rank"
)

// Config 是推荐引擎参数。
type Config struct {
	DefaultTopK     int                `koanf:"default_top_k" json:"default_top_k"`
	SourceTimeout   time.Duration      `koanf:"source_timeout" json:"source_timeout"` // 单个召回源超时，0 表示只受请求 ctx 约束
	MaxConcurrent   int                `koanf:"max_concurrent" json:"max_concurrent"`
	CandidateFactor int                `koanf:"candidate_factor" json:"candidate_factor"` // 冷启动每个向量源召回 topK*CandidateFactor 个候选
	Weights         map[string]float64 `koanf:"weights" json:"weights"`
	ExactUserSearch bool               `koanf:"exact_user_search" json:"exact_user_search"`

	// TreatmentDiversity 为 treatment 组用户开启按主类型去重
	TreatmentDiversity bool `koanf:"treatment_diversity" json:"treatment_diversity"`

	BlacklistKey    string `koanf:"blacklist_key" json:"blacklist_key"`
	UserBlockPrefix string `koanf:"user_block_prefix" json:"user_block_prefix"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		DefaultTopK:     10,
		SourceTimeout:   500 * time.Millisecond,
		CandidateFactor: 5,
		Weights:         rank.DefaultWeights(),
		BlacklistKey:    "graphrec:blacklist",
		UserBlockPrefix: "graphrec:block",
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("engine: default_top_k must be positive, got %d", c.DefaultTopK)
	}
	if c.CandidateFactor <= 0 {
		return fmt.Errorf("engine: candidate_factor must be positive, got %d", c.CandidateFactor)
	}
	if c.SourceTimeout < 0 {
		return fmt.Errorf("engine: source_timeout must not be negative")
	}
	for src, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("engine: weight of %s must not be negative, got %v", src, w)
		}
	}
	return nil
}

package train

import (
	"fmt"
)

// Config 训练参数。
type Config struct {
	Dim          int     `koanf:"dim" json:"dim"`
	Layers       int     `koanf:"layers" json:"layers"`
	MaxEpochs    int     `koanf:"max_epochs" json:"max_epochs"`
	BatchSize    int     `koanf:"batch_size" json:"batch_size"`
	LearningRate float64 `koanf:"learning_rate" json:"learning_rate"`
	Lambda       float64 `koanf:"lambda" json:"lambda"` // 第 0 层嵌入的 L2 正则系数
	InitStd      float64 `koanf:"init_std" json:"init_std"`
	Seed         int64   `koanf:"seed" json:"seed"`

	// 负采样：每个正样本最多尝试 NegativeRetries 次
	NegativeRetries int `koanf:"negative_retries" json:"negative_retries"`
	// SkipSaturated 跳过已与全部物品交互的用户（放宽采样时开启）
	SkipSaturated bool `koanf:"skip_saturated" json:"skip_saturated"`

	// 早停：在留出边上计算 Recall@K，连续 Patience 个 epoch 提升不足 MinDelta 即停止
	HoldoutRatio float64 `koanf:"holdout_ratio" json:"holdout_ratio"`
	RecallK      int     `koanf:"recall_k" json:"recall_k"`
	Patience     int     `koanf:"patience" json:"patience"` // <= 0 关闭早停
	MinDelta     float64 `koanf:"min_delta" json:"min_delta"`
}

// DefaultConfig 返回默认训练参数。
func DefaultConfig() Config {
	return Config{
		Dim:             64,
		Layers:          3,
		MaxEpochs:       50,
		BatchSize:       1024,
		LearningRate:    0.01,
		Lambda:          1e-4,
		InitStd:         0.1,
		Seed:            42,
		NegativeRetries: 50,
		HoldoutRatio:    0.1,
		RecallK:         20,
		Patience:        5,
		MinDelta:        1e-4,
	}
}

// Validate 校验参数。
func (c Config) Validate() error {
	switch {
	case c.Dim <= 0:
		return fmt.Errorf("train: dim must be positive, got %d", c.Dim)
	case c.Layers < 0:
		return fmt.Errorf("train: layers must not be negative, got %d", c.Layers)
	case c.MaxEpochs <= 0:
		return fmt.Errorf("train: max_epochs must be positive, got %d", c.MaxEpochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("train: batch_size must be positive, got %d", c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("train: learning_rate must be positive, got %v", c.LearningRate)
	case c.Lambda < 0:
		return fmt.Errorf("train: lambda must not be negative, got %v", c.Lambda)
	case c.NegativeRetries <= 0:
		return fmt.Errorf("train: negative_retries must be positive, got %d", c.NegativeRetries)
	case c.HoldoutRatio < 0 || c.HoldoutRatio >= 1:
		return fmt.Errorf("train: holdout_ratio must be in [0,1), got %v", c.HoldoutRatio)
	}
	return nil
}

// relaxed 返回放宽负采样后的参数。
func (c Config) relaxed() Config {
	c.NegativeRetries *= 4
	c.SkipSaturated = true
	return c
}

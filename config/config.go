// Package config 加载 graphrec 的全部运行参数。
//
// 加载顺序（后者覆盖前者）：结构体默认值 → 可选 YAML 文件 → GRAPHREC_ 前缀的环境变量。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rushteam/graphrec/engine"
	"github.com/rushteam/graphrec/experiment"
	"github.com/rushteam/graphrec/resilience"
	"github.com/rushteam/graphrec/service"
	"github.com/rushteam/graphrec/store"
	"github.com/rushteam/graphrec/train"
	"github.com/rushteam/graphrec/vector"
)

// Config 是顶层配置。
type Config struct {
	Train      train.Config           `koanf:"train"`
	Index      vector.IndexOptions    `koanf:"index"`
	Engine     engine.Config          `koanf:"engine"`
	Health     resilience.GuardConfig `koanf:"health"`
	Experiment ExperimentConfig       `koanf:"experiment"`
	Persist    PersistConfig          `koanf:"persist"`
	Retrain    RetrainConfig          `koanf:"retrain"`
	Data       DataConfig             `koanf:"data"`
	Embedder   service.KServeConfig   `koanf:"embedder"`
	Log        LogConfig              `koanf:"log"`
}

// ExperimentConfig 是分桶参数。
type ExperimentConfig struct {
	Groups []string `koanf:"groups"`
}

// 持久化后端
const (
	BackendNone   = "none"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// PersistConfig 指定嵌入快照的存放位置。
type PersistConfig struct {
	Backend string            `koanf:"backend"` // none / redis / badger
	Prefix  string            `koanf:"prefix"`
	Redis   store.RedisConfig `koanf:"redis"`
	Badger  BadgerConfig      `koanf:"badger"`
}

type BadgerConfig struct {
	Path string `koanf:"path"` // 为空时使用内存模式
}

// RetrainConfig 是定时重训参数。
type RetrainConfig struct {
	Schedule string        `koanf:"schedule"` // cron 表达式，支持 @every 1h
	Timeout  time.Duration `koanf:"timeout"`  // 单次重训超时，0 表示不限
}

// DataConfig 是输入数据位置。
type DataConfig struct {
	Edges   string `koanf:"edges"`   // user,item[,weight] CSV
	Catalog string `koanf:"catalog"` // YAML 物品目录
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Train:  train.DefaultConfig(),
		Index:  vector.DefaultIndexOptions(),
		Engine: engine.DefaultConfig(),
		Health: resilience.DefaultGuardConfig(),
		Experiment: ExperimentConfig{
			Groups: []string{experiment.Control, experiment.Treatment},
		},
		Persist: PersistConfig{
			Backend: BackendNone,
			Prefix:  "graphrec",
			Redis:   store.RedisConfig{Addr: "127.0.0.1:6379"},
		},
		Retrain: RetrainConfig{
			Schedule: "0 3 * * *",
			Timeout:  time.Hour,
		},
		Embedder: service.KServeConfig{
			Protocol: service.KServeV2,
			Timeout:  2 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Validate 校验全部配置段。
func (c *Config) Validate() error {
	if err := c.Train.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Index.MinRecall < 0 || c.Index.MinRecall > 1 {
		return fmt.Errorf("index: min_recall must be in [0,1], got %v", c.Index.MinRecall)
	}
	if c.Index.ANN && (c.Index.HNSW.M <= 0 || c.Index.HNSW.EfSearch <= 0) {
		return fmt.Errorf("index: hnsw m and ef_search must be positive")
	}
	if c.Health.FailureThreshold == 0 {
		return fmt.Errorf("health: failure_threshold must be positive")
	}
	if len(c.Experiment.Groups) == 0 {
		return fmt.Errorf("experiment: at least one group is required")
	}
	for _, g := range c.Experiment.Groups {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("experiment: group names must not be blank")
		}
	}
	switch c.Persist.Backend {
	case BackendNone, BackendBadger:
	case BackendRedis:
		if c.Persist.Redis.Addr == "" {
			return fmt.Errorf("persist: redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("persist: unknown backend %q", c.Persist.Backend)
	}
	if c.Retrain.Schedule != "" {
		if _, err := cron.ParseStandard(c.Retrain.Schedule); err != nil {
			return fmt.Errorf("retrain: invalid schedule %q: %w", c.Retrain.Schedule, err)
		}
	}
	if c.Embedder.Endpoint != "" {
		if c.Embedder.ModelName == "" {
			return fmt.Errorf("embedder: model is required when endpoint is set")
		}
		if p := c.Embedder.Protocol; p != "" && p != service.KServeV1 && p != service.KServeV2 {
			return fmt.Errorf("embedder: unknown protocol %q", p)
		}
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

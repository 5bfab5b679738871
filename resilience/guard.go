// Package resilience 决定一次请求能否走向量路径。
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/metrics"
)

var errUnhealthy = errors.New("vector backend reported unhealthy")

// GuardConfig 是熔断器参数。
type GuardConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold" json:"failure_threshold"` // 连续失败多少次后熔断
	OpenTimeout      time.Duration `koanf:"open_timeout" json:"open_timeout"`           // 熔断后多久进入半开
	Interval         time.Duration `koanf:"interval" json:"interval"`                   // 闭合状态下计数清零周期，0 表示不清零
	HalfOpenRequests uint32        `koanf:"half_open_requests" json:"half_open_requests"`
	ProbeTimeout     time.Duration `koanf:"probe_timeout" json:"probe_timeout"`
}

// DefaultGuardConfig 返回默认熔断参数。
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		FailureThreshold: 3,
		OpenTimeout:      10 * time.Second,
		HalfOpenRequests: 1,
		ProbeTimeout:     200 * time.Millisecond,
	}
}

// Guard 用熔断器包装向量后端的存活探针。
//
// 闭合状态下每次询问都会调用探针；探针失败或召回源上报的失败累计到阈值后熔断，
// 熔断期间直接判定为不健康，不再调用探针。
type Guard struct {
	probe   core.HealthChecker
	cfg     GuardConfig
	cb      *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// NewGuard 创建 Guard。probe 为 nil 时后端视为始终健康，只有上报的失败会触发熔断。
func NewGuard(probe core.HealthChecker, cfg GuardConfig, logger zerolog.Logger, m *metrics.Collector) *Guard {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	g := &Guard{
		probe:   probe,
		cfg:     cfg,
		logger:  logger.With().Str("component", "health_guard").Logger(),
		metrics: m,
	}
	g.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "vector-backend",
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("vector backend breaker state changed")
			g.metrics.BreakerTransition(to.String())
		},
	})
	return g
}

// IsVectorBackendHealthy 询问探针（经过熔断器）。
func (g *Guard) IsVectorBackendHealthy(ctx context.Context) bool {
	_, err := g.cb.Execute(func() (struct{}, error) {
		if g.probe == nil {
			return struct{}{}, nil
		}
		probeCtx := ctx
		if g.cfg.ProbeTimeout > 0 {
			var cancel context.CancelFunc
			probeCtx, cancel = context.WithTimeout(ctx, g.cfg.ProbeTimeout)
			defer cancel()
		}
		if !g.probe.IsVectorBackendHealthy(probeCtx) {
			return struct{}{}, errUnhealthy
		}
		return struct{}{}, nil
	})
	return err == nil
}

// ReportFailure 记录一次向量路径失败（例如检索超时）。熔断期间忽略。
func (g *Guard) ReportFailure(err error) {
	if err == nil {
		return
	}
	_, _ = g.cb.Execute(func() (struct{}, error) { return struct{}{}, err })
}

// State 返回熔断器状态：closed / half-open / open。
func (g *Guard) State() string {
	return g.cb.State().String()
}

var _ core.HealthChecker = (*Guard)(nil)

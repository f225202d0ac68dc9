package messaging

import (
	"math"
	"time"

	"aida-engine/internal/config"
)

// BackoffConfig 失败消息重新投递前的等待策略，按投递次数指数增长
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2}
}

// BackoffFromConfig 缺省或非法字段回落到默认值
func BackoffFromConfig(cfg config.BackoffConfig) BackoffConfig {
	b := DefaultBackoffConfig()
	if cfg.Initial > 0 {
		b.Initial = cfg.Initial
	}
	if cfg.Max > 0 {
		b.Max = cfg.Max
	}
	if cfg.Multiplier >= 1 {
		b.Multiplier = cfg.Multiplier
	}
	return b
}

// CalculateBackoff 第 retryCount 次重试前的等待时间，不超过 Max
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := float64(c.Initial) * math.Pow(c.Multiplier, float64(retryCount))
	if math.IsInf(d, 0) || d > float64(c.Max) {
		return c.Max
	}
	return time.Duration(d)
}

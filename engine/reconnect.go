package engine

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ReconnectConfig 重连配置
type ReconnectConfig struct {
	// 最大重试次数，0 表示无限重试
	MaxRetries int

	// 初始重连延迟
	InitialDelay time.Duration

	// 最大重连延迟
	MaxDelay time.Duration

	// 退避乘数（每次失败后延迟乘以此值）
	BackoffMultiplier float64

	// 抖动比例（0-1，添加随机性避免雷鸣效应）
	JitterFactor float64
}

// DefaultReconnectConfig 返回默认重连配置
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxRetries:        10,              // 最多重试 10 次
		InitialDelay:      time.Second,     // 初始延迟 1 秒
		MaxDelay:          5 * time.Minute, // 最大延迟 5 分钟
		BackoffMultiplier: 2.0,             // 每次翻倍
		JitterFactor:      0.2,             // 20% 抖动
	}
}

// Validate 验证重连配置
func (rc *ReconnectConfig) Validate() error {
	var errs []error
	if rc.MaxRetries < 0 {
		errs = append(errs, errors.New("ReconnectConfig.MaxRetries must not be negative"))
	}
	if rc.InitialDelay < 0 {
		errs = append(errs, errors.New("ReconnectConfig.InitialDelay must not be negative"))
	}
	if rc.MaxDelay < rc.InitialDelay {
		errs = append(errs, errors.New("ReconnectConfig.MaxDelay must not be less than InitialDelay"))
	}
	if rc.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("ReconnectConfig.BackoffMultiplier must be at least 1"))
	}
	if rc.JitterFactor < 0 || rc.JitterFactor > 1 {
		errs = append(errs, errors.New("ReconnectConfig.JitterFactor must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// Backoff 计算第 attempt 次重连（从 1 开始）的退避延迟
func (rc *ReconnectConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// 指数退避：delay = initialDelay * (multiplier ^ (attempt - 1))
	delay := float64(rc.InitialDelay) * math.Pow(rc.BackoffMultiplier, float64(attempt-1))

	// 添加抖动
	if rc.JitterFactor > 0 {
		delay += delay * rc.JitterFactor * (2*rand.Float64() - 1) // -jitter ~ +jitter
	}

	// 限制最大延迟
	if delay > float64(rc.MaxDelay) {
		delay = float64(rc.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

package service

import (
	"context"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
)

// Sleeper 退避等待；ctx 取消时提前返回 ctx.Err()
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy 限流与网络抖动的有界重试
type RetryPolicy struct {
	// MaxAttempts 含首次调用
	MaxAttempts int
	Ladder      []time.Duration
	MaxBackoff  time.Duration
}

var defaultLadder = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

func RetryPolicyFromConfig(cfg config.SyncConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Ladder:      cfg.BackoffLadder,
		MaxBackoff:  cfg.MaxBackoff,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 3
	}
	return p.MaxAttempts
}

// Backoff 第 attempt 次失败后的等待时间；平台给出 rate_limit_reset 时以其为准，统一受 MaxBackoff 约束
func (p RetryPolicy) Backoff(attempt int, resp *model.PlatformResponse, now time.Time) time.Duration {
	ladder := p.Ladder
	if len(ladder) == 0 {
		ladder = defaultLadder
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	wait := ladder[idx]
	if resp != nil && resp.RateLimitReset != nil {
		if until := resp.RateLimitReset.Sub(now); until > 0 {
			wait = until
		}
	}
	if p.MaxBackoff > 0 && wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

// retryResult 一次带重试的调用的最终结果
type retryResult struct {
	Response *model.PlatformResponse
	Outcome  model.Outcome
	Reason   string
	Attempts int
	// Err 只有退避期间 ctx 被取消时非 nil
	Err error
}

// Run 按 Classify 的结果决定是否重试：成功与致命错误立即返回，可重试错误按阶梯退避
func (p RetryPolicy) Run(ctx context.Context, sleep Sleeper, now func() time.Time, onRetry func(reason string, wait time.Duration), call func(attempt int) *model.PlatformResponse) retryResult {
	if sleep == nil {
		sleep = sleepContext
	}
	if now == nil {
		now = time.Now
	}
	var res retryResult
	maxAttempts := p.attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		res.Response = call(attempt)
		res.Outcome, res.Reason = model.Classify(res.Response)
		if res.Outcome != model.OutcomeRetryable || attempt == maxAttempts {
			return res
		}
		wait := p.Backoff(attempt, res.Response, now())
		if onRetry != nil {
			onRetry(res.Reason, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}

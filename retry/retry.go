// Package retry 对幂等步骤做有界的指数退避重试。
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// DefaultAttempts 未指定时的尝试次数
const DefaultAttempts = 3

// Policy 重试策略。第 i 次失败（从 0 开始）之后等待 BaseDelay * 2^i 再尝试。
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	// Retryable 返回 false 的错误立即返回；为 nil 时所有错误都重试
	Retryable func(error) bool
	// OnRetry 每次决定重试前调用
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep 可替换的等待函数，测试里用来跳过真实等待
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay 第 attemptIndex 次失败之后的等待时间
func (p Policy) Delay(attemptIndex int) time.Duration {
	if p.BaseDelay <= 0 || attemptIndex < 0 {
		return 0
	}
	return p.BaseDelay << uint(attemptIndex)
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// backoff 等待由 Sleep 完成，go-retry 自己的计时器只收到 0。
// Sleep 失败（上下文结束）时停止重试，返回最后一次的错误。
func (p Policy) backoff(ctx context.Context, last *error) goretry.Backoff {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var exp goretry.Backoff
	if p.BaseDelay > 0 {
		exp = goretry.NewExponential(p.BaseDelay)
	}

	attempt := 0
	next := goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		var d time.Duration
		if exp != nil {
			d, _ = exp.Next()
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, *last, d)
		}
		if err := sleep(ctx, d); err != nil {
			return 0, true
		}
		return 0, false
	})
	return goretry.WithMaxRetries(uint64(p.attempts()-1), next)
}

// Do 执行 fn，直到成功、遇到不可重试错误、上下文结束或次数用尽
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value 和 Do 相同，但返回 fn 的结果
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		v    T
		last error
	)
	err := goretry.Do(ctx, p.backoff(ctx, &last), func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		if err == nil {
			return nil
		}
		last = err
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		return goretry.RetryableError(err)
	})
	if err != nil {
		// 报告最后一次真实的失败，而不是 go-retry 的包装或两次尝试之间的上下文错误
		if last != nil {
			err = last
		}
		var zero T
		return zero, err
	}
	return v, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

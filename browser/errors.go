package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BrowserLaunchError 找不到浏览器，或进程没能在超时内开放调试端口
type BrowserLaunchError struct {
	Reason string
	Err    error
}

func (e BrowserLaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("browser launch failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("browser launch failed: %s", e.Reason)
}

func (e BrowserLaunchError) Unwrap() error { return e.Err }

// LoginRequiredTimeoutError 人工登录没有在限定时间内完成
type LoginRequiredTimeoutError struct {
	Platform string
	Timeout  time.Duration
	URL      string
}

func (e LoginRequiredTimeoutError) Error() string {
	return fmt.Sprintf("%s login not completed within %s (still at %s)", e.Platform, e.Timeout, e.URL)
}

// SelectorExhaustedError 某个字段的候选选择器全部失效，通常意味着页面改版
type SelectorExhaustedError struct {
	Field string
	Tried []string
}

func (e SelectorExhaustedError) Error() string {
	return fmt.Sprintf("no selector matched for %s (tried: %s)", e.Field, strings.Join(e.Tried, " | "))
}

// NavigationTimeoutError 页面导航或调试端口就绪超时
type NavigationTimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e NavigationTimeoutError) Error() string {
	msg := fmt.Sprintf("navigation to %s did not become ready", e.URL)
	if e.Timeout > 0 {
		msg += fmt.Sprintf(" within %s", e.Timeout)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e NavigationTimeoutError) Unwrap() error { return e.Err }

// SubmitClickFailure 发布/草稿按钮点击失败，且快捷键兜底也失败
type SubmitClickFailure struct {
	Action   string
	Selector string
	Err      error
}

func (e SubmitClickFailure) Error() string {
	return fmt.Sprintf("%s click on %q failed: %v", e.Action, e.Selector, e.Err)
}

func (e SubmitClickFailure) Unwrap() error { return e.Err }

// ContentInjectionError 合成粘贴/键入后编辑器里看不到内容
type ContentInjectionError struct {
	Field    string
	Attempts []string
	Err      error
}

func (e ContentInjectionError) Error() string {
	msg := fmt.Sprintf("content injection into %s produced no visible content", e.Field)
	if len(e.Attempts) > 0 {
		msg += fmt.Sprintf(" (strategies: %s)", strings.Join(e.Attempts, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ContentInjectionError) Unwrap() error { return e.Err }

// NotReadyError 元素暂时不可见或不可交互，属于可重试的瞬时状态
type NotReadyError struct {
	Selector string
	Err      error
}

func (e NotReadyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("element %q not ready: %v", e.Selector, e.Err)
	}
	return fmt.Sprintf("element %q not ready", e.Selector)
}

func (e NotReadyError) Unwrap() error { return e.Err }

// IsRetryable 只有幂等的就绪类错误允许重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.As(err, new(BrowserLaunchError)) {
		return false
	}
	var nav NavigationTimeoutError
	if errors.As(err, &nav) {
		return true
	}
	var nr NotReadyError
	return errors.As(err, &nr)
}

// ErrorClass 返回错误在分类体系中的名字，用于 CLI 输出
func ErrorClass(err error) string {
	switch {
	case errors.As(err, new(BrowserLaunchError)):
		return "BrowserLaunchError"
	case errors.As(err, new(LoginRequiredTimeoutError)):
		return "LoginRequiredTimeoutError"
	case errors.As(err, new(SelectorExhaustedError)):
		return "SelectorExhaustedError"
	case errors.As(err, new(NavigationTimeoutError)):
		return "NavigationTimeoutError"
	case errors.As(err, new(SubmitClickFailure)):
		return "SubmitClickFailure"
	case errors.As(err, new(ContentInjectionError)):
		return "ContentInjectionError"
	case errors.As(err, new(NotReadyError)):
		return "NotReadyError"
	default:
		return "Error"
	}
}

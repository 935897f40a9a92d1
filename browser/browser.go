// Package browser 定义发布流程依赖的浏览器能力接口，以及两种实现共用的
// 基础设施：调试端口分配、浏览器可执行文件查找、进程启动与错误类型。
package browser

import (
	"context"
	"time"
)

// Driver 浏览器驱动类型
type Driver string

const (
	// DriverCDP 直接通过 DevTools 协议控制本机 Chrome
	DriverCDP Driver = "cdp"
	// DriverPlaywright 通过 playwright-go 的持久化上下文控制 Chromium
	DriverPlaywright Driver = "playwright"
)

// ParseDriver 解析驱动名称，未知值回落到 CDP
func ParseDriver(s string) Driver {
	switch Driver(s) {
	case DriverPlaywright, "pw":
		return DriverPlaywright
	default:
		return DriverCDP
	}
}

// SyntheticEvent 在元素上派发的合成事件。
// Type 为 paste/drop 时，Data 会被填入 DataTransfer（mime -> 内容）。
type SyntheticEvent struct {
	Type string
	Data map[string]string
}

// Page 单个标签页上的自动化操作，编排逻辑只依赖这个接口。
// selector 支持普通 CSS 与 "text=文字" 两种写法。
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Focus(ctx context.Context, selector string) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	// Evaluate 执行形如 "(arg) => {...}" 的函数，返回值按 JSON 解码
	Evaluate(ctx context.Context, fn string, arg any) (any, error)
	DispatchSyntheticEvent(ctx context.Context, selector string, ev SyntheticEvent) error
	SetInputFiles(ctx context.Context, selector string, files []string) error
	Screenshot(ctx context.Context, path string) error
}

// Session 一次运行独占的浏览器会话：一个进程、一个持久化目录、一个活动页面
type Session interface {
	Page() Page
	// SaveState 登录完成后持久化会话，CDP 下 profile 目录本身就是持久化的
	SaveState() error
	Close() error
}

// LaunchOptions 启动浏览器所需参数
type LaunchOptions struct {
	ExecPath   string
	Port       int
	ProfileDir string
	Headless   bool
	// DebugPortTimeout 等待调试端口就绪的时间
	DebugPortTimeout time.Duration
	Args             []string
}

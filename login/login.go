// Package login 识别登录墙，并在需要人工登录时挂起流程直到登录完成或超时。
package login

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/logutil"
)

// DefaultTimeout 等待人工登录的默认时间
const DefaultTimeout = 5 * time.Minute

const defaultPollInterval = time.Second

// SaveSessionFunc 登录成功后保存会话的回调
type SaveSessionFunc func() error

// Gate 某个平台的登录检测
type Gate struct {
	Platform string
	// Patterns 登录页路径片段，例如 "/login"、"/i/flow/login"
	Patterns []string
	// ReturnURL 登录后没有回到编辑页时跳转的地址
	ReturnURL         string
	NavigationTimeout time.Duration
	SaveSession       SaveSessionFunc
	PollInterval      time.Duration
	// Out 提示信息输出位置，默认 stderr
	Out io.Writer
}

// IsLoginURL 地址是否命中登录页
func (g *Gate) IsLoginURL(raw string) bool {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}
	for _, p := range g.Patterns {
		if p != "" && strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// IsLoggedIn 当前页面不在登录页即视为已登录
func (g *Gate) IsLoggedIn(ctx context.Context, page browser.Page) (bool, error) {
	current, err := page.URL(ctx)
	if err != nil {
		return false, err
	}
	return !g.IsLoginURL(current), nil
}

// WaitForLogin 打印 LOGIN REQUIRED 提示并轮询地址，直到离开登录页或超时
func (g *Gate) WaitForLogin(ctx context.Context, page browser.Page, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := g.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	current, err := page.URL(ctx)
	if err != nil {
		return err
	}
	if !g.IsLoginURL(current) {
		return nil
	}
	g.banner(timeout)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return browser.LoginRequiredTimeoutError{Platform: g.Platform, Timeout: timeout, URL: current}
		case <-ticker.C:
		}

		u, err := page.URL(ctx)
		if err != nil {
			logutil.Debugf("[%s] 读取当前地址失败: %v", g.Platform, err)
			continue
		}
		current = u
		if g.IsLoginURL(current) {
			continue
		}

		logutil.Infof("[%s] 登录成功", g.Platform)
		if g.SaveSession != nil {
			if err := g.SaveSession(); err != nil {
				logutil.Warnf("[%s] 登录成功后保存会话失败: %v", g.Platform, err)
			}
		}
		return g.returnToEditor(ctx, page, current)
	}
}

func (g *Gate) returnToEditor(ctx context.Context, page browser.Page, current string) error {
	if g.ReturnURL == "" || samePage(current, g.ReturnURL) {
		return nil
	}
	logutil.Infof("[%s] 正在跳转回编辑页面: %s", g.Platform, g.ReturnURL)
	timeout := g.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return page.Navigate(ctx, g.ReturnURL, timeout)
}

func (g *Gate) banner(timeout time.Duration) {
	out := g.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "\n==================== LOGIN REQUIRED ====================\n")
	fmt.Fprintf(out, "%s 需要登录：请在打开的浏览器窗口中完成登录（含短信/扫码验证）。\n", g.Platform)
	fmt.Fprintf(out, "最长等待 %s，登录完成后会自动继续。\n", timeout)
	fmt.Fprintf(out, "========================================================\n\n")
	logutil.Warnf("[%s] 检测到未登录，等待人工登录", g.Platform)
}

// samePage 主机与路径相同即视为同一页面
func samePage(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ua.Host == ub.Host && strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/")
}

// Package pw 用 playwright-go 的持久化上下文实现 browser.Session。
// 登录状态由 profile 目录本身保存，另外导出一份 state.json 便于备份和迁移。
package pw

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	stealth "github.com/jonfriesen/playwright-go-stealth"
	"github.com/playwright-community/playwright-go"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/installer"
	"github.com/auto-blog/publisher/logutil"
)

// StateFile profile 目录下的会话状态文件名
const StateFile = "state.json"

var _ browser.Session = (*Session)(nil)

// Session 持久化上下文与其中第一个注入了 stealth 脚本的页面
type Session struct {
	pw         *playwright.Playwright
	context    playwright.BrowserContext
	page       *Page
	profileDir string

	mu      sync.Mutex
	closing bool
}

// Launch 以 profile 目录启动持久化上下文，复用已有的第一个页面
func Launch(ctx context.Context, opts browser.LaunchOptions) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ExecPath == "" {
		if err := installer.EnsurePlaywrightInstalled(); err != nil {
			return nil, browser.BrowserLaunchError{Reason: "install playwright", Err: err}
		}
	}
	if err := os.MkdirAll(opts.ProfileDir, 0o700); err != nil {
		return nil, browser.BrowserLaunchError{Reason: "create profile dir", Err: err}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, browser.BrowserLaunchError{Reason: "start playwright driver", Err: err}
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: append([]string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-first-run",
			"--no-default-browser-check",
		}, opts.Args...),
		Viewport:   &playwright.Size{Width: 1366, Height: 900},
		Locale:     playwright.String("zh-CN"),
		TimezoneId: playwright.String("Asia/Shanghai"),
	}
	if opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecPath)
	}
	bctx, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir, launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, browser.BrowserLaunchError{Reason: "launch persistent context", Err: err}
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, browser.BrowserLaunchError{Reason: "open page", Err: err}
	}
	if err := stealth.Inject(page); err != nil {
		logutil.Warnf("注入 stealth 脚本失败: %v", err)
	}

	s := &Session{pw: pw, context: bctx, page: &Page{page: page}, profileDir: opts.ProfileDir}

	bctx.On("close", func() {
		if !s.isClosing() {
			logutil.Warnf("浏览器窗口被手动关闭")
		}
	})
	return s, nil
}

// Page 活动页面
func (s *Session) Page() browser.Page { return s.page }

// SaveState 把 cookies 和 localStorage 导出到 state.json
func (s *Session) SaveState() error {
	if s.context == nil {
		return nil
	}
	state, err := s.context.StorageState()
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.profileDir, StateFile), data, 0o600); err != nil {
		return err
	}
	logutil.Debugf("会话数据: %d 个 cookies, %d bytes", len(state.Cookies), len(data))
	return nil
}

// Close 导出状态后关闭上下文与驱动
func (s *Session) Close() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	var errs []error
	if err := s.SaveState(); err != nil {
		errs = append(errs, err)
	}
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	return errors.Join(errs...)
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Package installer 检查并安装 Playwright 驱动与 Chromium。
package installer

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/auto-blog/publisher/logutil"
)

// Status 安装检查结果
type Status struct {
	DriverReady  bool
	BrowserReady bool
	Err          error
}

func (s Status) String() string {
	switch {
	case s.DriverReady && s.BrowserReady:
		return "playwright: ok"
	case s.DriverReady:
		return fmt.Sprintf("playwright: chromium missing (%v)", s.Err)
	default:
		return fmt.Sprintf("playwright: driver missing (%v)", s.Err)
	}
}

// Check 只检查不安装
func Check() Status {
	pw, err := playwright.Run()
	if err != nil {
		return Status{Err: err}
	}
	defer pw.Stop()

	b, err := pw.Chromium.Launch()
	if err != nil {
		return Status{DriverReady: true, Err: err}
	}
	_ = b.Close()
	return Status{DriverReady: true, BrowserReady: true}
}

// EnsurePlaywrightInstalled 检查并在缺失时安装 Playwright Chromium
func EnsurePlaywrightInstalled() error {
	st := Check()
	if st.DriverReady && st.BrowserReady {
		logutil.Debugf("Playwright 已正确安装")
		return nil
	}
	if !missing(st.Err) {
		return st.Err
	}
	logutil.Infof("检测到 Playwright 未安装完整，开始安装...")
	return install()
}

func missing(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no such file or directory") ||
		strings.Contains(msg, "could not start driver") ||
		strings.Contains(msg, "please install the driver") ||
		strings.Contains(msg, "Executable doesn't exist")
}

func install() error {
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return fmt.Errorf("install playwright chromium: %w", err)
	}
	st := Check()
	if !st.BrowserReady {
		return fmt.Errorf("verify playwright install: %w", st.Err)
	}
	logutil.Infof("Playwright 浏览器安装完成")
	return nil
}

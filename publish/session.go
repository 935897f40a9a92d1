package publish

import (
	"context"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/browser/cdp"
	"github.com/auto-blog/publisher/browser/pw"
	"github.com/auto-blog/publisher/config"
	"github.com/auto-blog/publisher/logutil"
)

// SessionFactory 启动浏览器会话，测试里替换为假会话
type SessionFactory func(ctx context.Context, opts browser.LaunchOptions) (browser.Session, error)

// NewSessionFactory 按配置选择 CDP 或 Playwright 实现
func NewSessionFactory(cfg config.BrowserConfig) SessionFactory {
	return func(ctx context.Context, opts browser.LaunchOptions) (browser.Session, error) {
		if opts.DebugPortTimeout <= 0 {
			opts.DebugPortTimeout = cfg.DebugPortTimeout
		}
		opts.Headless = opts.Headless || cfg.Headless

		switch cfg.Driver {
		case browser.DriverPlaywright:
			if opts.ExecPath == "" {
				opts.ExecPath = cfg.Executable
			}
			logutil.Debugf("使用 Playwright 启动浏览器")
			return pw.Launch(ctx, opts)
		default:
			path, err := browser.LocateBrowser(firstNonEmpty(opts.ExecPath, cfg.Executable), cfg.Search)
			if err != nil {
				return nil, err
			}
			opts.ExecPath = path
			logutil.Debugf("使用本机浏览器: %s", path)
			return cdp.Launch(ctx, opts)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

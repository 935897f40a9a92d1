package cdp

import (
	"context"
	"errors"
	"time"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/logutil"
)

// portAttempts 调试端口被抢占时重新分配端口的次数
const portAttempts = 3

const stopTimeout = 5 * time.Second

var _ browser.Session = (*Session)(nil)

// Session 一个本机 Chrome 进程和它的第一个标签页
type Session struct {
	proc   *browser.Process
	client *Client
	page   *Page
}

// Launch 分配端口、启动浏览器、连接第一个页面目标。
// 进程在调试端口就绪前退出时视为端口冲突，换一个端口重试。
func Launch(ctx context.Context, opts browser.LaunchOptions) (*Session, error) {
	if opts.DebugPortTimeout <= 0 {
		opts.DebugPortTimeout = browser.DefaultDebugPortTimeout
	}
	fixedPort := opts.Port != 0

	var lastErr error
	for attempt := 0; attempt < portAttempts; attempt++ {
		if !fixedPort {
			port, err := browser.AllocatePort()
			if err != nil {
				return nil, browser.BrowserLaunchError{Reason: "allocate debug port", Err: err}
			}
			opts.Port = port
		}

		s, err := launchOnce(ctx, opts)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if fixedPort || !errors.Is(err, errExitedEarly) {
			break
		}
		logutil.Warnf("浏览器启动后立即退出，端口 %d 可能被占用，重试", opts.Port)
	}
	return nil, lastErr
}

var errExitedEarly = errors.New("browser exited before debug port was ready")

func launchOnce(ctx context.Context, opts browser.LaunchOptions) (*Session, error) {
	proc, err := browser.Launch(opts)
	if err != nil {
		return nil, err
	}

	fail := func(reason string, err error) (*Session, error) {
		exited := proc.Exited()
		_ = proc.Stop(stopTimeout)
		if exited {
			err = errors.Join(errExitedEarly, err)
		}
		return nil, browser.BrowserLaunchError{Reason: reason, Err: err}
	}

	if _, err := browser.WaitForDebugPort(ctx, opts.Port, opts.DebugPortTimeout); err != nil {
		return fail("debug port not ready", err)
	}
	wsURL, err := browser.PageTarget(ctx, opts.Port, opts.DebugPortTimeout)
	if err != nil {
		return fail("no page target", err)
	}

	client, err := Dial(ctx, wsURL)
	if err != nil {
		return fail("connect page target", err)
	}
	p, err := NewPage(ctx, client)
	if err != nil {
		_ = client.Close()
		return fail("enable page domains", err)
	}

	logutil.Infof("已连接浏览器 pid=%d port=%d", proc.PID, proc.Port)
	return &Session{proc: proc, client: client, page: p}, nil
}

// Page 活动页面
func (s *Session) Page() browser.Page { return s.page }

// Process 底层浏览器进程
func (s *Session) Process() *browser.Process { return s.proc }

// SaveState profile 目录由浏览器自己持久化
func (s *Session) SaveState() error { return nil }

// Close 断开连接并结束浏览器进程
func (s *Session) Close() error {
	var errs []error
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.proc.Stop(stopTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

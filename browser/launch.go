package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/auto-blog/publisher/logutil"
)

// DefaultDebugPortTimeout 等待调试端口就绪的默认时间
const DefaultDebugPortTimeout = 15 * time.Second

// Process 已启动的浏览器进程
type Process struct {
	PID        int
	Port       int
	ProfileDir string
	StartedAt  time.Time
	cmd        *exec.Cmd
	done       chan error
}

// Launch 带 --remote-debugging-port 和持久化 profile 启动浏览器
func Launch(opts LaunchOptions) (*Process, error) {
	if opts.ExecPath == "" {
		return nil, BrowserLaunchError{Reason: "no browser executable"}
	}
	if err := os.MkdirAll(opts.ProfileDir, 0o700); err != nil {
		return nil, BrowserLaunchError{Reason: "create profile dir", Err: err}
	}

	cmd := exec.Command(opts.ExecPath, buildArgs(opts)...)
	cmd.Env = os.Environ()
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, BrowserLaunchError{Reason: "start " + opts.ExecPath, Err: err}
	}
	logutil.Debugf("浏览器已启动 pid=%d port=%d profile=%s", cmd.Process.Pid, opts.Port, opts.ProfileDir)

	proc := &Process{
		PID:        cmd.Process.Pid,
		Port:       opts.Port,
		ProfileDir: opts.ProfileDir,
		StartedAt:  time.Now(),
		cmd:        cmd,
		done:       make(chan error, 1),
	}
	go func() { proc.done <- cmd.Wait() }()
	return proc, nil
}

// Stop 先优雅退出，超时后强杀整个进程组
func (p *Process) Stop(timeout time.Duration) error {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	killProcessGroup(p.cmd, false)

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		killProcessGroup(p.cmd, true)
		<-p.done
		return nil
	}
}

// Exited 进程是否已经退出
func (p *Process) Exited() bool {
	select {
	case err := <-p.done:
		p.done <- err
		return true
	default:
		return false
	}
}

func buildArgs(opts LaunchOptions) []string {
	args := []string{
		"--remote-debugging-address=127.0.0.1",
		fmt.Sprintf("--remote-debugging-port=%d", opts.Port),
		"--user-data-dir=" + opts.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-blink-features=AutomationControlled",
		"--disable-session-crashed-bubble",
		"--hide-crash-restore-bubble",
		"--password-store=basic",
	}
	if opts.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	if runtime.GOOS == "linux" {
		args = append(args, "--disable-dev-shm-usage")
	}
	args = append(args, opts.Args...)
	// 保证至少有一个 page target
	return append(args, "about:blank")
}

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// TargetInfo /json/list 返回的调试目标
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// WaitForDebugPort 轮询 /json/version 直到返回浏览器级 WebSocket 地址
func WaitForDebugPort(ctx context.Context, port int, timeout time.Duration) (string, error) {
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var wsURL string
	err := pollJSON(ctx, base+"/json/version", timeout, func(body []byte) bool {
		var v versionInfo
		if json.Unmarshal(body, &v) != nil || v.WebSocketDebuggerURL == "" {
			return false
		}
		wsURL = v.WebSocketDebuggerURL
		return true
	})
	if err != nil {
		return "", NavigationTimeoutError{URL: base, Timeout: timeout, Err: err}
	}
	return wsURL, nil
}

// PageTarget 返回第一个 page 类型目标的 WebSocket 地址
func PageTarget(ctx context.Context, port int, timeout time.Duration) (string, error) {
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var wsURL string
	err := pollJSON(ctx, base+"/json/list", timeout, func(body []byte) bool {
		var targets []TargetInfo
		if json.Unmarshal(body, &targets) != nil {
			return false
		}
		for _, t := range targets {
			if t.Type == "page" && strings.TrimSpace(t.WebSocketDebuggerURL) != "" {
				wsURL = t.WebSocketDebuggerURL
				return true
			}
		}
		return false
	})
	if err != nil {
		return "", NavigationTimeoutError{URL: base + "/json/list", Timeout: timeout, Err: err}
	}
	return wsURL, nil
}

func pollJSON(ctx context.Context, url string, timeout time.Duration, accept func([]byte) bool) error {
	if timeout <= 0 {
		timeout = DefaultDebugPortTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if body, err := getBody(ctx, client, url); err == nil && accept(body) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func getBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

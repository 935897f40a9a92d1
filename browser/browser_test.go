package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDriver(t *testing.T) {
	assert.Equal(t, DriverPlaywright, ParseDriver("playwright"))
	assert.Equal(t, DriverPlaywright, ParseDriver("pw"))
	assert.Equal(t, DriverCDP, ParseDriver("cdp"))
	assert.Equal(t, DriverCDP, ParseDriver(""))
	assert.Equal(t, DriverCDP, ParseDriver("firefox"))
}

func TestAllocatePortIsFree(t *testing.T) {
	port, err := AllocatePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)

	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	l.Close()
}

func TestFindForPicksFirstExisting(t *testing.T) {
	candidates := PlatformCandidates{
		"darwin":  {"/Applications/A", "/Applications/B"},
		"default": {"/usr/bin/a", "/usr/bin/b"},
	}
	exists := func(p string) bool { return p == "/Applications/B" || p == "/usr/bin/b" }

	got, ok := findFor("darwin", candidates, exists)
	require.True(t, ok)
	assert.Equal(t, "/Applications/B", got)

	// 没有 win32 分组时回落到 default
	got, ok = findFor("win32", candidates, exists)
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/b", got)

	_, ok = findFor("default", candidates, func(string) bool { return false })
	assert.False(t, ok)
}

func TestPlatformKey(t *testing.T) {
	assert.Equal(t, "darwin", platformKey("darwin"))
	assert.Equal(t, "win32", platformKey("windows"))
	assert.Equal(t, "default", platformKey("linux"))
	assert.Equal(t, "default", platformKey("freebsd"))
}

func TestFullCandidatesExtendBasic(t *testing.T) {
	basic, full := BasicCandidates(), FullCandidates()
	for key, list := range basic {
		require.GreaterOrEqual(t, len(full[key]), len(list), key)
		assert.Equal(t, list, full[key][:len(list)], key)
	}
}

func TestLocateBrowserPrefersExplicitPath(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	got, err := LocateBrowser(exe, TierBasic)
	require.NoError(t, err)
	assert.Equal(t, exe, got)
}

func TestLocateBrowserEnvOverride(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "chromium")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv(ChromePathEnv, exe)

	got, err := LocateBrowser("", TierBasic)
	require.NoError(t, err)
	assert.Equal(t, exe, got)
}

func TestLocateBrowserMissingExplicit(t *testing.T) {
	_, err := LocateBrowser(filepath.Join(t.TempDir(), "nope"), TierFull)
	var le BrowserLaunchError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Reason, "not found")
	assert.False(t, IsRetryable(err))
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		class     string
	}{
		{"nil", nil, false, "Error"},
		{"navigation", NavigationTimeoutError{URL: "https://x.com"}, true, "NavigationTimeoutError"},
		{"not ready", NotReadyError{Selector: "#title"}, true, "NotReadyError"},
		{"wrapped not ready", fmt.Errorf("fill title: %w", NotReadyError{Selector: "#title"}), true, "NotReadyError"},
		{"selector exhausted", SelectorExhaustedError{Field: "titleInput", Tried: []string{"a", "b"}}, false, "SelectorExhaustedError"},
		{"submit", SubmitClickFailure{Action: "publish", Selector: "text=Publish", Err: errors.New("detached")}, false, "SubmitClickFailure"},
		{"login", LoginRequiredTimeoutError{Platform: "zhihu", Timeout: time.Minute}, false, "LoginRequiredTimeoutError"},
		{"injection", ContentInjectionError{Field: "editorBody"}, false, "ContentInjectionError"},
		{"launch wrapping navigation", BrowserLaunchError{Reason: "debug port", Err: NavigationTimeoutError{}}, false, "BrowserLaunchError"},
		{"plain", errors.New("boom"), false, "Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			if tt.err != nil {
				assert.Equal(t, tt.class, ErrorClass(tt.err))
			}
		})
	}
}

func TestSelectorExhaustedMessageListsTried(t *testing.T) {
	err := SelectorExhaustedError{Field: "publishButton", Tried: []string{"button.publish", "text=发布"}}
	assert.Equal(t, "no selector matched for publishButton (tried: button.publish | text=发布)", err.Error())
}

func portOf(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

func TestWaitForDebugPortPollsUntilReady(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		if hits.Add(1) < 3 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"Browser":"Chrome/126","webSocketDebuggerUrl":"ws://127.0.0.1/devtools/browser/abc"}`)
	}))
	defer srv.Close()

	ws, err := WaitForDebugPort(context.Background(), portOf(t, srv), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1/devtools/browser/abc", ws)
	assert.GreaterOrEqual(t, hits.Load(), int32(3))
}

func TestWaitForDebugPortTimeout(t *testing.T) {
	port, err := AllocatePort()
	require.NoError(t, err)

	_, err = WaitForDebugPort(context.Background(), port, 300*time.Millisecond)
	var nav NavigationTimeoutError
	require.ErrorAs(t, err, &nav)
	assert.Equal(t, 300*time.Millisecond, nav.Timeout)
}

func TestPageTargetSkipsNonPageTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":"sw","type":"service_worker","webSocketDebuggerUrl":"ws://127.0.0.1/devtools/sw"},
			{"id":"p1","type":"page","url":"about:blank","webSocketDebuggerUrl":"ws://127.0.0.1/devtools/page/p1"}
		]`)
	}))
	defer srv.Close()

	ws, err := PageTarget(context.Background(), portOf(t, srv), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1/devtools/page/p1", ws)
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs(LaunchOptions{Port: 9333, ProfileDir: "/tmp/profile", Headless: true, Args: []string{"--lang=zh-CN"}})
	assert.Contains(t, args, "--remote-debugging-port=9333")
	assert.Contains(t, args, "--user-data-dir=/tmp/profile")
	assert.Contains(t, args, "--headless=new")
	assert.Contains(t, args, "--lang=zh-CN")
	assert.Equal(t, "about:blank", args[len(args)-1])

	headed := buildArgs(LaunchOptions{Port: 1, ProfileDir: "/p"})
	assert.NotContains(t, headed, "--headless=new")
}

func TestLaunchWithoutExecutable(t *testing.T) {
	_, err := Launch(LaunchOptions{ProfileDir: t.TempDir()})
	require.ErrorAs(t, err, new(BrowserLaunchError))
}

func TestWithFinderWrapsBody(t *testing.T) {
	script := WithFinder(`return 1;`)
	assert.Regexp(t, `^\(arg\) => \{`, script)
	assert.Contains(t, script, "const __find")
	assert.Contains(t, script, "return 1;")
	assert.True(t, IsTextSelector("text=发布"))
	assert.False(t, IsTextSelector("button.publish"))
}

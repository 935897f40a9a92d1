package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ChromePathEnv 显式指定浏览器路径的环境变量
const ChromePathEnv = "AUTO_PUBLISH_CHROME_PATH"

// PlatformCandidates 按系统分组的候选路径，键为 darwin / win32 / default
type PlatformCandidates map[string][]string

// SearchTier 查找范围
type SearchTier string

const (
	// TierBasic 只看最常见的安装位置
	TierBasic SearchTier = "basic"
	// TierFull 包含 Brave、Canary、snap 等不常见安装
	TierFull SearchTier = "full"
)

// BasicCandidates 常见的 Chrome / Chromium / Edge 安装位置
func BasicCandidates() PlatformCandidates {
	programFiles := envOr("ProgramFiles", `C:\Program Files`)
	programFilesX86 := envOr("ProgramFiles(x86)", `C:\Program Files (x86)`)
	return PlatformCandidates{
		"darwin": {
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		},
		"win32": {
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Microsoft", "Edge", "Application", "msedge.exe"),
		},
		"default": {
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
		},
	}
}

// FullCandidates 在 BasicCandidates 之后追加的完整候选列表
func FullCandidates() PlatformCandidates {
	home, _ := os.UserHomeDir()
	localAppData := os.Getenv("LOCALAPPDATA")
	programFiles := envOr("ProgramFiles", `C:\Program Files`)

	full := BasicCandidates()
	full["darwin"] = append(full["darwin"],
		filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
		"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		"/Applications/Google Chrome Beta.app/Contents/MacOS/Google Chrome Beta",
		"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		filepath.Join(home, "Applications/Chromium.app/Contents/MacOS/Chromium"),
	)
	win := []string{
		filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe"),
		filepath.Join(programFiles, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
	}
	if localAppData != "" {
		win = append(win,
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Google", "Chrome SxS", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Chromium", "Application", "chrome.exe"),
		)
	}
	full["win32"] = append(full["win32"], win...)
	full["default"] = append(full["default"],
		"/usr/bin/chrome",
		"/usr/bin/microsoft-edge",
		"/usr/bin/microsoft-edge-stable",
		"/usr/bin/brave-browser",
		"/snap/bin/chromium",
		"/usr/local/bin/chromium",
		"/opt/google/chrome/chrome",
	)
	return full
}

// Candidates 返回指定范围的候选列表
func Candidates(tier SearchTier) PlatformCandidates {
	if tier == TierFull {
		return FullCandidates()
	}
	return BasicCandidates()
}

// FindBrowser 返回当前系统下第一个存在的候选路径
func FindBrowser(candidates PlatformCandidates) (string, bool) {
	return findFor(platformKey(runtime.GOOS), candidates, fileExists)
}

// LocateBrowser 依次尝试：显式路径、环境变量、BASIC、FULL
func LocateBrowser(explicit string, tier SearchTier) (string, error) {
	for _, p := range []string{explicit, os.Getenv(ChromePathEnv)} {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !fileExists(p) {
			return "", BrowserLaunchError{Reason: "configured browser executable not found: " + p}
		}
		return p, nil
	}

	if path, ok := FindBrowser(BasicCandidates()); ok {
		return path, nil
	}
	if tier == TierFull || tier == "" {
		if path, ok := FindBrowser(FullCandidates()); ok {
			return path, nil
		}
	}
	return "", BrowserLaunchError{Reason: "no Chrome/Chromium/Edge executable found (set " + ChromePathEnv + ")"}
}

func findFor(key string, candidates PlatformCandidates, exists func(string) bool) (string, bool) {
	list, ok := candidates[key]
	if !ok {
		list = candidates["default"]
	}
	for _, p := range list {
		if p != "" && exists(p) {
			return p, true
		}
	}
	return "", false
}

func platformKey(goos string) string {
	switch goos {
	case "darwin":
		return "darwin"
	case "windows":
		return "win32"
	default:
		return "default"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

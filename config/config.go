// Package config 读取 config.ini 与环境变量，合成一次运行的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/auto-blog/publisher/browser"
)

// 环境变量
const (
	EnvChromePath  = browser.ChromePathEnv
	EnvProfileRoot = "AUTO_PUBLISH_PROFILE_ROOT"
	EnvHeadless    = "AUTO_PUBLISH_HEADLESS"
	EnvDriver      = "AUTO_PUBLISH_DRIVER"
)

// FileName 默认配置文件名
const FileName = "config.ini"

// BrowserConfig [browser] 段
type BrowserConfig struct {
	Driver           browser.Driver
	Executable       string
	Headless         bool
	Search           browser.SearchTier
	DebugPortTimeout time.Duration
}

// PublishConfig [publish] 段
type PublishConfig struct {
	RetryAttempts     int
	BackoffBase       time.Duration
	LoginTimeout      time.Duration
	SelectorTimeout   time.Duration
	NavigationTimeout time.Duration
	DiagnosticsDir    string
}

// Config 配置结构
type Config struct {
	// Path 实际加载的文件，没有找到配置文件时为空
	Path        string
	Browser     BrowserConfig
	Publish     PublishConfig
	ProfileRoot string
}

// Default 内置默认值
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Driver:           browser.DriverCDP,
			Search:           browser.TierFull,
			DebugPortTimeout: browser.DefaultDebugPortTimeout,
		},
		Publish: PublishConfig{
			RetryAttempts:     DefaultRetryAttempts,
			BackoffBase:       500 * time.Millisecond,
			LoginTimeout:      5 * time.Minute,
			SelectorTimeout:   3 * time.Second,
			NavigationTimeout: 30 * time.Second,
			DiagnosticsDir:    ".",
		},
	}
}

// SearchPaths 配置文件的查找顺序
func SearchPaths(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths, FileName)
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "auto-publish", FileName))
	}
	return paths
}

// Load 按查找顺序加载第一个存在的配置文件，再叠加 .env 与环境变量。
// 显式指定的文件不存在时报错，其余位置缺失则使用默认值。
func Load(explicit string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()
	for i, p := range SearchPaths(explicit) {
		if _, err := os.Stat(p); err != nil {
			if explicit != "" && i == 0 {
				return nil, fmt.Errorf("config file %s: %w", p, err)
			}
			continue
		}
		loaded, err := LoadConfig(p)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		break
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadConfig 解析指定的 ini 文件，未出现的键保持默认值
func LoadConfig(filename string) (*Config, error) {
	file, err := ini.Load(filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	cfg := Default()
	cfg.Path = filename

	b := file.Section("browser")
	cfg.Browser.Driver = browser.ParseDriver(b.Key("driver").MustString(string(cfg.Browser.Driver)))
	cfg.Browser.Executable = strings.TrimSpace(b.Key("executable").String())
	cfg.Browser.Headless = b.Key("headless").MustBool(false)
	if strings.EqualFold(b.Key("search").String(), string(browser.TierBasic)) {
		cfg.Browser.Search = browser.TierBasic
	}
	cfg.Browser.DebugPortTimeout = b.Key("debug_port_timeout").MustDuration(cfg.Browser.DebugPortTimeout)

	p := file.Section("publish")
	if p.HasKey("retry_attempts") {
		cfg.Publish.RetryAttempts = ParseRetryAttempts(p.Key("retry_attempts").String())
	}
	cfg.Publish.BackoffBase = p.Key("backoff_base").MustDuration(cfg.Publish.BackoffBase)
	cfg.Publish.LoginTimeout = p.Key("login_timeout").MustDuration(cfg.Publish.LoginTimeout)
	cfg.Publish.SelectorTimeout = p.Key("selector_timeout").MustDuration(cfg.Publish.SelectorTimeout)
	cfg.Publish.NavigationTimeout = p.Key("navigation_timeout").MustDuration(cfg.Publish.NavigationTimeout)
	cfg.Publish.DiagnosticsDir = p.Key("diagnostics_dir").MustString(cfg.Publish.DiagnosticsDir)

	cfg.ProfileRoot = strings.TrimSpace(file.Section("profiles").Key("root").String())
	return cfg, nil
}

// LoadDotEnv 加载工作目录下的 .env，不覆盖已存在的环境变量
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv 用环境变量覆盖配置文件中的值
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvChromePath)); v != "" {
		c.Browser.Executable = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvProfileRoot)); v != "" {
		c.ProfileRoot = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDriver)); v != "" {
		c.Browser.Driver = browser.ParseDriver(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHeadless)); v != "" {
		c.Browser.Headless = parseBool(v, c.Browser.Headless)
	}
}

// Validate 检查互相矛盾或无意义的取值
func (c *Config) Validate() error {
	var errs []error
	if c.Publish.RetryAttempts < 1 {
		errs = append(errs, errors.New("publish.retry_attempts must be >= 1"))
	}
	for name, d := range map[string]time.Duration{
		"publish.login_timeout":      c.Publish.LoginTimeout,
		"publish.selector_timeout":   c.Publish.SelectorTimeout,
		"publish.navigation_timeout": c.Publish.NavigationTimeout,
		"browser.debug_port_timeout": c.Browser.DebugPortTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}

func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

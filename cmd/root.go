// Package cmd 命令行入口：每个平台一个子命令，外加 doctor。
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/cnblogs"
	"github.com/auto-blog/publisher/config"
	"github.com/auto-blog/publisher/installer"
	"github.com/auto-blog/publisher/juejin"
	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/publish"
	"github.com/auto-blog/publisher/segmentfault"
	"github.com/auto-blog/publisher/twitter"
	"github.com/auto-blog/publisher/xiaohongshu"
	"github.com/auto-blog/publisher/zhihu"
)

// globalFlags 所有子命令共享的参数
type globalFlags struct {
	configPath string
	verbose    bool
	driver     string
	headless   bool
}

// app 命令运行所需的依赖，测试里替换浏览器会话
type app struct {
	platforms *platform.Manager
	// launch 为 nil 时按配置创建真实会话
	launch          publish.SessionFactory
	checkPlaywright func() installer.Status
	flags           globalFlags
}

func newApp() *app {
	return &app{
		platforms: platform.NewManager(
			twitter.New(), xiaohongshu.New(), zhihu.New(),
			juejin.New(), cnblogs.New(), segmentfault.New(),
		),
		checkPlaywright: installer.Check,
	}
}

// Main 执行命令并返回进程退出码
func Main() int {
	return run(context.Background(), newApp(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publisher",
		Short: "Publish articles to X, Xiaohongshu, Zhihu and other blog platforms through a real browser",
		Long: "publisher drives a locally installed Chrome with a persistent profile, " +
			"fills the platform's article editor, and saves a draft or publishes it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logutil.SetOutput(cmd.ErrOrStderr())
			logutil.SetVerbose(a.flags.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Path to config.ini")
	pf.BoolVar(&a.flags.verbose, "verbose", false, "Log every step")
	pf.StringVar(&a.flags.driver, "driver", "", "Browser backend: cdp or playwright")
	pf.BoolVar(&a.flags.headless, "headless", false, "Run the browser without a window")

	for _, p := range a.platforms.List() {
		cmd.AddCommand(a.platformCommand(p))
	}
	cmd.AddCommand(a.doctorCommand())
	return cmd
}

// loadConfig 配置文件 < 环境变量 < 命令行
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Browser.Driver = browser.ParseDriver(a.flags.driver)
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = a.flags.headless
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logutil.Debugf("配置文件: %q, 驱动: %s", cfg.Path, cfg.Browser.Driver)
	return cfg, nil
}

// resultError 发布失败的结果，携带截图路径
type resultError struct {
	res publish.Result
}

func (e resultError) Error() string { return e.res.Error }

func (e resultError) Unwrap() error { return e.res.Err }

// printError 输出 "错误类型: 信息"，有截图时再输出截图路径
func printError(w io.Writer, err error) {
	var re resultError
	if errors.As(err, &re) {
		fmt.Fprintf(w, "%s: %s\n", re.res.ErrorClass, re.res.Error)
		if re.res.ScreenshotPath != "" {
			fmt.Fprintf(w, "screenshot: %s\n", re.res.ScreenshotPath)
		}
		return
	}
	fmt.Fprintf(w, "%s: %v\n", browser.ErrorClass(err), err)
}

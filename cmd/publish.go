package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auto-blog/publisher/article"
	"github.com/auto-blog/publisher/config"
	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/publish"
	"github.com/auto-blog/publisher/selector"
	"github.com/auto-blog/publisher/session"
)

// publishFlags 平台子命令的参数
type publishFlags struct {
	title          string
	cover          string
	submit         bool
	noSubmit       bool
	profile        string
	retryAttempts  string
	selectors      string
	dryRun         bool
	clearStaleLock bool
	jsonOutput     bool
}

func (a *app) platformCommand(p platform.Platform) *cobra.Command {
	var f publishFlags
	cmd := &cobra.Command{
		Use:   p.Tag() + " <content-path>",
		Short: fmt.Sprintf("Save a draft (or publish) on %s", p.Name()),
		Long: fmt.Sprintf("Open %s in the persistent %s profile, fill title and body, attach images, "+
			"then save a draft. Pass --submit to publish instead.", p.ComposeURL(), p.Tag()),
		Args: cobra.MaximumNArgs(1),
		Example: fmt.Sprintf(`  publisher %[1]s article.md --title "Hello"
  publisher %[1]s post.html --cover cover.png --submit
  publisher %[1]s article.md --dry-run`, p.Tag()),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runPublish(cmd, p, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "Title, overrides the one found in the content")
	fl.StringVar(&f.cover, "cover", "", "Cover image path")
	fl.BoolVar(&f.submit, "submit", false, "Publish immediately")
	fl.BoolVar(&f.noSubmit, "no-submit", false, "Only save a draft (default)")
	fl.StringVar(&f.profile, "profile", "", "Browser profile directory")
	fl.StringVar(&f.retryAttempts, "retry-attempts", "", "Attempts for navigation and readiness checks (>=1, default 3)")
	fl.StringVar(&f.selectors, "selectors", "", "YAML file overriding the built-in selector table")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Print the plan without starting a browser")
	fl.BoolVar(&f.clearStaleLock, "clear-stale-lock", false, "Remove browser lock files left by a crashed run")
	fl.BoolVar(&f.jsonOutput, "json", false, "Print the result as JSON")
	fl.SortFlags = false
	cmd.MarkFlagsMutuallyExclusive("submit", "no-submit")

	cmd.AddCommand(a.loginCommand(p))
	return cmd
}

func (a *app) runPublish(cmd *cobra.Command, p platform.Platform, contentPath string, f publishFlags) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	attempts := cfg.Publish.RetryAttempts
	if cmd.Flags().Changed("retry-attempts") {
		attempts = config.ParseRetryAttempts(f.retryAttempts)
	}
	store, err := session.NewStore(cfg.ProfileRoot)
	if err != nil {
		return err
	}
	profile, err := store.Resolve(f.profile, p.Tag())
	if err != nil {
		return err
	}

	opts := config.NewPublishOptions(config.PublishOptions{
		ContentPath:    contentPath,
		Title:          f.title,
		CoverImagePath: f.cover,
		Submit:         f.submit && !f.noSubmit,
		ProfileDir:     profile,
		RetryAttempts:  attempts,
		Verbose:        a.flags.verbose,
	})

	if f.dryRun {
		doc, err := article.Load(contentPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "platform: %s\ncompose: %s\n", p.Tag(), p.ComposeURL())
		fmt.Fprint(cmd.OutOrStdout(), publish.RenderPlan(opts, doc))
		return nil
	}

	orch, err := a.orchestrator(p, cfg, f.selectors, f.clearStaleLock)
	if err != nil {
		return err
	}
	orch.Out = cmd.ErrOrStderr()

	logutil.Infof("[%s] 开始%s: %s", p.Name(), modeLabel(opts.Submit), contentPath)
	res := orch.Run(cmd.Context(), opts)

	if f.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if !res.OK() {
		return resultError{res: res}
	}
	if !f.jsonOutput {
		if res.URL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Mode, res.URL)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", res.Mode)
		}
	}
	return nil
}

func (a *app) loginCommand(p platform.Platform) *cobra.Command {
	var (
		profile        string
		clearStaleLock bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: fmt.Sprintf("Open %s and wait for a manual login", p.Name()),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := session.NewStore(cfg.ProfileRoot)
			if err != nil {
				return err
			}
			dir, err := store.Resolve(profile, p.Tag())
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(p, cfg, "", clearStaleLock)
			if err != nil {
				return err
			}
			orch.Out = cmd.ErrOrStderr()
			if err := orch.Login(cmd.Context(), dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile: %s\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Browser profile directory")
	cmd.Flags().BoolVar(&clearStaleLock, "clear-stale-lock", false, "Remove browser lock files left by a crashed run")
	return cmd
}

func (a *app) orchestrator(p platform.Platform, cfg *config.Config, selectorsPath string, clearStale bool) (*publish.Orchestrator, error) {
	orch := publish.New(p, cfg)
	if a.launch != nil {
		orch.Launch = a.launch
	}
	orch.ClearStaleLock = clearStale
	if selectorsPath != "" {
		t, err := selector.LoadFile(selectorsPath)
		if err != nil {
			return nil, err
		}
		orch.Selectors = t
		logutil.Infof("[%s] 使用选择器覆盖文件 %s (version %d)", p.Name(), selectorsPath, t.Version)
	}
	return orch, nil
}

func modeLabel(submit bool) string {
	if submit {
		return "发布"
	}
	return "保存草稿"
}

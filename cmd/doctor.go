package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/session"
)

func (a *app) doctorCommand() *cobra.Command {
	var skipPlaywright bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the browser, debug port, profiles and Playwright installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cfg.Path != "" {
				fmt.Fprintf(out, "config: %s\n", cfg.Path)
			} else {
				fmt.Fprintln(out, "config: (defaults)")
			}
			fmt.Fprintf(out, "driver: %s\n", cfg.Browser.Driver)
			reportBrowser(out, cfg.Browser.Executable)

			if port, err := browser.AllocatePort(); err != nil {
				fmt.Fprintf(out, "debug port: unavailable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "debug port: %d free\n", port)
			}

			store, err := session.NewStore(cfg.ProfileRoot)
			if err != nil {
				return err
			}
			for _, p := range a.platforms.List() {
				dir := store.DefaultProfileDir(p.Tag())
				state := "new"
				if host, pid, ok := session.ReadSingletonLock(dir); ok {
					state = fmt.Sprintf("locked by pid %d@%s", pid, host)
				}
				fmt.Fprintf(out, "profile %s: %s (%s)\n", p.Tag(), dir, state)
			}

			if skipPlaywright {
				fmt.Fprintln(out, "playwright: skipped")
				return nil
			}
			fmt.Fprintln(out, a.checkPlaywright().String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPlaywright, "skip-playwright", false, "Do not start the Playwright driver")
	return cmd
}

// reportBrowser 先看常见安装位置，再扩大到完整列表
func reportBrowser(out io.Writer, explicit string) {
	if explicit != "" {
		path, err := browser.LocateBrowser(explicit, browser.TierBasic)
		if err != nil {
			fmt.Fprintf(out, "browser: %v\n", err)
			return
		}
		fmt.Fprintf(out, "browser: %s (configured)\n", path)
		return
	}
	if path, ok := browser.FindBrowser(browser.BasicCandidates()); ok {
		fmt.Fprintf(out, "browser: %s (basic)\n", path)
		return
	}
	if path, ok := browser.FindBrowser(browser.FullCandidates()); ok {
		fmt.Fprintf(out, "browser: %s (full)\n", path)
		return
	}
	fmt.Fprintf(out, "browser: not found (set %s)\n", browser.ChromePathEnv)
}

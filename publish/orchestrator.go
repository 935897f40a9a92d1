// Package publish 驱动一次发布：启动浏览器、登录检查、填写标题正文、上传图片、保存草稿或发布。
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/auto-blog/publisher/article"
	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/common"
	"github.com/auto-blog/publisher/config"
	"github.com/auto-blog/publisher/diagnostics"
	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/login"
	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/retry"
	"github.com/auto-blog/publisher/selector"
	"github.com/auto-blog/publisher/session"
)

// Orchestrator 单个平台的发布流程。一次 Run 只驱动一个浏览器会话，阶段严格按顺序执行。
type Orchestrator struct {
	Platform platform.Platform
	Config   *config.Config
	// Selectors 覆盖平台内置表的字段，可以为 nil
	Selectors *selector.Table
	Launch    SessionFactory
	// ClearStaleLock 启动前清理失效的浏览器锁
	ClearStaleLock bool
	// Sleep 替换重试和注入时的等待
	Sleep func(ctx context.Context, d time.Duration) error
	// LoginPoll 登录等待的轮询间隔
	LoginPoll time.Duration
	// Out LOGIN REQUIRED 提示输出位置
	Out io.Writer
	// OnState 每次进入新阶段时调用
	OnState func(State)

	state State
}

// New 使用默认会话工厂
func New(p platform.Platform, cfg *config.Config) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Orchestrator{
		Platform: p,
		Config:   cfg,
		Launch:   NewSessionFactory(cfg.Browser),
	}
}

// State 当前阶段
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) enter(s State) {
	o.state = s
	logutil.Debugf("[%s] -> %s", o.Platform.Name(), s)
	if o.OnState != nil {
		o.OnState(s)
	}
}

// Table 合并覆盖后的选择器表
func (o *Orchestrator) Table() *selector.Table {
	return o.Platform.Selectors().Merge(o.Selectors)
}

// run 一次运行里各阶段共享的对象
type run struct {
	opts     config.PublishOptions
	doc      *article.Article
	title    string
	images   []article.ContentImage
	table    *selector.Table
	resolver selector.Resolver
	policy   retry.Policy
	lease    *session.Lease
	sess     browser.Session
	page     browser.Page
	editor   string
}

// Run 执行完整流程。失败时先保存诊断信息再关闭会话，返回的 Result 要么是完整的成功结果，要么是完整的失败结果。
func (o *Orchestrator) Run(ctx context.Context, opts config.PublishOptions) Result {
	opts = config.NewPublishOptions(opts)
	o.state = StateInit
	reporter := diagnostics.NewReporter(o.Config.Publish.DiagnosticsDir, o.Platform.Tag())

	r := &run{opts: opts}
	defer o.closeSession(r)

	url, verified, err := o.run(ctx, r)
	if err != nil {
		stage := o.state
		o.enter(StateFailed)
		b := reporter.CaptureFailure(ctx, r.page, err, stage.String())
		return failed(o.Platform.Tag(), opts.Mode(), err, b)
	}
	o.enter(StateDone)
	return succeeded(o.Platform.Tag(), opts.Mode(), url, verified)
}

// closeSession 先关浏览器再释放 profile
func (o *Orchestrator) closeSession(r *run) {
	if r.sess != nil {
		if err := r.sess.Close(); err != nil {
			logutil.Warnf("[%s] 关闭浏览器失败: %v", o.Platform.Name(), err)
		}
		r.sess = nil
	}
	if err := r.lease.Release(); err != nil {
		logutil.Warnf("释放 profile 占用失败: %v", err)
	}
	r.lease = nil
}

func (o *Orchestrator) run(ctx context.Context, r *run) (string, bool, error) {
	if err := o.prepare(r); err != nil {
		return "", false, err
	}

	lease, err := session.Acquire(r.opts.ProfileDir, o.ClearStaleLock)
	if err != nil {
		return "", false, err
	}
	r.lease = lease

	if err := o.open(ctx, r); err != nil {
		return "", false, err
	}
	if err := o.fill(ctx, r); err != nil {
		return "", false, err
	}
	return o.submit(ctx, r)
}

// prepare 在启动浏览器之前完成所有本地检查
func (o *Orchestrator) prepare(r *run) error {
	if r.opts.ProfileDir == "" {
		return errors.New("profile directory is required")
	}
	doc, err := article.Load(r.opts.ContentPath)
	if err != nil {
		return err
	}
	r.doc = doc
	r.title, r.images = effectiveInput(r.opts, doc)
	if err := common.CheckFiles(r.opts.CoverImagePath, r.images); err != nil {
		return err
	}

	r.table = o.Table()
	if err := r.table.Validate(o.Platform.Required()...); err != nil {
		return err
	}
	r.resolver = selector.Resolver{Timeout: o.Config.Publish.SelectorTimeout}
	r.policy = o.policy(r.opts.RetryAttempts)
	return nil
}

// policy 只重试就绪类错误
func (o *Orchestrator) policy(attempts int) retry.Policy {
	return retry.Policy{
		Attempts:  attempts,
		BaseDelay: o.Config.Publish.BackoffBase,
		Retryable: browser.IsRetryable,
		Sleep:     o.Sleep,
		OnRetry: func(attempt int, err error, d time.Duration) {
			logutil.Warnf("[%s] %s 第 %d 次失败，%s 后重试: %v", o.Platform.Name(), o.state, attempt, d, err)
		},
	}
}

// open 启动浏览器、打开编辑页并通过登录检查
func (o *Orchestrator) open(ctx context.Context, r *run) error {
	sess, err := o.Launch(ctx, browser.LaunchOptions{
		ProfileDir:       r.opts.ProfileDir,
		DebugPortTimeout: o.Config.Browser.DebugPortTimeout,
	})
	if err != nil {
		return err
	}
	r.sess = sess
	r.page = sess.Page()
	o.enter(StateBrowserLaunched)

	compose := o.Platform.ComposeURL()
	logutil.Infof("[%s] 打开编辑页面: %s", o.Platform.Name(), compose)
	if err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.page.Navigate(ctx, compose, o.Config.Publish.NavigationTimeout)
	}); err != nil {
		return err
	}
	o.enter(StateNavigated)

	gate := o.gate(r.sess, compose)
	loggedIn, err := gate.IsLoggedIn(ctx, r.page)
	if err != nil {
		return err
	}
	if !loggedIn {
		o.enter(StateLoginRequired)
		if err := gate.WaitForLogin(ctx, r.page, o.Config.Publish.LoginTimeout); err != nil {
			return err
		}
		o.enter(StateAuthenticated)
	}
	return nil
}

func (o *Orchestrator) gate(sess browser.Session, returnURL string) *login.Gate {
	return &login.Gate{
		Platform:          o.Platform.Name(),
		Patterns:          o.Platform.LoginPatterns(),
		ReturnURL:         returnURL,
		NavigationTimeout: o.Config.Publish.NavigationTimeout,
		SaveSession:       sess.SaveState,
		PollInterval:      o.LoginPoll,
		Out:               o.Out,
	}
}

// fill 等待编辑器，依次填写标题、正文和图片。每一步只在就绪类错误上重试。
func (o *Orchestrator) fill(ctx context.Context, r *run) error {
	env := platform.Env{Page: r.page, Table: r.table, Resolver: r.resolver}
	if err := o.Platform.BeforeEditor(ctx, env); err != nil {
		return err
	}

	editor, err := o.resolveReady(ctx, r, selector.EditorBody)
	if err != nil {
		return err
	}
	r.editor = editor
	o.enter(StateEditorReady)

	injector := common.NewInjector(o.Platform.Name())
	injector.Sleep = o.Sleep

	if r.title != "" {
		sel, err := o.resolveReady(ctx, r, selector.TitleInput)
		if err != nil {
			return err
		}
		if err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
			return injector.FillTitle(ctx, r.page, sel, r.title)
		}); err != nil {
			return err
		}
	}
	o.enter(StateTitleFilled)

	content := common.Content{HTML: r.doc.HTML, Text: r.doc.Text}
	if err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return injector.InjectRichContent(ctx, r.page, r.editor, content)
	}); err != nil {
		return err
	}
	if err := o.Platform.AfterContent(ctx, env); err != nil {
		return err
	}
	o.enter(StateContentInjected)

	uploader := &common.ImageUploader{
		Platform:       o.Platform.Name(),
		Table:          r.table,
		Resolver:       r.resolver,
		EditorSelector: r.editor,
	}
	if err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return uploader.AttachCover(ctx, r.page, r.opts.CoverImagePath)
	}); err != nil {
		return err
	}
	if err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return uploader.AttachInlineImages(ctx, r.page, r.images)
	}); err != nil {
		return err
	}
	o.enter(StateImagesAttached)
	return nil
}

// resolveReady 在重试策略下解析字段。一轮候选全部未命中按未就绪处理，
// 次数用尽后仍返回带完整尝试列表的 SelectorExhaustedError。
func (o *Orchestrator) resolveReady(ctx context.Context, r *run, field selector.Field) (string, error) {
	sel, err := retry.Value(ctx, r.policy, func(ctx context.Context) (string, error) {
		sel, err := r.resolver.Resolve(ctx, r.page, r.table, field)
		var ex browser.SelectorExhaustedError
		if errors.As(err, &ex) {
			return "", browser.NotReadyError{Selector: string(field), Err: ex}
		}
		return sel, err
	})
	if err != nil {
		var ex browser.SelectorExhaustedError
		if errors.As(err, &ex) {
			return "", ex
		}
		return "", err
	}
	return sel, nil
}

// submitField 发布用 publishButton；草稿优先 draftButton，没有时用预览按钮触发保存
func (o *Orchestrator) submitField(r *run) selector.Field {
	if r.opts.Submit {
		return selector.PublishButton
	}
	if r.table.Has(selector.DraftButton) {
		return selector.DraftButton
	}
	return selector.PreviewButton
}

// submit 查找按钮可以重试，点击本身只做一次。
// 点击失败时按一次平台快捷键，仍失败返回 SubmitClickFailure。
func (o *Orchestrator) submit(ctx context.Context, r *run) (string, bool, error) {
	field := o.submitField(r)
	action := "save draft"
	if r.opts.Submit {
		action = "publish"
	}
	shortcut := o.Platform.Shortcut(r.opts.Submit)

	var target string
	if r.table.Has(field) {
		sel, err := o.resolveReady(ctx, r, field)
		if err != nil && shortcut == "" {
			return "", false, err
		}
		target = sel
	}
	o.enter(StateSubmitting)

	var clickErr error
	if target != "" {
		logutil.Infof("[%s] 点击 %s: %s", o.Platform.Name(), field, target)
		clickErr = r.page.Click(ctx, target)
	} else {
		clickErr = fmt.Errorf("no %s control found", field)
	}
	if clickErr != nil {
		if shortcut == "" {
			return "", false, browser.SubmitClickFailure{Action: action, Selector: target, Err: clickErr}
		}
		logutil.Warnf("[%s] 点击失败，改用快捷键 %s: %v", o.Platform.Name(), shortcut, clickErr)
		if err := o.pressShortcut(ctx, r, shortcut); err != nil {
			return "", false, browser.SubmitClickFailure{Action: action, Selector: target, Err: errors.Join(clickErr, err)}
		}
	}

	if !r.opts.Submit {
		u, err := r.page.URL(ctx)
		if err != nil {
			logutil.Debugf("[%s] 读取草稿页地址失败: %v", o.Platform.Name(), err)
		}
		o.saveState(r)
		logutil.Infof("[%s] ✅ 草稿已保存", o.Platform.Name())
		return u, false, nil
	}

	u, verified := o.verifyPublished(ctx, r)
	o.saveState(r)
	if verified {
		logutil.Infof("[%s] 🎉 文章已发布: %s", o.Platform.Name(), u)
	} else {
		logutil.Warnf("[%s] 已点击发布，但没有确认到文章地址 (当前 %s)。请先到平台后台确认，不要直接重试以免重复发布", o.Platform.Name(), u)
	}
	return u, verified, nil
}

func (o *Orchestrator) pressShortcut(ctx context.Context, r *run, key string) error {
	if r.editor != "" {
		if err := r.page.Focus(ctx, r.editor); err != nil {
			return err
		}
	}
	return r.page.Press(ctx, key)
}

// verifyPublished 在导航超时内等待地址变为文章地址
func (o *Orchestrator) verifyPublished(ctx context.Context, r *run) (string, bool) {
	pattern := o.Platform.PublishedURL()
	current, err := r.page.URL(ctx)
	if err != nil {
		logutil.Debugf("[%s] 读取发布后地址失败: %v", o.Platform.Name(), err)
	}
	if pattern == nil {
		return current, false
	}

	ctx, cancel := context.WithTimeout(ctx, o.Config.Publish.NavigationTimeout)
	defer cancel()
	for {
		if pattern.MatchString(current) {
			return current, true
		}
		select {
		case <-ctx.Done():
			return current, false
		case <-time.After(verifyPoll):
		}
		if u, err := r.page.URL(ctx); err == nil {
			current = u
		}
	}
}

const verifyPoll = 500 * time.Millisecond

func (o *Orchestrator) saveState(r *run) {
	if err := r.sess.SaveState(); err != nil {
		logutil.Warnf("[%s] 保存会话失败: %v", o.Platform.Name(), err)
	}
}

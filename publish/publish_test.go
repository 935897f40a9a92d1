package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auto-blog/publisher/article"
	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/browser/browsertest"
	"github.com/auto-blog/publisher/config"
	"github.com/auto-blog/publisher/diagnostics"
	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
	"github.com/auto-blog/publisher/session"
)

const (
	composeURL  = "https://example.com/write"
	titleSel    = "textarea.title"
	editorSel   = "div.editor"
	draftSel    = "button.draft"
	publishSel  = "button.publish"
	fileSel     = "input[type=file]"
	publishedAt = "https://example.com/p/42"
)

func demoPlatform() *platform.Descriptor {
	return &platform.Descriptor{
		DisplayName: "Demo",
		ID:          "demo",
		Compose:     composeURL,
		Login:       []string{"/login"},
		Table: selector.MustParse([]byte(`
version: 1
platform: demo
fields:
  titleInput: ["textarea.title"]
  editorBody: ["div.stale", "div.editor"]
  fileInput: ["input[type=file]"]
  draftButton: ["button.draft"]
  publishButton: ["button.publish"]
`)),
		DraftKey:  "ControlOrMeta+S",
		Published: regexp.MustCompile(`^https://example\.com/p/\d+$`),
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

type harness struct {
	dir      string
	page     *browsertest.FakePage
	sess     *browsertest.FakeSession
	orch     *Orchestrator
	launches int
	states   []State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dir:  t.TempDir(),
		page: browsertest.NewFakePage("about:blank").Show(titleSel, editorSel, draftSel, publishSel).Attach(fileSel),
	}

	cfg := config.Default()
	cfg.Publish.DiagnosticsDir = filepath.Join(h.dir, "diag")
	cfg.Publish.LoginTimeout = 30 * time.Millisecond
	cfg.Publish.SelectorTimeout = 20 * time.Millisecond
	cfg.Publish.NavigationTimeout = 50 * time.Millisecond
	cfg.Publish.BackoffBase = time.Millisecond

	h.orch = &Orchestrator{
		Platform: demoPlatform(),
		Config:   cfg,
		Launch: func(ctx context.Context, opts browser.LaunchOptions) (browser.Session, error) {
			h.launches++
			h.sess = &browsertest.FakeSession{FakePage: h.page}
			return h.sess, nil
		},
		Sleep:     noSleep,
		LoginPoll: 5 * time.Millisecond,
		Out:       io.Discard,
		OnState:   func(s State) { h.states = append(h.states, s) },
	}
	return h
}

func (h *harness) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (h *harness) options(t *testing.T, submit bool) config.PublishOptions {
	t.Helper()
	return config.PublishOptions{
		ContentPath:   h.write(t, "article.md", "# Hello\n\nSome body text.\n"),
		Title:         "Hello",
		Submit:        submit,
		ProfileDir:    filepath.Join(h.dir, "profile"),
		RetryAttempts: 3,
	}
}

func (h *harness) pressed(key string) bool {
	for _, c := range h.page.Calls() {
		if c.Op == "press" && c.Arg == key {
			return true
		}
	}
	return false
}

func TestDraftSuccess(t *testing.T) {
	h := newHarness(t)
	opts := h.options(t, false)

	res := h.orch.Run(context.Background(), opts)
	require.True(t, res.OK(), res.Error)

	assert.Equal(t, "draft", res.Mode)
	assert.Equal(t, composeURL, res.URL)
	assert.Equal(t, "Hello", h.page.Text(titleSel))
	assert.Contains(t, h.page.Text(editorSel), "Some body text.")
	assert.Equal(t, 1, h.page.Count("click", draftSel))
	assert.Zero(t, h.page.Count("click", publishSel))

	assert.True(t, h.sess.Closed)
	assert.Positive(t, h.sess.Saved)
	assert.Equal(t, StateDone, h.orch.State())
	assert.NoFileExists(t, filepath.Join(opts.ProfileDir, session.LeaseFile))
	assert.Equal(t, []State{
		StateBrowserLaunched, StateNavigated, StateEditorReady, StateTitleFilled,
		StateContentInjected, StateImagesAttached, StateSubmitting, StateDone,
	}, h.states)
}

func TestLoginTimeout(t *testing.T) {
	h := newHarness(t)
	h.page.Redirects[composeURL] = "https://example.com/login?next=%2Fwrite"

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.False(t, res.OK())

	var lerr browser.LoginRequiredTimeoutError
	require.ErrorAs(t, res.Err, &lerr)
	assert.Equal(t, "LoginRequiredTimeoutError", res.ErrorClass)
	assert.Equal(t, StateLoginRequired.String(), res.Stage)
	assert.True(t, h.sess.Closed)
	assert.Zero(t, h.page.Count("type"))
}

func TestLoginCompletesAndReturnsToEditor(t *testing.T) {
	h := newHarness(t)
	h.orch.Config.Publish.LoginTimeout = time.Second
	h.page.URLQueue = []string{"https://example.com/login", "https://example.com/login", "https://example.com/home"}

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.True(t, res.OK(), res.Error)
	assert.Contains(t, h.states, StateLoginRequired)
	assert.Contains(t, h.states, StateAuthenticated)
	// 登录后跳回编辑页
	assert.Equal(t, 2, h.page.Count("navigate"))
}

func TestSingleAttemptSurfacesNavigationTimeout(t *testing.T) {
	h := newHarness(t)
	h.page.NavigateErrs = []error{browser.NavigationTimeoutError{URL: composeURL, Timeout: time.Second}, nil}
	opts := h.options(t, false)
	opts.RetryAttempts = 1

	res := h.orch.Run(context.Background(), opts)
	require.False(t, res.OK())
	assert.Equal(t, "NavigationTimeoutError", res.ErrorClass)
	assert.Equal(t, 1, h.page.Count("navigate"))
}

func TestNavigationRetriedWithinAttempts(t *testing.T) {
	h := newHarness(t)
	h.page.NavigateErrs = []error{browser.NavigationTimeoutError{URL: composeURL}, nil}
	opts := h.options(t, false)
	opts.RetryAttempts = 2

	res := h.orch.Run(context.Background(), opts)
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, 2, h.page.Count("navigate"))
}

func TestStaleEditorSelectorsCaptureScreenshot(t *testing.T) {
	h := newHarness(t)
	h.page.Hide(editorSel)

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.False(t, res.OK())

	var ex browser.SelectorExhaustedError
	require.ErrorAs(t, res.Err, &ex)
	assert.Equal(t, []string{"div.stale", editorSel}, ex.Tried)
	assert.Equal(t, 3, h.page.Count("wait", editorSel))
	assert.Equal(t, "SelectorExhaustedError", res.ErrorClass)
	assert.Equal(t, filepath.Join(h.dir, "diag", diagnostics.ScreenshotName), res.ScreenshotPath)
	assert.FileExists(t, res.ScreenshotPath)
	assert.Zero(t, h.page.Count("type"))
	assert.True(t, h.sess.Closed)
}

func TestEditorResolvedOnRetry(t *testing.T) {
	h := newHarness(t)
	h.page.Hide(editorSel).ShowAfter(editorSel, 1)

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, 2, h.page.Count("wait", editorSel))
	assert.Contains(t, h.page.Text(editorSel), "Some body text.")
}

func TestSubmitControlResolvedOnRetry(t *testing.T) {
	h := newHarness(t)
	h.page.Hide(draftSel).ShowAfter(draftSel, 2)

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, 3, h.page.Count("wait", draftSel))
	assert.Equal(t, 1, h.page.Count("click", draftSel))
	assert.False(t, h.pressed("ControlOrMeta+S"))
}

func TestDraftIsRepeatable(t *testing.T) {
	h := newHarness(t)
	opts := h.options(t, false)

	first := h.orch.Run(context.Background(), opts)
	second := h.orch.Run(context.Background(), opts)
	require.True(t, first.OK(), first.Error)
	require.True(t, second.OK(), second.Error)
	assert.Equal(t, 2, h.launches)
	assert.Equal(t, 2, h.page.Count("click", draftSel))
	assert.Equal(t, "Hello", h.page.Text(titleSel))
}

func TestPublishVerifiesArticleURL(t *testing.T) {
	h := newHarness(t)
	h.page.OnClick = func(sel string) {
		if sel == publishSel {
			h.page.SetURL(publishedAt)
		}
	}

	res := h.orch.Run(context.Background(), h.options(t, true))
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "submit", res.Mode)
	assert.Equal(t, publishedAt, res.URL)
	assert.True(t, res.Verified)
	assert.Equal(t, 1, h.page.Count("click", publishSel))
}

func TestPublishUnverifiedStillSucceeds(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Run(context.Background(), h.options(t, true))
	require.True(t, res.OK(), res.Error)
	assert.False(t, res.Verified)
	assert.Equal(t, 1, h.page.Count("click", publishSel))
}

func TestDraftClickFallsBackToShortcut(t *testing.T) {
	h := newHarness(t)
	h.page.ClickErrs[draftSel] = errors.New("element intercepted")

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.True(t, res.OK(), res.Error)
	assert.True(t, h.pressed("ControlOrMeta+S"))
	assert.Equal(t, 1, h.page.Count("click", draftSel))
}

func TestPublishClickFailureIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.page.ClickErrs[publishSel] = errors.New("element intercepted")

	res := h.orch.Run(context.Background(), h.options(t, true))
	require.False(t, res.OK())
	assert.Equal(t, "SubmitClickFailure", res.ErrorClass)
	assert.Equal(t, StateSubmitting.String(), res.Stage)
	assert.Equal(t, 1, h.page.Count("click", publishSel))
}

func TestContentInjectionFailure(t *testing.T) {
	h := newHarness(t)
	h.page.IgnorePaste = true
	h.page.IgnoreTyping = true
	opts := h.options(t, false)
	opts.Title = ""
	h.write(t, "article.md", "Body only.\n")

	res := h.orch.Run(context.Background(), opts)
	require.False(t, res.OK())
	assert.Equal(t, "ContentInjectionError", res.ErrorClass)
	assert.Zero(t, h.page.Count("click", draftSel))
}

func TestInlineImagesAttachedInOrder(t *testing.T) {
	h := newHarness(t)
	a := h.write(t, "a.png", "png")
	b := h.write(t, "b.png", "png")
	opts := h.options(t, false)
	opts.ContentPath = h.write(t, "post.md", "# Hello\n\nintro\n\n![a](a.png)\n\nmiddle\n\n![b](b.png)\n\nend\n")

	res := h.orch.Run(context.Background(), opts)
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, []string{a, b}, h.page.Files[fileSel])
	assert.NotContains(t, h.page.Text(editorSel), "[[IMAGE_")
}

func TestInlineImageRetriedAfterUploadFailure(t *testing.T) {
	h := newHarness(t)
	const imageBtn = "button.image"
	a := h.write(t, "a.png", "png")
	opts := h.options(t, false)
	opts.ContentPath = h.write(t, "post.md", "# Hello\n\nintro\n\n![a](a.png)\n\nend\n")

	h.orch.Selectors = selector.MustParse([]byte("version: 1\nfields:\n  imageButton: [\"button.image\"]\n"))
	h.page.Show(imageBtn)
	h.page.ClickErrs[imageBtn] = browser.NotReadyError{Selector: imageBtn}
	h.orch.Sleep = func(context.Context, time.Duration) error {
		if h.page.Count("click", imageBtn) > 0 {
			delete(h.page.ClickErrs, imageBtn)
		}
		return nil
	}

	res := h.orch.Run(context.Background(), opts)
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, []string{a}, h.page.Files[fileSel])
	assert.Equal(t, 2, h.page.Count("click", imageBtn))
	assert.NotContains(t, h.page.Text(editorSel), "[[IMAGE_")
}

func TestMissingImageFailsBeforeLaunch(t *testing.T) {
	h := newHarness(t)
	opts := h.options(t, false)
	opts.CoverImagePath = filepath.Join(h.dir, "missing.png")

	res := h.orch.Run(context.Background(), opts)
	require.False(t, res.OK())
	assert.Zero(t, h.launches)
	assert.Empty(t, res.ScreenshotPath)
}

func TestSelectorOverride(t *testing.T) {
	h := newHarness(t)
	h.page.Hide(editorSel).Show("div.v2")
	h.orch.Selectors = selector.MustParse([]byte("version: 2\nfields:\n  editorBody: [\"div.v2\"]\n"))

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.True(t, res.OK(), res.Error)
	assert.Contains(t, h.page.Text("div.v2"), "Some body text.")
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.orch.Config.Publish.LoginTimeout = time.Second
	h.page.URLQueue = []string{"https://example.com/login", "https://example.com/login", composeURL}

	require.NoError(t, h.orch.Login(context.Background(), filepath.Join(h.dir, "profile")))
	assert.True(t, h.sess.Closed)
	assert.Positive(t, h.sess.Saved)
}

func TestRenderPlanCompleteness(t *testing.T) {
	images := []article.ContentImage{
		{Placeholder: "[[IMAGE_2]]", LocalPath: "/img/b.png", BlockIndex: 4},
		{Placeholder: "[[IMAGE_1]]", LocalPath: "/img/a.png", BlockIndex: 1},
	}
	for _, submit := range []bool{true, false} {
		opts := config.NewPublishOptions(config.PublishOptions{
			ContentPath:    "article.md",
			Title:          `Hello: "world"`,
			CoverImagePath: "/img/cover.png",
			ContentImages:  images,
			Submit:         submit,
			RetryAttempts:  3,
		})
		plan := RenderPlan(opts, &article.Article{Title: "ignored", Text: "body"})

		assert.Contains(t, plan, `Hello: "world"`)
		assert.NotContains(t, plan, "ignored")
		assert.Contains(t, plan, "/img/cover.png")
		assert.Contains(t, plan, "[[IMAGE_1]]")
		assert.Contains(t, plan, "[[IMAGE_2]]")
		assert.Less(t, strings.Index(plan, "[[IMAGE_1]]"), strings.Index(plan, "[[IMAGE_2]]"))
		if submit {
			assert.Contains(t, plan, "mode: submit")
		} else {
			assert.Contains(t, plan, "mode: draft")
		}
	}
}

func TestRenderPlanUsesDocumentDefaults(t *testing.T) {
	doc := &article.Article{
		Title:  "From doc",
		Text:   "body",
		Images: []article.ContentImage{{Placeholder: "[[IMAGE_1]]", LocalPath: "/x.png"}},
	}
	plan := RenderPlan(config.NewPublishOptions(config.PublishOptions{ContentPath: "a.html"}), doc)
	assert.Contains(t, plan, "title: From doc")
	assert.Contains(t, plan, "[[IMAGE_1]]")
	assert.Contains(t, plan, "retry-attempts: 1")
	assert.Equal(t, plan, RenderPlan(config.NewPublishOptions(config.PublishOptions{ContentPath: "a.html"}), doc))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "LoginRequired", StateLoginRequired.String())
	assert.Equal(t, "Unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSubmitting.Terminal())
}

type panickyPlatform struct {
	*platform.Descriptor
}

func (panickyPlatform) BeforeEditor(context.Context, platform.Env) error {
	panic("hook exploded")
}

func TestSessionClosedWhenHookPanics(t *testing.T) {
	h := newHarness(t)
	h.orch.Platform = panickyPlatform{Descriptor: demoPlatform()}
	opts := h.options(t, false)

	assert.Panics(t, func() { h.orch.Run(context.Background(), opts) })
	require.NotNil(t, h.sess)
	assert.True(t, h.sess.Closed)
	assert.NoFileExists(t, filepath.Join(opts.ProfileDir, session.LeaseFile))
}

func TestDraftURLErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logutil.SetOutput(&buf)
	logutil.SetVerbose(true)
	t.Cleanup(func() {
		logutil.SetOutput(os.Stderr)
		logutil.SetVerbose(false)
	})

	h := newHarness(t)
	h.page.OnClick = func(sel string) {
		if sel == draftSel {
			h.page.URLErr = errors.New("target closed")
		}
	}

	res := h.orch.Run(context.Background(), h.options(t, false))
	require.True(t, res.OK(), res.Error)
	assert.Empty(t, res.URL)
	assert.Contains(t, buf.String(), "target closed")
}

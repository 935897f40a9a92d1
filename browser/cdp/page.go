package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"

	"github.com/auto-blog/publisher/browser"
)

const pollInterval = 150 * time.Millisecond

var _ browser.Page = (*Page)(nil)

// remoteObject Runtime.RemoteObject 中用到的字段
type remoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
	Description string          `json:"description,omitempty"`
}

type evaluateResult struct {
	Result           remoteObject `json:"result"`
	ExceptionDetails *struct {
		Text      string        `json:"text"`
		Exception *remoteObject `json:"exception,omitempty"`
	} `json:"exceptionDetails,omitempty"`
}

type navigateResult struct {
	FrameID   string `json:"frameId"`
	LoaderID  string `json:"loaderId,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

type rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type layoutMetrics struct {
	CSSContentSize *rect `json:"cssContentSize,omitempty"`
	ContentSize    *rect `json:"contentSize,omitempty"`
}

// Page 通过一条 CDP 连接控制单个标签页
type Page struct {
	client *Client
}

// NewPage 在已连接的页面目标上启用需要的域
func NewPage(ctx context.Context, client *Client) (*Page, error) {
	p := &Page{client: client}
	if err := client.Send(ctx, page.CommandEnable, nil, nil); err != nil {
		return nil, err
	}
	if err := client.Send(ctx, runtime.CommandEnable, nil, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Navigate 跳转并等待 load 事件
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	loaded := make(chan struct{}, 1)
	off := p.client.On(string(cdproto.EventPageLoadEventFired), func(json.RawMessage) {
		select {
		case loaded <- struct{}{}:
		default:
		}
	})
	defer off()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res navigateResult
	if err := p.client.Send(ctx, page.CommandNavigate, &page.NavigateParams{URL: url}, &res); err != nil {
		return browser.NavigationTimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	if res.ErrorText != "" {
		return browser.NavigationTimeoutError{URL: url, Timeout: timeout, Err: errors.New(res.ErrorText)}
	}
	// 同文档跳转没有 loaderId，也不会有 load 事件
	if res.LoaderID == "" {
		return nil
	}

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return browser.NavigationTimeoutError{URL: url, Timeout: timeout, Err: ctx.Err()}
	case <-p.client.Done():
		return browser.NavigationTimeoutError{URL: url, Timeout: timeout, Err: ErrClosed}
	}
}

// URL 当前页面地址
func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.eval(ctx, "location.href", &u); err != nil {
		return "", err
	}
	return u, nil
}

// WaitForSelector 轮询直到元素可见
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var visible bool
		err := p.call(ctx, browser.VisibleScript, map[string]any{"selector": selector}, &visible)
		if err == nil && visible {
			return nil
		}
		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return browser.NotReadyError{Selector: selector, Err: err}
		case <-ticker.C:
		}
	}
}

// Click 滚动到元素中心并发送一次真实的鼠标点击
func (p *Page) Click(ctx context.Context, selector string) error {
	var pos struct {
		OK bool    `json:"ok"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	}
	if err := p.call(ctx, browser.ScrollIntoViewScript, map[string]any{"selector": selector}, &pos); err != nil {
		return err
	}
	if !pos.OK {
		return browser.NotReadyError{Selector: selector}
	}

	steps := []*input.DispatchMouseEventParams{
		{Type: input.MouseMoved, X: pos.X, Y: pos.Y},
		{Type: input.MousePressed, X: pos.X, Y: pos.Y, Button: input.Left, Buttons: 1, ClickCount: 1},
		{Type: input.MouseReleased, X: pos.X, Y: pos.Y, Button: input.Left, ClickCount: 1},
	}
	for _, ev := range steps {
		if err := p.client.Send(ctx, input.CommandDispatchMouseEvent, ev, nil); err != nil {
			return fmt.Errorf("click %s: %w", selector, err)
		}
	}
	return nil
}

// Focus 聚焦元素
func (p *Page) Focus(ctx context.Context, selector string) error {
	var ok bool
	if err := p.call(ctx, browser.FocusScript, map[string]any{"selector": selector}, &ok); err != nil {
		return err
	}
	if !ok {
		return browser.NotReadyError{Selector: selector}
	}
	return nil
}

// Type 向当前焦点插入文字
func (p *Page) Type(ctx context.Context, text string) error {
	return p.client.Send(ctx, input.CommandInsertText, &input.InsertTextParams{Text: text}, nil)
}

// Press 发送组合键，例如 "ControlOrMeta+Enter"
func (p *Page) Press(ctx context.Context, key string) error {
	c, err := parseChord(key)
	if err != nil {
		return err
	}
	for _, ev := range c.events() {
		if err := p.client.Send(ctx, input.CommandDispatchKeyEvent, ev, nil); err != nil {
			return fmt.Errorf("press %s: %w", key, err)
		}
	}
	return nil
}

// Evaluate 执行函数并返回 JSON 解码后的结果
func (p *Page) Evaluate(ctx context.Context, fn string, arg any) (any, error) {
	var out any
	if err := p.call(ctx, fn, arg, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DispatchSyntheticEvent 在元素上派发合成事件
func (p *Page) DispatchSyntheticEvent(ctx context.Context, selector string, ev browser.SyntheticEvent) error {
	var res struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	arg := map[string]any{"selector": selector, "type": ev.Type, "data": ev.Data}
	if err := p.call(ctx, browser.DispatchEventScript, arg, &res); err != nil {
		return err
	}
	if !res.OK {
		return browser.NotReadyError{Selector: selector, Err: errors.New(res.Error)}
	}
	return nil
}

// SetInputFiles 把本地文件交给 <input type=file>
func (p *Page) SetInputFiles(ctx context.Context, selector string, files []string) error {
	abs := make([]string, 0, len(files))
	for _, f := range files {
		a, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		abs = append(abs, a)
	}

	expr, err := callExpression(browser.WithFinder(`return __find(arg.selector);`), map[string]any{"selector": selector})
	if err != nil {
		return err
	}
	var res evaluateResult
	params := &runtime.EvaluateParams{Expression: expr}
	if err := p.client.Send(ctx, runtime.CommandEvaluate, params, &res); err != nil {
		return err
	}
	if err := res.exception(); err != nil {
		return err
	}
	if res.Result.ObjectID == "" {
		return browser.NotReadyError{Selector: selector}
	}

	return p.client.Send(ctx, dom.CommandSetFileInputFiles, &dom.SetFileInputFilesParams{
		Files:    abs,
		ObjectID: runtime.RemoteObjectID(res.Result.ObjectID),
	}, nil)
}

// Screenshot 整页截图写入 PNG 文件
func (p *Page) Screenshot(ctx context.Context, path string) error {
	params := &page.CaptureScreenshotParams{Format: page.CaptureScreenshotFormatPng}

	var metrics layoutMetrics
	if err := p.client.Send(ctx, page.CommandGetLayoutMetrics, nil, &metrics); err == nil {
		size := metrics.CSSContentSize
		if size == nil {
			size = metrics.ContentSize
		}
		if size != nil && size.Width > 0 && size.Height > 0 {
			params.Clip = &page.Viewport{Width: size.Width, Height: size.Height, Scale: 1}
			params.CaptureBeyondViewport = true
		}
	}

	var shot struct {
		Data string `json:"data"`
	}
	if err := p.client.Send(ctx, page.CommandCaptureScreenshot, params, &shot); err != nil {
		return err
	}
	buf, err := base64.StdEncoding.DecodeString(shot.Data)
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (p *Page) eval(ctx context.Context, expr string, out any) error {
	var res evaluateResult
	params := &runtime.EvaluateParams{Expression: expr, ReturnByValue: true, AwaitPromise: true}
	if err := p.client.Send(ctx, runtime.CommandEvaluate, params, &res); err != nil {
		return err
	}
	if err := res.exception(); err != nil {
		return err
	}
	if out == nil || len(res.Result.Value) == 0 {
		return nil
	}
	return json.Unmarshal(res.Result.Value, out)
}

func (p *Page) call(ctx context.Context, fn string, arg any, out any) error {
	expr, err := callExpression(fn, arg)
	if err != nil {
		return err
	}
	return p.eval(ctx, expr, out)
}

func callExpression(fn string, arg any) (string, error) {
	if arg == nil {
		return "(" + fn + ")()", nil
	}
	buf, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("encode argument: %w", err)
	}
	return "(" + fn + ")(" + string(buf) + ")", nil
}

func (r evaluateResult) exception() error {
	if r.ExceptionDetails == nil {
		return nil
	}
	msg := r.ExceptionDetails.Text
	if ex := r.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
		msg = ex.Description
	}
	return fmt.Errorf("script exception: %s", msg)
}

// Package browsertest 提供内存中的 browser.Page 实现，供编排逻辑的单元测试使用。
package browsertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/auto-blog/publisher/browser"
)

// Call 一次被记录的页面操作
type Call struct {
	Op       string
	Selector string
	Arg      string
}

func (c Call) String() string {
	switch {
	case c.Selector != "" && c.Arg != "":
		return fmt.Sprintf("%s(%s, %s)", c.Op, c.Selector, c.Arg)
	case c.Selector != "":
		return fmt.Sprintf("%s(%s)", c.Op, c.Selector)
	case c.Arg != "":
		return fmt.Sprintf("%s(%s)", c.Op, c.Arg)
	}
	return c.Op
}

var _ browser.Page = (*FakePage)(nil)

// FakePage 可编排的假页面。未显式配置的行为都是成功。
type FakePage struct {
	mu sync.Mutex

	current string
	// URLQueue 每次 URL() 调用依次取出一个地址作为当前地址，取完后保持最后一个
	URLQueue []string
	// Redirects Navigate 到某地址后实际停留的地址
	Redirects map[string]string
	// NavigateErrs 每次 Navigate 依次取出一个错误，nil 表示成功
	NavigateErrs []error
	// URLErr 非空时 URL() 返回该错误
	URLErr error

	visible  map[string]bool
	attached map[string]bool
	// pending 还需要多少次 WaitForSelector 才变为可见
	pending map[string]int

	// Texts 元素当前的文字内容
	Texts map[string]string
	// IgnorePaste 为真时合成 paste 事件不会改变编辑器内容
	IgnorePaste bool
	// IgnoreTyping 为真时键入不会改变内容
	IgnoreTyping bool

	// ClickErrs 点击某个选择器时返回的错误
	ClickErrs map[string]error
	// OnClick 点击成功后的回调，可用来模拟跳转
	OnClick func(selector string)
	// OnPress 按键后的回调
	OnPress func(key string)
	// EvaluateFunc 处理未识别的脚本
	EvaluateFunc func(fn string, arg any) (any, error)

	Files     map[string][]string
	focused   string
	selection string
	calls     []Call
	ShotErr   error
	shotPath  string
}

// NewFakePage 以给定地址作为当前页面
func NewFakePage(url string) *FakePage {
	return &FakePage{
		current:   url,
		Redirects: map[string]string{},
		visible:   map[string]bool{},
		attached:  map[string]bool{},
		pending:   map[string]int{},
		Texts:     map[string]string{},
		ClickErrs: map[string]error{},
		Files:     map[string][]string{},
	}
}

// Show 让选择器立即可见
func (f *FakePage) Show(selectors ...string) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range selectors {
		f.visible[s] = true
		delete(f.pending, s)
	}
	return f
}

// ShowAfter 选择器在 n 次等待失败之后才可见
func (f *FakePage) ShowAfter(selector string, n int) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[selector] = n
	return f
}

// Attach 让选择器存在于 DOM 中但不可见，例如隐藏的文件输入框
func (f *FakePage) Attach(selectors ...string) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range selectors {
		f.attached[s] = true
	}
	return f
}

// Hide 让选择器不可见
func (f *FakePage) Hide(selectors ...string) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range selectors {
		delete(f.visible, s)
		delete(f.attached, s)
		delete(f.pending, s)
	}
	return f
}

// SetURL 直接修改当前地址
func (f *FakePage) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = url
}

// Calls 返回记录的操作
func (f *FakePage) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count 统计某种操作（可选限定选择器）的次数
func (f *FakePage) Count(op string, selector ...string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op != op {
			continue
		}
		if len(selector) > 0 && c.Selector != selector[0] {
			continue
		}
		n++
	}
	return n
}

// Text 元素当前文字
func (f *FakePage) Text(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Texts[selector]
}

// ScreenshotPath 最近一次截图的路径
func (f *FakePage) ScreenshotPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shotPath
}

func (f *FakePage) record(op, selector, arg string) {
	f.calls = append(f.calls, Call{Op: op, Selector: selector, Arg: arg})
}

func (f *FakePage) isVisible(selector string) bool {
	return f.visible[selector]
}

func (f *FakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate", "", url)

	if len(f.NavigateErrs) > 0 {
		err := f.NavigateErrs[0]
		f.NavigateErrs = f.NavigateErrs[1:]
		if err != nil {
			return err
		}
	}
	if to, ok := f.Redirects[url]; ok {
		f.current = to
	} else {
		f.current = url
	}
	return nil
}

func (f *FakePage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.URLErr != nil {
		return "", f.URLErr
	}
	if len(f.URLQueue) > 0 {
		f.current = f.URLQueue[0]
		f.URLQueue = f.URLQueue[1:]
	}
	return f.current, nil
}

func (f *FakePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait", selector, "")

	if n, ok := f.pending[selector]; ok {
		if n <= 0 {
			delete(f.pending, selector)
			f.visible[selector] = true
		} else {
			f.pending[selector] = n - 1
		}
	}
	if !f.isVisible(selector) {
		return browser.NotReadyError{Selector: selector, Err: fmt.Errorf("not visible after %s", timeout)}
	}
	return nil
}

func (f *FakePage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.record("click", selector, "")
	if err, ok := f.ClickErrs[selector]; ok && err != nil {
		f.mu.Unlock()
		return err
	}
	if !f.isVisible(selector) {
		f.mu.Unlock()
		return browser.NotReadyError{Selector: selector}
	}
	hook := f.OnClick
	f.mu.Unlock()

	if hook != nil {
		hook(selector)
	}
	return nil
}

func (f *FakePage) Focus(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("focus", selector, "")
	if !f.isVisible(selector) {
		return browser.NotReadyError{Selector: selector}
	}
	f.focused = selector
	return nil
}

func (f *FakePage) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("type", f.focused, text)
	if f.focused != "" && !f.IgnoreTyping {
		if f.selection != "" {
			f.Texts[f.focused] = strings.Replace(f.Texts[f.focused], f.selection, text, 1)
			f.selection = ""
		} else {
			f.Texts[f.focused] += text
		}
	}
	return nil
}

func (f *FakePage) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.record("press", f.focused, key)
	switch key {
	case "ControlOrMeta+A", "ControlOrMeta+a":
		if f.focused != "" {
			f.selection = f.Texts[f.focused]
		}
	case "Backspace", "Delete":
		if f.focused != "" && f.selection != "" {
			f.Texts[f.focused] = strings.Replace(f.Texts[f.focused], f.selection, "", 1)
			f.selection = ""
		}
	}
	hook := f.OnPress
	f.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	return nil
}

func (f *FakePage) Evaluate(ctx context.Context, fn string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	selector := selectorArg(arg)

	f.mu.Lock()
	switch fn {
	case browser.VisibleScript:
		defer f.mu.Unlock()
		return f.isVisible(selector), nil
	case browser.TextLengthScript:
		defer f.mu.Unlock()
		if !f.isVisible(selector) {
			return float64(-1), nil
		}
		return float64(len([]rune(strings.TrimSpace(f.Texts[selector])))), nil
	case browser.ElementTextScript:
		defer f.mu.Unlock()
		return f.Texts[selector], nil
	case browser.FocusScript:
		defer f.mu.Unlock()
		f.record("focus", selector, "")
		if !f.isVisible(selector) {
			return false, nil
		}
		f.focused = selector
		return true, nil
	case browser.PresentScript:
		defer f.mu.Unlock()
		return f.isVisible(selector) || f.attached[selector], nil
	case browser.SelectTextScript:
		defer f.mu.Unlock()
		text := stringArg(arg, "text")
		f.record("select", selector, text)
		if text == "" || !strings.Contains(f.Texts[selector], text) {
			return false, nil
		}
		f.focused = selector
		f.selection = text
		return true, nil
	case browser.ImageCountScript:
		defer f.mu.Unlock()
		if !f.isVisible(selector) {
			return float64(-1), nil
		}
		n := 0
		for _, files := range f.Files {
			n += len(files)
		}
		return float64(n), nil
	}
	f.record("evaluate", selector, "")
	hook := f.EvaluateFunc
	f.mu.Unlock()

	if hook != nil {
		return hook(fn, arg)
	}
	return nil, nil
}

func (f *FakePage) DispatchSyntheticEvent(ctx context.Context, selector string, ev browser.SyntheticEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("dispatch", selector, ev.Type)
	if !f.isVisible(selector) {
		return browser.NotReadyError{Selector: selector}
	}
	if ev.Type == "paste" && !f.IgnorePaste {
		f.Texts[selector] += ev.Data["text/plain"]
	}
	return nil
}

func (f *FakePage) SetInputFiles(ctx context.Context, selector string, files []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("files", selector, strings.Join(files, ","))
	if !f.isVisible(selector) && !f.attached[selector] {
		return browser.NotReadyError{Selector: selector}
	}
	f.Files[selector] = append(f.Files[selector], files...)
	return nil
}

func (f *FakePage) Screenshot(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("screenshot", "", path)
	if f.ShotErr != nil {
		return f.ShotErr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f.shotPath = path
	return os.WriteFile(path, []byte("\x89PNG fake"), 0o644)
}

func selectorArg(arg any) string {
	return stringArg(arg, "selector")
}

func stringArg(arg any, key string) string {
	switch a := arg.(type) {
	case map[string]any:
		s, _ := a[key].(string)
		return s
	case map[string]string:
		return a[key]
	}
	return ""
}

// FakeSession 包装 FakePage 的 browser.Session
type FakeSession struct {
	FakePage *FakePage
	Saved    int
	Closed   bool
}

var _ browser.Session = (*FakeSession)(nil)

func (s *FakeSession) Page() browser.Page { return s.FakePage }

func (s *FakeSession) SaveState() error {
	s.Saved++
	return nil
}

func (s *FakeSession) Close() error {
	s.Closed = true
	return nil
}

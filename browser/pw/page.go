package pw

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/auto-blog/publisher/browser"
)

var _ browser.Page = (*Page)(nil)

// actionTimeout 单次点击/聚焦等动作的超时
const actionTimeout = 5 * time.Second

// Page 包装 playwright.Page，选择器直接交给 Playwright 解析（CSS 与 text= 都原生支持）
type Page struct {
	page playwright.Page
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// Navigate 打开地址并等待 load
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   ms(timeout),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return browser.NavigationTimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	return nil
}

// URL 当前页面地址
func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

// WaitForSelector 等待元素可见
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
	if err != nil {
		return browser.NotReadyError{Selector: selector, Err: err}
	}
	return nil
}

// Click 点击第一个匹配元素
func (p *Page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: ms(actionTimeout)})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return browser.NotReadyError{Selector: selector, Err: err}
		}
		return err
	}
	return nil
}

// Focus 聚焦元素，contentEditable 时光标放到末尾
func (p *Page) Focus(ctx context.Context, selector string) error {
	out, err := p.Evaluate(ctx, browser.FocusScript, map[string]any{"selector": selector})
	if err != nil {
		return err
	}
	if ok, _ := out.(bool); !ok {
		return browser.NotReadyError{Selector: selector}
	}
	return nil
}

// Type 向当前焦点插入文字
func (p *Page) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().InsertText(text)
}

// Press 按键，支持 "ControlOrMeta+Enter" 这样的写法
func (p *Page) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().Press(key)
}

// Evaluate 执行函数；结果经过一次 JSON 往返，和 CDP 实现的返回类型保持一致
func (p *Page) Evaluate(ctx context.Context, fn string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		res any
		err error
	)
	if arg == nil {
		res, err = p.page.Evaluate(fn)
	} else {
		res, err = p.page.Evaluate(fn, arg)
	}
	if err != nil {
		return nil, err
	}
	return normalize(res)
}

// DispatchSyntheticEvent 派发携带 DataTransfer 的合成事件
func (p *Page) DispatchSyntheticEvent(ctx context.Context, selector string, ev browser.SyntheticEvent) error {
	out, err := p.Evaluate(ctx, browser.DispatchEventScript, map[string]any{
		"selector": selector,
		"type":     ev.Type,
		"data":     ev.Data,
	})
	if err != nil {
		return err
	}
	res, _ := out.(map[string]any)
	if ok, _ := res["ok"].(bool); !ok {
		msg, _ := res["error"].(string)
		return browser.NotReadyError{Selector: selector, Err: errors.New(msg)}
	}
	return nil
}

// SetInputFiles 给文件输入框设置文件
func (p *Page) SetInputFiles(ctx context.Context, selector string, files []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().SetInputFiles(files, playwright.LocatorSetInputFilesOptions{Timeout: ms(actionTimeout)})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return browser.NotReadyError{Selector: selector, Err: err}
		}
		return err
	}
	return nil
}

// Screenshot 整页截图
func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

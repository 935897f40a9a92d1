package selector

import (
	"context"
	"time"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/logutil"
)

// DefaultTimeout 每个候选的等待时间
const DefaultTimeout = 3 * time.Second

// Resolver 按顺序尝试候选选择器
type Resolver struct {
	Timeout time.Duration
}

// TrySelectors 返回第一个可见元素的选择器，命中后不再尝试后面的候选。
// 全部失败时返回带完整尝试列表的 SelectorExhaustedError。
func (r Resolver) TrySelectors(ctx context.Context, page browser.Page, field Field, list []string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tried := make([]string, 0, len(list))
	for _, sel := range list {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tried = append(tried, sel)
		if err := page.WaitForSelector(ctx, sel, timeout); err != nil {
			logutil.Debugf("选择器未命中 %s: %s", field, sel)
			continue
		}
		logutil.Debugf("选择器命中 %s: %s", field, sel)
		return sel, nil
	}
	return "", browser.SelectorExhaustedError{Field: string(field), Tried: tried}
}

// Resolve 用表中该字段的列表解析
func (r Resolver) Resolve(ctx context.Context, page browser.Page, t *Table, field Field) (string, error) {
	return r.TrySelectors(ctx, page, field, t.Get(field))
}

const presentPoll = 100 * time.Millisecond

// TryPresent 与 TrySelectors 相同，但只要求元素存在，用于隐藏的文件输入框
func (r Resolver) TryPresent(ctx context.Context, page browser.Page, field Field, list []string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tried := make([]string, 0, len(list))
	for _, sel := range list {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tried = append(tried, sel)
		if present(ctx, page, sel, timeout) {
			logutil.Debugf("选择器命中 %s: %s", field, sel)
			return sel, nil
		}
		logutil.Debugf("选择器未命中 %s: %s", field, sel)
	}
	return "", browser.SelectorExhaustedError{Field: string(field), Tried: tried}
}

func present(ctx context.Context, page browser.Page, sel string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		out, err := page.Evaluate(ctx, browser.PresentScript, map[string]any{"selector": sel})
		if ok, _ := out.(bool); err == nil && ok {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(presentPoll):
		}
	}
}

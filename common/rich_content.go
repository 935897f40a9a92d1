// Package common 编辑器内容注入与图片上传，对所有平台通用。
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/logutil"
)

// Content 要注入编辑器的内容
type Content struct {
	HTML string
	// Text 纯文本，段落之间用空行分隔
	Text string
}

// Strategy 一种把内容送进编辑器的方式
type Strategy interface {
	Name() string
	Inject(ctx context.Context, page browser.Page, selector string, c Content) error
}

// PasteStrategy 在编辑器上派发携带 text/html 与 text/plain 的合成 paste 事件，
// 由编辑器自己的粘贴逻辑完成插入
type PasteStrategy struct{}

func (PasteStrategy) Name() string { return "paste" }

func (PasteStrategy) Inject(ctx context.Context, page browser.Page, selector string, c Content) error {
	data := map[string]string{"text/plain": c.Text}
	if c.HTML != "" {
		data["text/html"] = c.HTML
	}
	return page.DispatchSyntheticEvent(ctx, selector, browser.SyntheticEvent{Type: "paste", Data: data})
}

// KeystrokeStrategy 逐段插入纯文本，段落之间按 Enter
type KeystrokeStrategy struct{}

func (KeystrokeStrategy) Name() string { return "keystroke" }

func (KeystrokeStrategy) Inject(ctx context.Context, page browser.Page, selector string, c Content) error {
	paragraphs := strings.Split(strings.ReplaceAll(c.Text, "\r\n", "\n"), "\n\n")
	for i, p := range paragraphs {
		if i > 0 {
			for range 2 {
				if err := page.Press(ctx, "Enter"); err != nil {
					return err
				}
			}
		}
		for j, line := range strings.Split(p, "\n") {
			if j > 0 {
				if err := page.Press(ctx, "Shift+Enter"); err != nil {
					return err
				}
			}
			if line == "" {
				continue
			}
			if err := page.Type(ctx, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// DefaultStrategies 先粘贴，失败再键入
func DefaultStrategies() []Strategy {
	return []Strategy{PasteStrategy{}, KeystrokeStrategy{}}
}

// Injector 依次尝试各策略，每次之后检查编辑器里的文字是否增加
type Injector struct {
	Platform   string
	Strategies []Strategy
	// Settle 注入后等待编辑器渲染的时间
	Settle time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

// NewInjector 使用默认策略
func NewInjector(platform string) *Injector {
	return &Injector{Platform: platform, Strategies: DefaultStrategies(), Settle: 500 * time.Millisecond}
}

// InjectRichContent 聚焦编辑器并注入正文。
// 聚焦失败属于瞬时状态，原样返回以便重试；所有策略都没有产生可见内容时返回 ContentInjectionError。
func (in *Injector) InjectRichContent(ctx context.Context, page browser.Page, selector string, c Content) error {
	if strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.HTML) == "" {
		return nil
	}
	logutil.Debugf("[%s] 开始填写文章正文，共 %d 字", in.Platform, len([]rune(c.Text)))

	before, err := textLength(ctx, page, selector)
	if err != nil {
		return err
	}
	if before < 0 {
		return browser.NotReadyError{Selector: selector}
	}

	var (
		attempts []string
		lastErr  error
	)
	for i, s := range in.Strategies {
		if err := page.Focus(ctx, selector); err != nil {
			if i == 0 {
				return err
			}
			lastErr = err
			break
		}

		attempts = append(attempts, s.Name())
		if err := s.Inject(ctx, page, selector, c); err != nil {
			logutil.Debugf("[%s] %s 注入失败: %v", in.Platform, s.Name(), err)
			lastErr = err
			continue
		}
		if err := in.sleep(ctx, in.Settle); err != nil {
			return err
		}

		after, err := textLength(ctx, page, selector)
		if err != nil {
			lastErr = err
			continue
		}
		if after > before {
			logutil.Debugf("[%s] ✅ 正文已通过 %s 写入 (%d -> %d)", in.Platform, s.Name(), before, after)
			return nil
		}
		lastErr = fmt.Errorf("editor text length unchanged (%d)", after)
		logutil.Debugf("[%s] %s 之后编辑器内容没有变化", in.Platform, s.Name())
	}
	return browser.ContentInjectionError{Field: "editorBody", Attempts: attempts, Err: lastErr}
}

// FillTitle 点击标题框、清空后键入标题，并确认标题框里确实是这段文字
func (in *Injector) FillTitle(ctx context.Context, page browser.Page, selector, title string) error {
	if title == "" {
		return nil
	}
	logutil.Debugf("[%s] 开始填写标题: %s", in.Platform, title)

	if err := page.Click(ctx, selector); err != nil {
		return err
	}
	if err := page.Focus(ctx, selector); err != nil {
		return err
	}
	if err := page.Press(ctx, "ControlOrMeta+A"); err != nil {
		return err
	}
	if err := page.Press(ctx, "Backspace"); err != nil {
		return err
	}
	if err := page.Type(ctx, title); err != nil {
		return err
	}

	out, err := page.Evaluate(ctx, browser.ElementTextScript, map[string]any{"selector": selector})
	if err != nil {
		return err
	}
	got, _ := out.(string)
	if strings.TrimSpace(got) != strings.TrimSpace(title) {
		return browser.ContentInjectionError{
			Field:    "titleInput",
			Attempts: []string{"keystroke"},
			Err:      fmt.Errorf("title field contains %q", got),
		}
	}
	logutil.Debugf("[%s] ✅ 标题填写完成", in.Platform)
	return nil
}

func (in *Injector) sleep(ctx context.Context, d time.Duration) error {
	if in.Sleep != nil {
		return in.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func textLength(ctx context.Context, page browser.Page, selector string) (int, error) {
	out, err := page.Evaluate(ctx, browser.TextLengthScript, map[string]any{"selector": selector})
	if err != nil {
		return 0, err
	}
	n, ok := out.(float64)
	if !ok {
		return 0, errors.New("unexpected text length result")
	}
	return int(n), nil
}

// Package platform 描述一个发布平台：编辑页地址、登录页特征、选择器表和少量平台钩子。
package platform

import (
	"context"
	"errors"
	"regexp"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/selector"
)

// Env 钩子执行时可用的页面与选择器
type Env struct {
	Page     browser.Page
	Table    *selector.Table
	Resolver selector.Resolver
}

// Platform 平台接口
type Platform interface {
	// Name 平台名称，用于日志
	Name() string
	// Tag 命令名和 profile 目录名
	Tag() string
	// ComposeURL 新建文章的页面地址
	ComposeURL() string
	// LoginPatterns 登录页路径特征
	LoginPatterns() []string
	// Selectors 内置选择器表
	Selectors() *selector.Table
	// Required 发布流程必须能解析的字段
	Required() []selector.Field
	// BeforeEditor 编辑器出现之前的准备，例如点击“写文章”
	BeforeEditor(ctx context.Context, env Env) error
	// AfterContent 正文注入之后的处理，例如确认编辑器的格式解析弹窗
	AfterContent(ctx context.Context, env Env) error
	// Shortcut 按钮点击失败时的快捷键，空字符串表示没有
	Shortcut(submit bool) string
	// PublishedURL 发布成功后页面地址的特征，nil 表示无法确认
	PublishedURL() *regexp.Regexp
}

// Descriptor Platform 的通用实现，具体平台嵌入后覆盖需要的钩子
type Descriptor struct {
	DisplayName   string
	ID            string
	Compose       string
	Login         []string
	Table         *selector.Table
	RequiredField []selector.Field
	DraftKey      string
	SubmitKey     string
	Published     *regexp.Regexp
}

var _ Platform = (*Descriptor)(nil)

func (d *Descriptor) Name() string               { return d.DisplayName }
func (d *Descriptor) Tag() string                { return d.ID }
func (d *Descriptor) ComposeURL() string         { return d.Compose }
func (d *Descriptor) LoginPatterns() []string    { return d.Login }
func (d *Descriptor) Selectors() *selector.Table { return d.Table }
func (d *Descriptor) PublishedURL() *regexp.Regexp {
	return d.Published
}

func (d *Descriptor) Required() []selector.Field {
	if len(d.RequiredField) > 0 {
		return d.RequiredField
	}
	return []selector.Field{selector.TitleInput, selector.EditorBody}
}

// BeforeEditor 默认在配置了 writeButton 时点一下
func (d *Descriptor) BeforeEditor(ctx context.Context, env Env) error {
	_, err := ClickIfPresent(ctx, env, selector.WriteButton)
	return err
}

// AfterContent 默认什么也不做
func (d *Descriptor) AfterContent(context.Context, Env) error { return nil }

func (d *Descriptor) Shortcut(submit bool) string {
	if submit {
		return d.SubmitKey
	}
	return d.DraftKey
}

// ClickIfPresent 字段已配置且能找到时点击它。
// 没有配置或找不到都不算错误，返回 false。
func ClickIfPresent(ctx context.Context, env Env, field selector.Field) (bool, error) {
	if env.Table == nil || !env.Table.Has(field) {
		return false, nil
	}
	sel, err := env.Resolver.Resolve(ctx, env.Page, env.Table, field)
	if err != nil {
		var ex browser.SelectorExhaustedError
		if errors.As(err, &ex) {
			logutil.Debugf("未找到可选元素 %s，跳过", field)
			return false, nil
		}
		return false, err
	}
	if err := env.Page.Click(ctx, sel); err != nil {
		return false, err
	}
	return true, nil
}

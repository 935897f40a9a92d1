// Package zhihu 知乎专栏写文章页面的平台描述。
package zhihu

import (
	"context"
	_ "embed"
	"regexp"
	"time"

	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
)

//go:embed selectors.yaml
var selectorsYAML []byte

const (
	Tag        = "zhihu"
	ComposeURL = "https://zhuanlan.zhihu.com/write"
)

// LoginPatterns 登录页路径
var LoginPatterns = []string{"/signin"}

// 发布后跳转到 /p/<id>，编辑中是 /p/<id>/edit
var publishedURL = regexp.MustCompile(`^https://zhuanlan\.zhihu\.com/p/\d+/?(?:[?#].*)?$`)

var _ platform.Platform = (*Platform)(nil)

// Platform 知乎
type Platform struct {
	*platform.Descriptor
	// DialogWait 粘贴后等待解析对话框出现的时间
	DialogWait time.Duration
}

// New 创建知乎平台
func New() *Platform {
	return &Platform{
		Descriptor: &platform.Descriptor{
			DisplayName: "知乎",
			ID:          Tag,
			Compose:     ComposeURL,
			Login:       LoginPatterns,
			Table:       selector.MustParse(selectorsYAML),
			RequiredField: []selector.Field{
				selector.TitleInput, selector.EditorBody, selector.FileInput, selector.PublishButton,
			},
			Published: publishedURL,
		},
		DialogWait: 2 * time.Second,
	}
}

// AfterContent 粘贴 Markdown 风格的内容后知乎会询问是否解析，出现时点确认
func (p *Platform) AfterContent(ctx context.Context, env platform.Env) error {
	r := env.Resolver
	if p.DialogWait > 0 {
		r.Timeout = p.DialogWait
	}
	env.Resolver = r

	clicked, err := platform.ClickIfPresent(ctx, env, selector.ConfirmButton)
	if err != nil {
		logutil.Warnf("[知乎] ⚠️ 处理Markdown解析对话框失败: %v", err)
		return nil
	}
	if clicked {
		logutil.Debugf("[知乎] ✅ 已点击Markdown解析按钮")
	}
	return nil
}

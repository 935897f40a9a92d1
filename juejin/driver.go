// Package juejin 掘金 Markdown 编辑器的平台描述。掘金会自动保存草稿。
package juejin

import (
	_ "embed"
	"regexp"

	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
)

//go:embed selectors.yaml
var selectorsYAML []byte

const (
	Tag        = "juejin"
	ComposeURL = "https://juejin.cn/editor/drafts/new?v=2"
)

// LoginPatterns 登录页路径
var LoginPatterns = []string{"/login"}

var publishedURL = regexp.MustCompile(`^https://juejin\.cn/(?:post/\d+|published)`)

// New 创建掘金平台
func New() *platform.Descriptor {
	return &platform.Descriptor{
		DisplayName: "掘金",
		ID:          Tag,
		Compose:     ComposeURL,
		Login:       LoginPatterns,
		Table:       selector.MustParse(selectorsYAML),
		DraftKey:    "ControlOrMeta+S",
		Published:   publishedURL,
	}
}

// Package xiaohongshu 小红书创作者中心长文的平台描述。
package xiaohongshu

import (
	_ "embed"
	"regexp"

	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
)

//go:embed selectors.yaml
var selectorsYAML []byte

const (
	Tag        = "xhs"
	ComposeURL = "https://creator.xiaohongshu.com/publish/publish?source=official&target=article"
)

// LoginPatterns 登录页路径
var LoginPatterns = []string{"/website-login", "/login"}

var publishedURL = regexp.MustCompile(`^https://creator\.xiaohongshu\.com/(?:publish/success|new/note-manager)`)

// New 创建小红书平台
func New() *platform.Descriptor {
	return &platform.Descriptor{
		DisplayName: "小红书",
		ID:          Tag,
		Compose:     ComposeURL,
		Login:       LoginPatterns,
		Table:       selector.MustParse(selectorsYAML),
		RequiredField: []selector.Field{
			selector.TitleInput, selector.EditorBody, selector.FileInput,
			selector.DraftButton, selector.PublishButton,
		},
		Published: publishedURL,
	}
}

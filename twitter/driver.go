// Package twitter X（Twitter）长文 Articles 的平台描述。
// X 的长文编辑器会自动保存草稿，草稿路径只需要打开预览确认保存。
package twitter

import (
	_ "embed"
	"regexp"

	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
)

//go:embed selectors.yaml
var selectorsYAML []byte

const (
	Tag        = "x"
	ComposeURL = "https://x.com/compose/articles"
)

// LoginPatterns 登录页路径
var LoginPatterns = []string{"/i/flow/login", "/login"}

var publishedURL = regexp.MustCompile(`^https://(?:x|twitter)\.com/[^/]+/(?:status|article)/\d+`)

// New 创建 X 平台
func New() *platform.Descriptor {
	return &platform.Descriptor{
		DisplayName: "X",
		ID:          Tag,
		Compose:     ComposeURL,
		Login:       LoginPatterns,
		Table:       selector.MustParse(selectorsYAML),
		RequiredField: []selector.Field{
			selector.TitleInput, selector.EditorBody, selector.PublishButton,
		},
		DraftKey:  "ControlOrMeta+S",
		SubmitKey: "ControlOrMeta+Enter",
		Published: publishedURL,
	}
}

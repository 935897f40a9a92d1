// Package cnblogs 博客园后台写随笔页面的平台描述。
package cnblogs

import (
	_ "embed"
	"regexp"

	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
)

//go:embed selectors.yaml
var selectorsYAML []byte

const (
	Tag        = "cnblogs"
	ComposeURL = "https://i.cnblogs.com/posts/edit"
)

// LoginPatterns account.cnblogs.com/signin
var LoginPatterns = []string{"/signin"}

var publishedURL = regexp.MustCompile(`^https://i\.cnblogs\.com/posts/edit-done`)

// New 创建博客园平台
func New() *platform.Descriptor {
	return &platform.Descriptor{
		DisplayName: "博客园",
		ID:          Tag,
		Compose:     ComposeURL,
		Login:       LoginPatterns,
		Table:       selector.MustParse(selectorsYAML),
		RequiredField: []selector.Field{
			selector.TitleInput, selector.EditorBody, selector.DraftButton, selector.PublishButton,
		},
		Published: publishedURL,
	}
}

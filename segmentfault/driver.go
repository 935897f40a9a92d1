// Package segmentfault 思否写文章页面的平台描述。
package segmentfault

import (
	_ "embed"
	"regexp"

	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
)

//go:embed selectors.yaml
var selectorsYAML []byte

const (
	Tag        = "segmentfault"
	ComposeURL = "https://segmentfault.com/write"
)

// LoginPatterns 登录页路径
var LoginPatterns = []string{"/user/login"}

var publishedURL = regexp.MustCompile(`^https://segmentfault\.com/a/\d+`)

// New 创建思否平台
func New() *platform.Descriptor {
	return &platform.Descriptor{
		DisplayName: "SegmentFault",
		ID:          Tag,
		Compose:     ComposeURL,
		Login:       LoginPatterns,
		Table:       selector.MustParse(selectorsYAML),
		DraftKey:    "ControlOrMeta+S",
		Published:   publishedURL,
	}
}

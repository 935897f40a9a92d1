package config

import (
	"strconv"
	"strings"

	"github.com/auto-blog/publisher/article"
)

// DefaultRetryAttempts 非数字或缺省时的重试次数
const DefaultRetryAttempts = 3

// ParseRetryAttempts 合法整数且 >=1 原样返回；非数字或空串返回 3；<=0 截到 1
func ParseRetryAttempts(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultRetryAttempts
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return DefaultRetryAttempts
	}
	if n < 1 {
		return 1
	}
	return n
}

// PublishOptions 一次发布的输入，构造后不再修改，按值传递
type PublishOptions struct {
	ContentPath    string
	Title          string
	CoverImagePath string
	ContentImages  []article.ContentImage
	Submit         bool
	ProfileDir     string
	RetryAttempts  int
	Verbose        bool
}

// NewPublishOptions 归一化 RetryAttempts 并复制图片列表
func NewPublishOptions(o PublishOptions) PublishOptions {
	if o.RetryAttempts < 1 {
		o.RetryAttempts = 1
	}
	o.ContentImages = append([]article.ContentImage(nil), o.ContentImages...)
	return o
}

// Mode 发布模式标记
func (o PublishOptions) Mode() string {
	if o.Submit {
		return "submit"
	}
	return "draft"
}

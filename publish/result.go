package publish

import (
	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/diagnostics"
)

// Status 结果状态
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result 一次发布的最终结果，只由 succeeded/failed 构造
type Result struct {
	Status   Status `json:"status"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
	// URL 草稿为编辑页地址，发布为文章地址
	URL string `json:"url,omitempty"`
	// Verified 发布后地址命中了平台的文章地址特征
	Verified       bool   `json:"verified,omitempty"`
	Stage          string `json:"stage,omitempty"`
	Error          string `json:"error,omitempty"`
	ErrorClass     string `json:"error_class,omitempty"`
	ScreenshotPath string `json:"screenshot,omitempty"`
	RunID          string `json:"run_id,omitempty"`

	Err error `json:"-"`
}

// OK 是否成功
func (r Result) OK() bool { return r.Status == StatusSuccess }

func succeeded(platform, mode, url string, verified bool) Result {
	return Result{Status: StatusSuccess, Platform: platform, Mode: mode, URL: url, Verified: verified, Stage: StateDone.String()}
}

func failed(platform, mode string, err error, b diagnostics.Bundle) Result {
	return Result{
		Status:         StatusError,
		Platform:       platform,
		Mode:           mode,
		Stage:          b.Stage,
		Error:          err.Error(),
		ErrorClass:     browser.ErrorClass(err),
		ScreenshotPath: b.ScreenshotPath,
		RunID:          b.RunID,
		Err:            err,
	}
}

// Package diagnostics 在发布失败时留下截图和结构化错误信息。
package diagnostics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/logutil"
)

const (
	// ScreenshotName 失败截图的文件名
	ScreenshotName = "pw-error.png"
	// BundleName 错误描述文件名
	BundleName = "pw-error.json"
)

// Bundle 一次失败的诊断信息
type Bundle struct {
	RunID          string    `json:"run_id"`
	Platform       string    `json:"platform,omitempty"`
	Stage          string    `json:"stage"`
	ErrorClass     string    `json:"error_class"`
	ErrorMessage   string    `json:"error"`
	URL            string    `json:"url,omitempty"`
	ScreenshotPath string    `json:"screenshot,omitempty"`
	Time           time.Time `json:"time"`
}

// Reporter 把诊断文件写到 Dir
type Reporter struct {
	Dir      string
	Platform string
	RunID    string
	// ScreenshotTimeout 截图本身的超时，页面可能已经卡死
	ScreenshotTimeout time.Duration
}

// NewReporter 为本次运行生成 run id
func NewReporter(dir, platform string) *Reporter {
	if dir == "" {
		dir = "."
	}
	return &Reporter{
		Dir:               dir,
		Platform:          platform,
		RunID:             uuid.New().String(),
		ScreenshotTimeout: 10 * time.Second,
	}
}

// CaptureFailure 截图并写出 Bundle。page 可以为 nil（浏览器没能启动）。
// 截图或写文件失败只记录日志，不覆盖原始错误。
func (r *Reporter) CaptureFailure(ctx context.Context, page browser.Page, cause error, stage string) Bundle {
	b := Bundle{
		RunID:        r.RunID,
		Platform:     r.Platform,
		Stage:        stage,
		ErrorClass:   browser.ErrorClass(cause),
		ErrorMessage: errString(cause),
		Time:         time.Now(),
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		logutil.Warnf("创建诊断目录失败: %v", err)
		return b
	}

	if page != nil {
		// 原 ctx 可能已经被取消，截图用独立的超时
		shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout())
		if u, err := page.URL(shotCtx); err == nil {
			b.URL = u
		}
		path := filepath.Join(r.Dir, ScreenshotName)
		if err := page.Screenshot(shotCtx, path); err != nil {
			logutil.Warnf("保存失败截图出错: %v", err)
		} else {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			b.ScreenshotPath = path
		}
		cancel()
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(r.Dir, BundleName), data, 0o644)
	}
	if err != nil {
		logutil.Warnf("写入诊断信息失败: %v", err)
	}

	logutil.Errorf("[%s] 在 %s 阶段失败 (%s): %s", r.Platform, stage, b.ErrorClass, b.ErrorMessage)
	if b.ScreenshotPath != "" {
		logutil.Infof("失败截图: %s", b.ScreenshotPath)
	}
	return b
}

func (r *Reporter) timeout() time.Duration {
	if r.ScreenshotTimeout > 0 {
		return r.ScreenshotTimeout
	}
	return 10 * time.Second
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/auto-blog/publisher/article"
	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/selector"
)

// ImageUploader 通过原生文件输入框上传封面和正文图片
type ImageUploader struct {
	Platform string
	Table    *selector.Table
	Resolver selector.Resolver
	// EditorSelector 已解析的正文编辑器选择器
	EditorSelector string
	// UploadTimeout 单张图片出现在编辑器中的最长等待
	UploadTimeout time.Duration
	PollInterval  time.Duration

	// attached 已经交给文件输入框的占位符，重试时跳过
	attached map[string]bool
}

// CheckFiles 确认图片文件都存在，在打开浏览器之前调用
func CheckFiles(cover string, images []article.ContentImage) error {
	if cover != "" {
		if err := checkFile(cover); err != nil {
			return fmt.Errorf("封面图片: %w", err)
		}
	}
	for _, img := range images {
		if err := checkFile(img.LocalPath); err != nil {
			return fmt.Errorf("图片 %s: %w", img.Placeholder, err)
		}
	}
	return nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// AttachCover 把封面交给文件输入框，需要时点击裁剪确认按钮
func (u *ImageUploader) AttachCover(ctx context.Context, page browser.Page, path string) error {
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	candidates := u.Table.Get(selector.CoverInput)
	field := selector.CoverInput
	if len(candidates) == 0 {
		candidates, field = u.Table.Get(selector.FileInput), selector.FileInput
	}
	input, err := u.Resolver.TryPresent(ctx, page, field, candidates)
	if err != nil {
		return err
	}
	logutil.Debugf("[%s] 上传封面: %s", u.Platform, abs)
	if err := page.SetInputFiles(ctx, input, []string{abs}); err != nil {
		return err
	}

	if u.Table.Has(selector.ApplyButton) {
		apply, err := u.Resolver.Resolve(ctx, page, u.Table, selector.ApplyButton)
		if err != nil {
			// 有的账号不弹裁剪框
			logutil.Debugf("[%s] 未出现封面确认按钮: %v", u.Platform, err)
			return nil
		}
		if err := page.Click(ctx, apply); err != nil {
			return err
		}
	}
	logutil.Debugf("[%s] ✅ 封面上传完成", u.Platform)
	return nil
}

// AttachInlineImages 按 BlockIndex 顺序，把每个占位符替换成上传的图片。
// 已上传的图片会被记录，重试时只处理剩下的；未上传却找不到占位符时返回错误。
func (u *ImageUploader) AttachInlineImages(ctx context.Context, page browser.Page, images []article.ContentImage) error {
	if len(images) == 0 {
		return nil
	}
	ordered := append([]article.ContentImage(nil), images...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].BlockIndex < ordered[j].BlockIndex })

	logutil.Debugf("[%s] 开始处理 %d 张图片", u.Platform, len(ordered))
	for _, img := range ordered {
		if err := u.processImage(ctx, page, img); err != nil {
			return fmt.Errorf("图片 %s: %w", img.Placeholder, err)
		}
	}
	logutil.Debugf("[%s] ✅ 所有图片处理完成", u.Platform)
	return nil
}

func (u *ImageUploader) processImage(ctx context.Context, page browser.Page, img article.ContentImage) error {
	if u.attached[img.Placeholder] {
		logutil.Debugf("[%s] 图片 %s 已上传，跳过", u.Platform, img.Placeholder)
		return nil
	}
	abs, err := filepath.Abs(img.LocalPath)
	if err != nil {
		return err
	}

	// 先确认上传入口都在，再改动编辑器内容
	var btn string
	if u.Table.Has(selector.ImageButton) {
		if btn, err = u.Resolver.Resolve(ctx, page, u.Table, selector.ImageButton); err != nil {
			return err
		}
	}
	input, err := u.Resolver.TryPresent(ctx, page, selector.FileInput, u.Table.Get(selector.FileInput))
	if err != nil {
		return err
	}

	// 查找并选中占位符
	out, err := page.Evaluate(ctx, browser.SelectTextScript, map[string]any{
		"selector": u.EditorSelector,
		"text":     img.Placeholder,
	})
	if err != nil {
		return err
	}
	if found, _ := out.(bool); !found {
		return browser.ContentInjectionError{
			Field: string(selector.EditorBody),
			Err:   fmt.Errorf("placeholder %s not found, image %s was not uploaded", img.Placeholder, img.LocalPath),
		}
	}

	before, _ := u.imageCount(ctx, page)

	// 删除占位符，光标停在原位置
	if err := page.Press(ctx, "Delete"); err != nil {
		return err
	}
	if err := u.upload(ctx, page, btn, input, abs); err != nil {
		// 放回占位符，重试时还能找到插入位置
		if terr := page.Type(ctx, img.Placeholder); terr != nil {
			logutil.Warnf("[%s] 恢复占位符 %s 失败: %v", u.Platform, img.Placeholder, terr)
		}
		return err
	}
	if u.attached == nil {
		u.attached = map[string]bool{}
	}
	u.attached[img.Placeholder] = true

	if err := u.waitForUpload(ctx, page, before); err != nil {
		logutil.Warnf("[%s] 图片 %s 上传结果未确认: %v", u.Platform, img.Placeholder, err)
	} else {
		logutil.Debugf("[%s] ✅ 图片处理完成: %s", u.Platform, img.Placeholder)
	}
	return nil
}

// upload 点开图片入口（如果有）并把文件交给输入框
func (u *ImageUploader) upload(ctx context.Context, page browser.Page, btn, input, path string) error {
	if btn != "" {
		if err := page.Click(ctx, btn); err != nil {
			return err
		}
	}
	return page.SetInputFiles(ctx, input, []string{path})
}

// waitForUpload 等待编辑器里的图片数量增加
func (u *ImageUploader) waitForUpload(ctx context.Context, page browser.Page, before int) error {
	timeout := u.UploadTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	interval := u.PollInterval
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		if n, err := u.imageCount(ctx, page); err == nil && n > before {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("上传超时")
		case <-time.After(interval):
		}
	}
}

func (u *ImageUploader) imageCount(ctx context.Context, page browser.Page) (int, error) {
	out, err := page.Evaluate(ctx, browser.ImageCountScript, map[string]any{"selector": u.EditorSelector})
	if err != nil {
		return 0, err
	}
	n, _ := out.(float64)
	return int(n), nil
}

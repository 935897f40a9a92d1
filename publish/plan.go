package publish

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/auto-blog/publisher/article"
	"github.com/auto-blog/publisher/config"
)

// RenderPlan 按执行顺序列出本次发布会做的事情，输出只依赖输入，便于 --dry-run 和比对
func RenderPlan(opts config.PublishOptions, doc *article.Article) string {
	title, images := effectiveInput(opts, doc)

	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\n", opts.Mode())
	fmt.Fprintf(&b, "content: %s\n", opts.ContentPath)
	if title != "" {
		fmt.Fprintf(&b, "title: %s\n", title)
	}
	if opts.CoverImagePath != "" {
		fmt.Fprintf(&b, "cover: %s\n", opts.CoverImagePath)
	}
	if opts.ProfileDir != "" {
		fmt.Fprintf(&b, "profile: %s\n", opts.ProfileDir)
	}
	fmt.Fprintf(&b, "retry-attempts: %d\n", opts.RetryAttempts)

	steps := []string{
		"launch browser",
		"navigate to compose page",
		"wait for login if required",
		"wait for editor",
	}
	if title != "" {
		steps = append(steps, "fill title "+strconv.Quote(title))
	}
	if doc != nil {
		steps = append(steps, fmt.Sprintf("inject content (%d chars)", len([]rune(doc.Text))))
	}
	if opts.CoverImagePath != "" {
		steps = append(steps, "attach cover "+opts.CoverImagePath)
	}
	for _, img := range images {
		steps = append(steps, fmt.Sprintf("attach image %s <- %s", img.Placeholder, img.LocalPath))
	}
	if opts.Submit {
		steps = append(steps, "click publish (once)", "verify published url")
	} else {
		steps = append(steps, "save draft")
	}

	b.WriteString("steps:\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	return b.String()
}

// effectiveInput 命令行参数优先于文档自带的标题和图片
func effectiveInput(opts config.PublishOptions, doc *article.Article) (string, []article.ContentImage) {
	title := opts.Title
	images := opts.ContentImages
	if doc != nil {
		if title == "" {
			title = doc.Title
		}
		if len(images) == 0 {
			images = doc.Images
		}
	}
	sorted := append([]article.ContentImage(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BlockIndex < sorted[j].BlockIndex })
	return title, sorted
}

// Package article 读取待发布内容：预渲染的 HTML，或就地渲染的 Markdown。
// 本地图片被替换为占位符，交给上传步骤按顺序插回编辑器。
package article

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// ContentImage 正文中的一张本地图片
type ContentImage struct {
	Placeholder string `json:"placeholder"` // 正文中代替图片的占位符
	LocalPath   string `json:"local_path"`  // 绝对路径
	AltText     string `json:"alt_text"`    // 图片 alt 文本
	BlockIndex  int    `json:"block_index"` // 所在顶层块的序号，决定上传顺序
}

// Article 文章结构体
type Article struct {
	Title  string         `json:"title"`  // 文章标题
	HTML   string         `json:"html"`   // 注入编辑器的 HTML，图片已替换为占位符
	Text   string         `json:"text"`   // 纯文本，键入兜底时使用
	Path   string         `json:"path"`   // 文件路径
	Images []ContentImage `json:"images"` // 正文中的本地图片
}

// PlaceholderFormat 占位符格式，序号从 1 开始
const PlaceholderFormat = "[[IMAGE_%d]]"

// Placeholder 第 n 张图片的占位符
func Placeholder(n int) string {
	return fmt.Sprintf(PlaceholderFormat, n)
}

// ErrEmpty 文件没有可发布的内容
var ErrEmpty = errors.New("article has no content")

// Load 按扩展名读取 .html/.htm 或 .md/.markdown 文件
func Load(path string) (*Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", path, err)
	}

	var (
		title string
		html  string
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		meta, body := splitFrontMatter(data)
		title, body = extractMarkdownTitle(body)
		if meta.Title != "" {
			title = meta.Title
		}
		html, err = RenderMarkdown(body)
		if err != nil {
			return nil, err
		}
	default:
		html = string(data)
	}

	a, err := FromHTML(html, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	a.Path = path
	if title != "" {
		a.Title = title
	}
	if strings.TrimSpace(a.Text) == "" && len(a.Images) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return a, nil
}

// FromHTML 解析 HTML：取 <title> 或首个 <h1> 作为标题，把本地 <img> 换成占位符
func FromHTML(html, baseDir string) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	body := doc.Find("body")

	a := &Article{Title: strings.TrimSpace(doc.Find("head > title").First().Text())}
	if h1 := body.Children().Filter("h1").First(); h1.Length() > 0 {
		if a.Title == "" {
			a.Title = strings.TrimSpace(h1.Text())
		}
		// 标题单独填写，正文里不再重复
		if strings.TrimSpace(h1.Text()) == a.Title {
			h1.Remove()
		}
	}

	body.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || isRemote(src) {
			return
		}
		n := len(a.Images) + 1
		a.Images = append(a.Images, ContentImage{
			Placeholder: Placeholder(n),
			LocalPath:   resolvePath(baseDir, src),
			AltText:     img.AttrOr("alt", ""),
			BlockIndex:  blockIndex(img),
		})
		img.ReplaceWithHtml(Placeholder(n))
	})

	out, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	a.HTML = strings.TrimSpace(out)
	a.Text = plainText(body)
	return a, nil
}

// blockIndex 元素所在的 body 直接子节点序号
func blockIndex(s *goquery.Selection) int {
	top := s
	for {
		parent := top.Parent()
		if parent.Length() == 0 || goquery.NodeName(parent) == "body" {
			break
		}
		top = parent
	}
	return top.Index()
}

func plainText(body *goquery.Selection) string {
	var blocks []string
	body.Children().Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			blocks = append(blocks, t)
		}
	})
	if len(blocks) == 0 {
		return strings.TrimSpace(body.Text())
	}
	return strings.Join(blocks, "\n\n")
}

func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "//")
}

func resolvePath(baseDir, src string) string {
	src = strings.TrimPrefix(src, "file://")
	p := src
	if !filepath.IsAbs(src) {
		p = filepath.Join(baseDir, src)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

type frontMatter struct {
	Title string `yaml:"title"`
}

// splitFrontMatter 拆出开头 --- 包围的 YAML 头，只关心其中的 title
func splitFrontMatter(data []byte) (frontMatter, []byte) {
	var meta frontMatter
	trimmed := bytes.TrimLeft(data, "\ufeff")
	if !bytes.HasPrefix(trimmed, []byte("---\n")) && !bytes.HasPrefix(trimmed, []byte("---\r\n")) {
		return meta, data
	}
	rest := trimmed[bytes.IndexByte(trimmed, '\n')+1:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return meta, data
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return frontMatter{}, data
	}
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return meta, body
}

// extractMarkdownTitle 第一行非空内容是 "# 标题" 时取出作为标题
func extractMarkdownTitle(body []byte) (string, []byte) {
	lines := strings.Split(string(body), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			rest := strings.Join(lines[i+1:], "\n")
			return strings.TrimSpace(strings.TrimPrefix(line, "# ")), []byte(rest)
		}
		break
	}
	return "", body
}

// String 文章的字符串表示
func (a *Article) String() string {
	return fmt.Sprintf("标题: %s\n正文字数: %d\n图片数量: %d\n文件路径: %s",
		a.Title, len([]rune(a.Text)), len(a.Images), a.Path)
}

// Package selector 保存按语义字段组织的候选选择器表，并按顺序解析。
// 表是数据而不是代码：页面改版时只需更新 YAML。
package selector

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field 编辑页上的语义字段
type Field string

const (
	TitleInput    Field = "titleInput"
	EditorBody    Field = "editorBody"
	FileInput     Field = "fileInput"
	ApplyButton   Field = "applyButton"
	PreviewButton Field = "previewButton"
	PublishButton Field = "publishButton"
	WriteButton   Field = "writeButton"
	DraftButton   Field = "draftButton"
	// CoverInput 封面专用的文件输入框，缺省时使用 FileInput
	CoverInput Field = "coverInput"
	// ImageButton 正文插图按钮，点击后才出现文件输入框的编辑器需要它
	ImageButton Field = "imageButton"
	// ConfirmButton 正文粘贴后编辑器弹出的确认框，例如知乎的 Markdown 解析提示
	ConfirmButton Field = "confirmButton"
)

// KnownFields 所有可识别的字段
var KnownFields = []Field{
	TitleInput, EditorBody, FileInput, ApplyButton, PreviewButton,
	PublishButton, WriteButton, DraftButton, CoverInput, ImageButton,
	ConfirmButton,
}

// Set 字段到有序候选列表的映射，靠前的优先，多语言的写法放在同一个列表里
type Set map[Field][]string

// Table 某个平台的一版选择器表
type Table struct {
	Version  int    `yaml:"version"`
	Platform string `yaml:"platform"`
	Fields   Set    `yaml:"fields"`
}

// Parse 解析 YAML 选择器表
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse selector table: %w", err)
	}
	if t.Fields == nil {
		t.Fields = Set{}
	}
	for f, list := range t.Fields {
		if !isKnown(f) {
			return nil, fmt.Errorf("selector table %s: unknown field %q", t.Platform, f)
		}
		t.Fields[f] = clean(list)
	}
	return &t, nil
}

// LoadFile 从文件读取选择器表
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// MustParse 解析内置表，失败直接 panic
func MustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Get 字段的候选列表
func (t *Table) Get(f Field) []string {
	if t == nil {
		return nil
	}
	return t.Fields[f]
}

// Has 字段是否配置了候选
func (t *Table) Has(f Field) bool {
	return len(t.Get(f)) > 0
}

// Validate 检查必需字段都有候选
func (t *Table) Validate(required ...Field) error {
	if t.Version < 1 {
		return fmt.Errorf("selector table %s: version must be >= 1", t.Platform)
	}
	var errs []error
	for _, f := range required {
		if !t.Has(f) {
			errs = append(errs, fmt.Errorf("selector table %s: field %s has no selectors", t.Platform, f))
		}
	}
	return errors.Join(errs...)
}

// Merge 返回新表：override 中出现的字段整体替换原列表
func (t *Table) Merge(override *Table) *Table {
	out := &Table{Version: t.Version, Platform: t.Platform, Fields: Set{}}
	for f, list := range t.Fields {
		out.Fields[f] = append([]string(nil), list...)
	}
	if override == nil {
		return out
	}
	if override.Version > out.Version {
		out.Version = override.Version
	}
	for f, list := range override.Fields {
		if len(list) > 0 {
			out.Fields[f] = append([]string(nil), list...)
		}
	}
	return out
}

func isKnown(f Field) bool {
	for _, k := range KnownFields {
		if k == f {
			return true
		}
	}
	return false
}

func clean(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

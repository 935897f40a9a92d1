package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auto-blog/publisher/browser/browsertest"
	"github.com/auto-blog/publisher/selector"
)

func testTable() *selector.Table {
	return selector.MustParse([]byte(`
version: 1
platform: demo
fields:
  titleInput: ["textarea.title"]
  editorBody: ["div.editor"]
  writeButton: ["text=Write", "button.new"]
`))
}

func TestManager(t *testing.T) {
	a := &Descriptor{ID: "zhihu", DisplayName: "知乎"}
	b := &Descriptor{ID: "x", DisplayName: "X"}
	m := NewManager(a, b)

	got, err := m.Get("ZHIHU")
	require.NoError(t, err)
	assert.Equal(t, "知乎", got.Name())

	_, err = m.Get("medium")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x, zhihu")

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "x", list[0].Tag())
}

func TestDescriptorDefaults(t *testing.T) {
	d := &Descriptor{DraftKey: "ControlOrMeta+S"}
	assert.Equal(t, []selector.Field{selector.TitleInput, selector.EditorBody}, d.Required())
	assert.Equal(t, "ControlOrMeta+S", d.Shortcut(false))
	assert.Empty(t, d.Shortcut(true))
	assert.Nil(t, d.PublishedURL())
}

func TestBeforeEditorClicksWriteButton(t *testing.T) {
	page := browsertest.NewFakePage("https://example.com").Show("button.new")
	env := Env{Page: page, Table: testTable(), Resolver: selector.Resolver{Timeout: time.Millisecond}}

	require.NoError(t, (&Descriptor{}).BeforeEditor(context.Background(), env))
	assert.Equal(t, 1, page.Count("click", "button.new"))
	assert.Zero(t, page.Count("wait", "div.editor"))
}

func TestClickIfPresentMissing(t *testing.T) {
	page := browsertest.NewFakePage("https://example.com")
	env := Env{Page: page, Table: testTable(), Resolver: selector.Resolver{Timeout: time.Millisecond}}

	clicked, err := ClickIfPresent(context.Background(), env, selector.WriteButton)
	require.NoError(t, err)
	assert.False(t, clicked)

	clicked, err = ClickIfPresent(context.Background(), env, selector.DraftButton)
	require.NoError(t, err)
	assert.False(t, clicked)
	assert.Zero(t, page.Count("click"))
}

package zhihu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auto-blog/publisher/browser/browsertest"
	"github.com/auto-blog/publisher/login"
	"github.com/auto-blog/publisher/platform"
	"github.com/auto-blog/publisher/selector"
)

func TestSelectorsValid(t *testing.T) {
	p := New()
	require.NoError(t, p.Selectors().Validate(p.Required()...))
	assert.Equal(t, "知乎", p.Name())
}

func TestLoginPatterns(t *testing.T) {
	g := &login.Gate{Patterns: New().LoginPatterns()}
	assert.True(t, g.IsLoginURL("https://www.zhihu.com/signin?next=%2Fwrite"))
	assert.False(t, g.IsLoginURL(ComposeURL))
}

func TestPublishedURL(t *testing.T) {
	re := New().PublishedURL()
	assert.True(t, re.MatchString("https://zhuanlan.zhihu.com/p/6543210987"))
	assert.False(t, re.MatchString("https://zhuanlan.zhihu.com/p/6543210987/edit"))
	assert.False(t, re.MatchString(ComposeURL))
}

func TestAfterContentConfirmsParseDialog(t *testing.T) {
	p := New()
	p.DialogWait = time.Millisecond
	page := browsertest.NewFakePage(ComposeURL).Show("button.Button--link")
	env := platform.Env{Page: page, Table: p.Selectors()}

	require.NoError(t, p.AfterContent(context.Background(), env))
	assert.Equal(t, 1, page.Count("click", "button.Button--link"))
}

func TestAfterContentWithoutDialog(t *testing.T) {
	p := New()
	p.DialogWait = time.Millisecond
	page := browsertest.NewFakePage(ComposeURL)
	page.ClickErrs["button.Button--link"] = errors.New("detached")
	env := platform.Env{Page: page, Table: p.Selectors(), Resolver: selector.Resolver{}}

	require.NoError(t, p.AfterContent(context.Background(), env))
	assert.Zero(t, page.Count("click"))
}

package cnblogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auto-blog/publisher/login"
)

func TestSelectorsValid(t *testing.T) {
	p := New()
	require.NoError(t, p.Selectors().Validate(p.Required()...))
	assert.Equal(t, Tag, p.Selectors().Platform)
}

func TestLoginAndPublishedURL(t *testing.T) {
	p := New()
	g := &login.Gate{Patterns: p.LoginPatterns()}
	assert.True(t, g.IsLoginURL("https://account.cnblogs.com/signin?returnUrl=https%3A%2F%2Fi.cnblogs.com%2F"))
	assert.False(t, g.IsLoginURL(ComposeURL))

	assert.True(t, p.PublishedURL().MatchString("https://i.cnblogs.com/posts/edit-done;postId=17890123"))
	assert.False(t, p.PublishedURL().MatchString(ComposeURL))
}

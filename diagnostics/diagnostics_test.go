package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auto-blog/publisher/browser"
	"github.com/auto-blog/publisher/browser/browsertest"
)

func TestCaptureFailureWritesScreenshotAndBundle(t *testing.T) {
	dir := t.TempDir()
	page := browsertest.NewFakePage("https://x.com/compose/articles")
	r := NewReporter(dir, "x")

	cause := browser.SelectorExhaustedError{Field: "editorBody", Tried: []string{"a", "b"}}
	b := r.CaptureFailure(context.Background(), page, cause, "EditorReady")

	assert.Equal(t, filepath.Join(dir, ScreenshotName), b.ScreenshotPath)
	assert.FileExists(t, b.ScreenshotPath)
	assert.Equal(t, "SelectorExhaustedError", b.ErrorClass)
	assert.Equal(t, "EditorReady", b.Stage)
	assert.Equal(t, "https://x.com/compose/articles", b.URL)
	assert.NotEmpty(t, b.RunID)

	data, err := os.ReadFile(filepath.Join(dir, BundleName))
	require.NoError(t, err)
	var got Bundle
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, b.RunID, got.RunID)
	assert.Contains(t, got.ErrorMessage, "a | b")
}

func TestCaptureFailureToleratesScreenshotError(t *testing.T) {
	dir := t.TempDir()
	page := browsertest.NewFakePage("about:blank")
	page.ShotErr = errors.New("target closed")

	b := NewReporter(dir, "zhihu").CaptureFailure(context.Background(), page, errors.New("boom"), "Navigated")
	assert.Empty(t, b.ScreenshotPath)
	assert.Equal(t, "Error", b.ErrorClass)
	assert.FileExists(t, filepath.Join(dir, BundleName))
}

func TestCaptureFailureWithoutPage(t *testing.T) {
	dir := t.TempDir()
	b := NewReporter(dir, "xhs").CaptureFailure(context.Background(), nil,
		browser.BrowserLaunchError{Reason: "not found"}, "Init")
	assert.Empty(t, b.ScreenshotPath)
	assert.Equal(t, "BrowserLaunchError", b.ErrorClass)
}

func TestCaptureFailureAfterCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewReporter(dir, "x").CaptureFailure(ctx, browsertest.NewFakePage("about:blank"), context.Canceled, "TitleFilled")
	assert.NotEmpty(t, b.ScreenshotPath)
}

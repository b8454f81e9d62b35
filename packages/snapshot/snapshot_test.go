package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<article class="blog-post"><h1>New Beginnings</h1></article>`

func TestManager_Compare_NewSnapshot(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "blog.page.yaml")

	result := NewManager(true).Compare(suiteFile, "article markup", "article", articleHTML)
	require.True(t, result.Passed, result.Message)
	assert.True(t, result.IsNew)

	_, err := os.Stat(filepath.Join(filepath.Dir(suiteFile), SnapshotDir, "blog.page.snap.json"))
	assert.NoError(t, err)
}

func TestManager_Compare_MissingWithoutUpdate(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "blog.page.yaml")

	result := NewManager(false).Compare(suiteFile, "article markup", "article", articleHTML)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "--update-snapshots")
}

func TestManager_Compare_Match(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "blog.page.yaml")
	require.True(t, NewManager(true).Compare(suiteFile, "s", "article", articleHTML).Passed)

	// a fresh manager reads from disk
	result := NewManager(false).Compare(suiteFile, "s", "article", articleHTML)
	assert.True(t, result.Passed, result.Message)
	assert.Equal(t, articleHTML, result.Expected)
}

func TestManager_Compare_Mismatch(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "blog.page.yaml")
	require.True(t, NewManager(true).Compare(suiteFile, "s", "article", articleHTML).Passed)

	changed := `<article class="blog-post"><h1>Old Beginnings</h1></article>`
	result := NewManager(false).Compare(suiteFile, "s", "article", changed)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "snapshot mismatch: first difference at offset 31")
	assert.Contains(t, result.Message, `"New Beginnings</h1></article>"`)

	updater := NewManager(true)
	result = updater.Compare(suiteFile, "s", "article", changed)
	assert.True(t, result.Passed)
	assert.True(t, result.WasUpdated)

	result = NewManager(false).Compare(suiteFile, "s", "article", changed)
	assert.True(t, result.Passed)
}

func TestManager_Compare_KeysAreScopedByScenario(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "blog.page.yaml")
	m := NewManager(true)
	require.True(t, m.Compare(suiteFile, "a", "x", "<p>a</p>").Passed)
	require.True(t, m.Compare(suiteFile, "b", "x", "<p>b</p>").Passed)

	strict := NewManager(false)
	assert.True(t, strict.Compare(suiteFile, "a", "x", "<p>a</p>").Passed)
	assert.True(t, strict.Compare(suiteFile, "b", "x", "<p>b</p>").Passed)
}

func TestManager_Compare_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	suiteFile := filepath.Join(dir, "blog.page.yaml")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, SnapshotDir), 0o755))
	require.NoError(t, os.WriteFile(FilePath(suiteFile), []byte("{not json"), 0o644))

	result := NewManager(false).Compare(suiteFile, "s", "x", "<p></p>")
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "failed to load snapshots")
}

func TestFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("suites", SnapshotDir, "home.page.snap.json"), FilePath(filepath.Join("suites", "home.page.yaml")))
}

package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGitBinary(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func TestIsGitRepo(t *testing.T) {
	requireGitBinary(t)
	tr := newTestRepo(t)
	tr.commit("alice", "initial")

	sub := filepath.Join(tr.dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	assert.True(t, IsGitRepo(tr.dir))
	assert.True(t, IsGitRepo(sub))
	assert.False(t, IsGitRepo(t.TempDir()))
	assert.False(t, IsGitRepo("/nonexistent/path/for/revlog"))
}

func TestGetRepoRoot(t *testing.T) {
	requireGitBinary(t)
	tr := newTestRepo(t)
	tr.commit("alice", "initial")

	sub := filepath.Join(tr.dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := GetRepoRoot(sub)
	require.NoError(t, err)

	// macOS temp dirs are symlinks.
	want, _ := filepath.EvalSymlinks(tr.dir)
	got, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, want, got)

	_, err = GetRepoRoot(t.TempDir())
	assert.Error(t, err)
}

func TestGetCurrentBranch(t *testing.T) {
	requireGitBinary(t)
	tr := newTestRepo(t)
	tr.commit("alice", "initial")

	branch, err := GetCurrentBranch(tr.dir)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	_, err = GetCurrentBranch(t.TempDir())
	assert.Error(t, err)
}

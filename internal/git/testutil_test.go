package git

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// testRepo is a throwaway repository built with go-git.
type testRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
	when time.Time
	n    int
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	r, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return &testRepo{
		t:    t,
		dir:  dir,
		repo: r,
		when: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// commit writes a new file and commits it. Each commit is one minute newer
// than the previous one.
func (tr *testRepo) commit(author, message string) CommitID {
	tr.t.Helper()
	tr.n++
	tr.when = tr.when.Add(time.Minute)

	name := fmt.Sprintf("file-%03d.txt", tr.n)
	require.NoError(tr.t, os.WriteFile(filepath.Join(tr.dir, name), []byte(message), 0o644))

	wt, err := tr.repo.Worktree()
	require.NoError(tr.t, err)
	_, err = wt.Add(name)
	require.NoError(tr.t, err)

	sig := &object.Signature{Name: author, Email: author + "@example.com", When: tr.when}
	h, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(tr.t, err)
	return CommitID(h)
}

func (tr *testRepo) lightweightTag(name string, id CommitID) {
	tr.t.Helper()
	_, err := tr.repo.CreateTag(name, plumbing.Hash(id), nil)
	require.NoError(tr.t, err)
}

func (tr *testRepo) annotatedTag(name string, id CommitID, message string) {
	tr.t.Helper()
	_, err := tr.repo.CreateTag(name, plumbing.Hash(id), &gogit.CreateTagOptions{
		Tagger:  &object.Signature{Name: "releaser", Email: "r@example.com", When: tr.when},
		Message: message,
	})
	require.NoError(tr.t, err)
}

func (tr *testRepo) open() *Repository {
	tr.t.Helper()
	r, err := Open(tr.dir)
	require.NoError(tr.t, err)
	return r
}

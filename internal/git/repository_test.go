package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFromSubdirectory(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("alice", "initial")
	sub := filepath.Join(tr.dir, "deep", "er")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	r, err := Open(sub)
	require.NoError(t, err)
	assert.Equal(t, tr.dir, r.Path())
	assert.Equal(t, filepath.Join(tr.dir, ".git"), r.GitDir())

	_, err = Open(t.TempDir())
	assert.Error(t, err)
}

func TestResolveKeepsOrderAndUsesSummary(t *testing.T) {
	tr := newTestRepo(t)
	first := tr.commit("alice", "Fix bug\n\nLonger body text.")
	second := tr.commit("bob", "Add feature")
	r := tr.open()

	infos, err := r.Resolve([]CommitID{second, first})
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, second, infos[0].ID)
	assert.Equal(t, "bob", infos[0].Author)
	assert.Equal(t, "Add feature", infos[0].Message)

	assert.Equal(t, first, infos[1].ID)
	assert.Equal(t, "Fix bug", infos[1].Message)
	assert.Less(t, infos[1].Time, infos[0].Time)

	empty, err := r.Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResolveUnknownCommit(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("alice", "initial")

	var missing CommitID
	missing[0] = 0xde
	_, err := tr.open().Resolve([]CommitID{missing})
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestLoadTags(t *testing.T) {
	tr := newTestRepo(t)
	c1 := tr.commit("alice", "one")
	c2 := tr.commit("alice", "two")
	tr.commit("alice", "three")

	tr.lightweightTag("v1.0.0", c1)
	tr.annotatedTag("v2.0.0", c2, "Second release\n")
	tr.lightweightTag("stable", c2)

	tags, err := tr.open().LoadTags()
	require.NoError(t, err)
	require.Len(t, tags, 2)

	assert.Equal(t, CommitTags{{Name: "v1.0.0"}}, tags[c1])
	assert.Equal(t, []string{"stable", "v2.0.0"}, tags[c2].Names())
	assert.Equal(t, "Second release", tags[c2][1].Annotation)
	assert.Equal(t, "stable v2.0.0", tags[c2].String())
}

func TestLoadTagsEmptyRepo(t *testing.T) {
	tr := newTestRepo(t)
	tags, err := tr.open().LoadTags()
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestHead(t *testing.T) {
	tr := newTestRepo(t)
	r := tr.open()

	head, err := r.Head()
	require.NoError(t, err)
	assert.True(t, head.IsZero(), "unborn HEAD")

	id := tr.commit("alice", "initial")
	head, err = r.Head()
	require.NoError(t, err)
	assert.Equal(t, id, head)
}

func TestBranchName(t *testing.T) {
	tr := newTestRepo(t)
	id := tr.commit("alice", "initial")
	r := tr.open()

	name, err := r.BranchName()
	require.NoError(t, err)
	assert.Equal(t, "master", name)

	wt, err := tr.repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature/x"),
		Create: true,
	}))
	name, err = r.BranchName()
	require.NoError(t, err)
	assert.Equal(t, "feature/x", name)

	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Hash: plumbing.Hash(id)}))
	name, err = r.BranchName()
	require.NoError(t, err)
	assert.Equal(t, id.Short(), name)
}

func TestWalkNewestFirst(t *testing.T) {
	tr := newTestRepo(t)
	var ids []CommitID
	for _, msg := range []string{"a", "b", "c", "d"} {
		ids = append(ids, tr.commit("alice", msg))
	}
	r := tr.open()
	head, err := r.Head()
	require.NoError(t, err)

	var got []CommitID
	require.NoError(t, r.Walk(context.Background(), head, func(id CommitID) error {
		got = append(got, id)
		return nil
	}))
	assert.Equal(t, []CommitID{ids[3], ids[2], ids[1], ids[0]}, got)
}

func TestWalkStopsEarly(t *testing.T) {
	tr := newTestRepo(t)
	for _, msg := range []string{"a", "b", "c"} {
		tr.commit("alice", msg)
	}
	r := tr.open()
	head, _ := r.Head()

	n := 0
	err := r.Walk(context.Background(), head, func(CommitID) error {
		n++
		if n == 2 {
			return ErrStopWalk
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	boom := errors.New("boom")
	err = r.Walk(context.Background(), head, func(CommitID) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWalkHonoursContext(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("alice", "a")
	r := tr.open()
	head, _ := r.Head()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Walk(ctx, head, func(CommitID) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, r.Walk(context.Background(), CommitID{}, func(CommitID) error {
		t.Fatal("zero id walks nothing")
		return nil
	}))
}

package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// ErrStopWalk can be returned from a Walk callback to end the walk early
// without an error.
var ErrStopWalk = storer.ErrStop

// Repository is an opened repository. Object reads are serialised; go-git's
// filesystem storage is not safe for concurrent readers.
type Repository struct {
	repo   *gogit.Repository
	path   string
	gitDir string

	mu sync.Mutex
}

// Open opens the repository containing path, searching parent directories for
// the .git directory.
func Open(path string) (*Repository, error) {
	r, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	repo := &Repository{repo: r, path: path}
	if wt, err := r.Worktree(); err == nil {
		repo.path = wt.Filesystem.Root()
	}
	if fs, ok := r.Storer.(*filesystem.Storage); ok {
		repo.gitDir = fs.Filesystem().Root()
	}
	return repo, nil
}

// Path is the work tree root, or the path Open was given for bare
// repositories.
func (r *Repository) Path() string { return r.path }

// GitDir is the directory holding HEAD and refs. Empty for non-filesystem
// storage.
func (r *Repository) GitDir() string { return r.gitDir }

// Resolve loads the commits for ids, in the same order.
func (r *Repository) Resolve(ids []CommitID) ([]CommitInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CommitInfo, 0, len(ids))
	for _, id := range ids {
		c, err := r.repo.CommitObject(plumbing.Hash(id))
		if err != nil {
			return nil, fmt.Errorf("resolve commit %s: %w", id.Short(), err)
		}
		out = append(out, commitInfo(c))
	}
	return out, nil
}

func commitInfo(c *object.Commit) CommitInfo {
	return CommitInfo{
		ID:      CommitID(c.Hash),
		Author:  c.Author.Name,
		Message: summary(c.Message),
		Time:    c.Committer.When.Unix(),
	}
}

// LoadTags reads every tag that points at a commit, lightweight or annotated.
func (r *Repository) LoadTags() (Tags, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer refs.Close()

	tags := make(Tags)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		tag := Tag{Name: ref.Name().Short()}
		target := ref.Hash()

		obj, err := r.repo.TagObject(target)
		switch {
		case err == nil:
			c, err := obj.Commit()
			if err != nil {
				// Annotated tag of a tree or blob.
				return nil
			}
			target = c.Hash
			tag.Annotation = strings.TrimSpace(obj.Message)
		case errors.Is(err, plumbing.ErrObjectNotFound):
			if _, err := r.repo.CommitObject(target); err != nil {
				return nil
			}
		default:
			return fmt.Errorf("read tag %s: %w", tag.Name, err)
		}

		id := CommitID(target)
		tags[id] = append(tags[id], tag)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ts := range tags {
		slices.SortFunc(ts, func(a, b Tag) int { return strings.Compare(a.Name, b.Name) })
	}
	return tags, nil
}

// Head returns the commit HEAD points at. An unborn HEAD (no commits yet)
// yields the zero id and no error.
func (r *Repository) Head() (CommitID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return CommitID{}, nil
	}
	if err != nil {
		return CommitID{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	return CommitID(ref.Hash()), nil
}

// BranchName returns the checked out branch, or the short id when HEAD is
// detached.
func (r *Repository) BranchName() (string, error) {
	r.mu.Lock()
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	r.mu.Unlock()
	if err != nil {
		// go-git cannot read every HEAD layout (e.g. reftable); ask git.
		return GetCurrentBranch(r.path)
	}

	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return CommitID(ref.Hash()).Short(), nil
}

// Walk calls fn for every commit reachable from from, newest committer time
// first. Returning ErrStopWalk from fn ends the walk cleanly.
func (r *Repository) Walk(ctx context.Context, from CommitID, fn func(CommitID) error) error {
	if from.IsZero() {
		return nil
	}

	r.mu.Lock()
	iter, err := r.repo.Log(&gogit.LogOptions{
		From:  plumbing.Hash(from),
		Order: gogit.LogOrderCommitterTime,
	})
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("walk from %s: %w", from.Short(), err)
	}
	defer iter.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		c, err := iter.Next()
		r.mu.Unlock()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk from %s: %w", from.Short(), err)
		}

		if err := fn(CommitID(c.Hash)); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
}

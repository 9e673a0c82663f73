// Package git reads commit history, tags and branch state of a repository.
// Object access goes through go-git; a few cheap questions about the working
// directory are answered by the git binary.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// IsGitRepo reports whether dir is inside a git work tree or git dir.
func IsGitRepo(dir string) bool {
	return exec.Command("git", "-C", dir, "rev-parse", "--git-dir").Run() == nil
}

// GetRepoRoot returns the top-level directory of the work tree containing dir.
func GetRepoRoot(dir string) (string, error) {
	out, err := revParse(dir, "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return out, nil
}

// GetCurrentBranch returns the checked out branch name, or "HEAD" when
// detached.
func GetCurrentBranch(dir string) (string, error) {
	out, err := revParse(dir, "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return out, nil
}

func revParse(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", dir, "rev-parse"}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Package git drives a local Git working copy through the git CLI.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/yaklabco/snowhook/internal/ish"
)

// ErrNotGitRepo is returned when the directory is not inside a Git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// ErrDirtyWorkTree is returned when the working copy has uncommitted changes.
var ErrDirtyWorkTree = errors.New("working tree has uncommitted changes")

// ErrPushRejected is returned when the remote refuses a push because the
// local branch is behind.
var ErrPushRejected = errors.New("push rejected by remote")

// gitEnv keeps git from blocking on an interactive credential prompt.
//
//nolint:gochecknoglobals // fixed environment overlay for every git invocation
var gitEnv = map[string]string{
	"GIT_TERMINAL_PROMPT": "0",
}

// rejectionMarkers are substrings of `git push` stderr that indicate the
// remote ref moved and a rebase may fix the push.
//
//nolint:gochecknoglobals // package-level lookup table
var rejectionMarkers = []string{
	"[rejected]",
	"non-fast-forward",
	"fetch first",
}

// Repo holds information about a Git working copy.
type Repo struct {
	// Dir is the absolute directory commands run in. It may be a
	// subdirectory of RootDir.
	Dir string

	// RootDir is the absolute path to the repository root.
	RootDir string

	// GitDir is the absolute path to the .git directory (or gitdir for worktrees).
	GitDir string
}

// Open locates the Git repository containing dir.
func Open(ctx context.Context, dir string) (*Repo, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotGitRepo, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotGitRepo, absDir)
	}

	rootDir, err := gitOutput(ctx, absDir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, absDir)
	}

	gitDir, err := gitOutput(ctx, absDir, "rev-parse", "--git-dir")
	if err != nil {
		return nil, fmt.Errorf("finding git directory: %w", err)
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(absDir, gitDir)
	}

	// Resolve symlinks to get canonical paths (important on macOS where
	// /var is a symlink to /private/var)
	for _, p := range []*string{&absDir, &rootDir, &gitDir} {
		resolved, err := filepath.EvalSymlinks(*p)
		if err != nil {
			return nil, fmt.Errorf("resolving symlinks for %s: %w", *p, err)
		}
		*p = filepath.Clean(resolved)
	}

	return &Repo{
		Dir:     absDir,
		RootDir: rootDir,
		GitDir:  gitDir,
	}, nil
}

// gitOutput runs a git command in dir and returns the trimmed stdout.
func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	return ish.Output(ctx, dir, gitEnv, "git", args...)
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return gitOutput(ctx, r.Dir, args...)
}

// run is git for commands whose stdout is of no interest.
func (r *Repo) run(ctx context.Context, args ...string) error {
	return ish.Run(ctx, r.Dir, gitEnv, "git", args...)
}

// Status returns the porcelain status lines for the whole working copy.
func (r *Repo) Status(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	return lo.Compact(strings.Split(out, "\n")), nil
}

// EnsureClean returns ErrDirtyWorkTree when the working copy has staged,
// unstaged or untracked changes.
func (r *Repo) EnsureClean(ctx context.Context) error {
	lines, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		return fmt.Errorf("%w in %s (%d entries)", ErrDirtyWorkTree, r.RootDir, len(lines))
	}
	return nil
}

// Head returns the commit id HEAD points at.
func (r *Repo) Head(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return out, nil
}

// StageAll stages every change below Dir.
func (r *Repo) StageAll(ctx context.Context) error {
	if err := r.run(ctx, "add", "."); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// SnapshotIndex records the current index as a tree object and returns its
// id, for RestoreIndex.
func (r *Repo) SnapshotIndex(ctx context.Context) (string, error) {
	tree, err := r.git(ctx, "write-tree")
	if err != nil {
		return "", fmt.Errorf("git write-tree: %w", err)
	}
	return tree, nil
}

// RestoreIndex resets the index to a tree from SnapshotIndex. The working
// tree is left untouched.
func (r *Repo) RestoreIndex(ctx context.Context, tree string) error {
	if err := r.run(ctx, "read-tree", tree); err != nil {
		return fmt.Errorf("git read-tree %s: %w", tree, err)
	}
	return nil
}

// Commit records the index with message and a Signed-off-by trailer.
func (r *Repo) Commit(ctx context.Context, message string) error {
	if err := r.run(ctx, "commit", "--signoff", "--message", message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// Push pushes the current branch to its configured upstream. A rejection
// because the remote moved is reported as ErrPushRejected.
func (r *Repo) Push(ctx context.Context) error {
	err := r.run(ctx, "push")
	if err == nil {
		return nil
	}
	var exitErr *ish.ExitError
	if errors.As(err, &exitErr) && isRejection(exitErr.Stderr) {
		return fmt.Errorf("%w: %w", ErrPushRejected, err)
	}
	return fmt.Errorf("git push: %w", err)
}

// PullRebase brings the current branch up to date with its upstream,
// replaying local commits on top.
func (r *Repo) PullRebase(ctx context.Context) error {
	if err := r.run(ctx, "pull", "--rebase", "--quiet"); err != nil {
		// Leave the working copy usable for the next invocation.
		_ = r.run(ctx, "rebase", "--abort")
		return fmt.Errorf("git pull --rebase: %w", err)
	}
	return nil
}

func isRejection(stderr string) bool {
	lower := strings.ToLower(stderr)
	return lo.SomeBy(rejectionMarkers, func(marker string) bool {
		return strings.Contains(lower, marker)
	})
}

// lockFileName is the advisory lock file created inside GitDir.
const lockFileName = "snowhook-republish.lock"

// LockPath returns the path of the advisory lock that serialises writers of
// this working copy.
func (r *Repo) LockPath() string {
	return filepath.Join(r.GitDir, lockFileName)
}

// Package gittest builds throwaway Git repositories for tests.
package gittest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yaklabco/snowhook/internal/ish"
)

// Fixture is a working copy cloned from a bare remote, both under a temp dir.
type Fixture struct {
	// Work is the cloned working copy with an upstream configured.
	Work string

	// Remote is the bare repository Work pushes to.
	Remote string

	root string
	t    testing.TB
}

// New creates a bare remote with one commit on main and a clone of it.
func New(t testing.TB) *Fixture {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}

	seed := filepath.Join(root, "seed")
	remote := filepath.Join(root, "remote.git")
	work := filepath.Join(root, "work")

	Run(t, root, "init", "--quiet", "--initial-branch=main", seed)
	Configure(t, seed)
	WriteFile(t, filepath.Join(seed, "README"), "logs\n")
	Run(t, seed, "add", ".")
	Run(t, seed, "commit", "--quiet", "--message", "Initial commit")
	Run(t, root, "clone", "--quiet", "--bare", seed, remote)
	Run(t, root, "clone", "--quiet", remote, work)
	Configure(t, work)

	return &Fixture{Work: work, Remote: remote, root: root, t: t}
}

// Clone makes another working copy of the remote, as a concurrent writer would have.
func (f *Fixture) Clone(name string) string {
	f.t.Helper()

	dir := filepath.Join(f.root, name)
	Run(f.t, f.root, "clone", "--quiet", f.Remote, dir)
	Configure(f.t, dir)
	return dir
}

// RemoteFiles lists the files at the tip of main in the remote.
func (f *Fixture) RemoteFiles() []string {
	f.t.Helper()

	out := Output(f.t, f.Remote, "ls-tree", "--name-only", "-r", "main")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// RemoteHeadMessage returns the full message of the remote's main tip.
func (f *Fixture) RemoteHeadMessage() string {
	f.t.Helper()

	return Output(f.t, f.Remote, "log", "-1", "--format=%B", "main")
}

// Configure sets a committer identity so commits work on CI machines.
func Configure(t testing.TB, dir string) {
	t.Helper()

	Run(t, dir, "config", "user.name", "Snow Hook")
	Run(t, dir, "config", "user.email", "snowhook@example.org")
	Run(t, dir, "config", "commit.gpgsign", "false")
}

// Run executes git in dir and fails the test on error.
func Run(t testing.TB, dir string, args ...string) {
	t.Helper()
	_ = Output(t, dir, args...)
}

// Output executes git in dir and returns trimmed stdout.
func Output(t testing.TB, dir string, args ...string) string {
	t.Helper()

	out, err := ish.Output(context.Background(), dir, nil, "git", args...)
	if err != nil {
		t.Fatalf("git %s: %v", strings.Join(args, " "), err)
	}
	return out
}

// WriteFile writes content to path, failing the test on error.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// CommitFile writes, commits and pushes a file from dir.
func CommitFile(t testing.TB, dir, name, content string) {
	t.Helper()

	CommitFileLocal(t, dir, name, content)
	Run(t, dir, "push", "--quiet")
}

// CommitFileLocal writes and commits a file in dir without pushing.
func CommitFileLocal(t testing.TB, dir, name, content string) {
	t.Helper()

	WriteFile(t, filepath.Join(dir, name), content)
	Run(t, dir, "add", name)
	Run(t, dir, "commit", "--quiet", "--message", "Add "+name)
}

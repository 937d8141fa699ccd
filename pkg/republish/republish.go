// Package republish copies a CI log into a Git working copy, publishes it by
// pushing, and points the test result at the published copy.
package republish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yaklabco/snowhook/internal/git"
	"github.com/yaklabco/snowhook/internal/lock"
	"github.com/yaklabco/snowhook/internal/log"
	"github.com/yaklabco/snowhook/pkg/testresult"
)

// ErrPublish is wrapped by every failure after the log was fetched.
var ErrPublish = errors.New("publishing log failed")

// Publish steps, as reported in PublishError.
const (
	StepOpen     = "open"
	StepLock     = "lock"
	StepValidate = "validate"
	StepSync     = "sync"
	StepWrite    = "write"
	StepStage    = "stage"
	StepCommit   = "commit"
	StepPush     = "push"
)

// logFileExt is appended to the generated token.
const logFileExt = ".log"

// logFilePerm is the permission mode for written log files.
const logFilePerm = 0o644

// PublishError identifies the step of the publish sequence that failed.
type PublishError struct {
	Step string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPublish, e.Step, e.Err)
}

func (e *PublishError) Unwrap() []error {
	return []error{ErrPublish, e.Err}
}

// Fetcher downloads the log behind a target URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Repository is the subset of *git.Repo the republisher needs.
type Repository interface {
	EnsureClean(ctx context.Context) error
	PullRebase(ctx context.Context) error
	SnapshotIndex(ctx context.Context) (string, error)
	StageAll(ctx context.Context) error
	RestoreIndex(ctx context.Context, tree string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
}

// Config holds the republisher settings.
type Config struct {
	// RepoDir is the working copy directory logs are written into.
	RepoDir string

	// URLPrefix is where RepoDir is served once pushed.
	URLPrefix string

	// CommitMessage is used for every log commit.
	CommitMessage string

	// RequireClean refuses to write into a working copy with pending changes.
	RequireClean bool

	// SyncBeforeWrite pulls (with rebase) before writing the log.
	SyncBeforeWrite bool

	// PushAttempts is how many times a push rejected for being behind is
	// tried, with a pull --rebase in between. Values below 1 mean 1.
	PushAttempts int

	// LockTimeout bounds the wait for the working copy lock. Zero waits
	// until the context is done.
	LockTimeout time.Duration
}

// Republisher runs the fetch, write, commit and push sequence.
type Republisher struct {
	cfg     Config
	fetcher Fetcher

	// OpenRepo opens the working copy. Defaults to git.Open.
	OpenRepo func(ctx context.Context, dir string) (Repository, string, error)

	// NewLocker returns the lock guarding the working copy. Defaults to a
	// lock file inside the git directory.
	NewLocker func(lockPath string) lock.Locker

	// NewToken generates the unique part of the log file name.
	NewToken func() string

	// Preflight, when set, runs after a record is known to need
	// republishing and before anything is fetched. Records without a
	// target URL never reach it.
	Preflight func() error
}

// New creates a Republisher using the real git CLI.
func New(cfg Config, fetcher Fetcher) *Republisher {
	if cfg.PushAttempts < 1 {
		cfg.PushAttempts = 1
	}
	return &Republisher{
		cfg:     cfg,
		fetcher: fetcher,
		OpenRepo: func(ctx context.Context, dir string) (Repository, string, error) {
			repo, err := git.Open(ctx, dir)
			if err != nil {
				return nil, "", err
			}
			return repo, repo.LockPath(), nil
		},
		NewLocker: func(lockPath string) lock.Locker {
			return lock.NewFile(lockPath, cfg.LockTimeout)
		},
		NewToken: uuid.NewString,
	}
}

// PublishedURL returns the external address of fileName.
func PublishedURL(prefix, fileName string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + fileName
}

// Run reads a test result from in and, when it carries a target URL,
// republishes the log and writes the rewritten result to out. A result
// without a target URL produces no output and no error.
func (r *Republisher) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	rec, err := testresult.Decode(in)
	if err != nil {
		return fmt.Errorf("reading test result: %w", err)
	}

	target, ok, err := rec.TargetURL()
	if err != nil {
		return err
	}
	if !ok {
		slog.DebugContext(ctx, "no target URL, nothing to republish")
		return nil
	}

	if r.Preflight != nil {
		if err := r.Preflight(); err != nil {
			return err
		}
	}

	published, err := r.Republish(ctx, target)
	if err != nil {
		return err
	}

	rec.SetTargetURL(published)
	return testresult.Encode(out, rec)
}

// Republish fetches target and publishes it, returning the published URL.
func (r *Republisher) Republish(ctx context.Context, target string) (string, error) {
	body, err := r.fetcher.Get(ctx, target)
	if err != nil {
		return "", err //nolint:wrapcheck // fetch errors already wrap fetch.ErrFetch
	}

	repo, lockPath, err := r.OpenRepo(ctx, r.cfg.RepoDir)
	if err != nil {
		return "", &PublishError{Step: StepOpen, Err: err}
	}

	unlock, err := r.NewLocker(lockPath).Lock(ctx)
	if err != nil {
		return "", &PublishError{Step: StepLock, Err: err}
	}
	defer func() {
		if err := unlock(); err != nil {
			slog.WarnContext(ctx, "releasing repository lock", slog.Any(log.Error, err))
		}
	}()

	if err := r.prepare(ctx, repo); err != nil {
		return "", err
	}

	fileName := r.NewToken() + logFileExt
	if err := r.publish(ctx, repo, fileName, body); err != nil {
		return "", err
	}

	published := PublishedURL(r.cfg.URLPrefix, fileName)
	slog.InfoContext(ctx, "republished log",
		slog.String(log.URL, published),
		slog.Int(log.Bytes, len(body)),
	)
	return published, nil
}

// prepare checks the working copy is usable before anything is written.
func (r *Republisher) prepare(ctx context.Context, repo Repository) error {
	if r.cfg.RequireClean {
		if err := repo.EnsureClean(ctx); err != nil {
			return &PublishError{Step: StepValidate, Err: err}
		}
	}
	if r.cfg.SyncBeforeWrite {
		if err := repo.PullRebase(ctx); err != nil {
			return &PublishError{Step: StepSync, Err: err}
		}
	}
	return nil
}

// publish writes the log, commits it and pushes. A failure before the commit
// exists puts the index back as it was and removes the file; a failed push
// leaves the commit in place so a later push carries it.
func (r *Republisher) publish(ctx context.Context, repo Repository, fileName string, body []byte) error {
	path := filepath.Join(r.cfg.RepoDir, fileName)

	index, err := repo.SnapshotIndex(ctx)
	if err != nil {
		return &PublishError{Step: StepStage, Err: err}
	}

	if err := writeNew(path, body); err != nil {
		return &PublishError{Step: StepWrite, Err: err}
	}
	slog.DebugContext(ctx, "wrote log", slog.String(log.Path, path), slog.Int(log.Bytes, len(body)))

	if err := repo.StageAll(ctx); err != nil {
		r.discard(ctx, repo, path, index)
		return &PublishError{Step: StepStage, Err: err}
	}
	if err := repo.Commit(ctx, r.cfg.CommitMessage); err != nil {
		r.discard(ctx, repo, path, index)
		return &PublishError{Step: StepCommit, Err: err}
	}

	if err := r.push(ctx, repo); err != nil {
		return &PublishError{Step: StepPush, Err: err}
	}
	return nil
}

func (r *Republisher) push(ctx context.Context, repo Repository) error {
	var err error
	for attempt := 1; attempt <= r.cfg.PushAttempts; attempt++ {
		err = repo.Push(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, git.ErrPushRejected) || attempt == r.cfg.PushAttempts {
			return err
		}

		slog.WarnContext(ctx, "push rejected, rebasing and retrying",
			slog.Int(log.Attempt, attempt),
			slog.Any(log.Error, err),
		)
		if err := repo.PullRebase(ctx); err != nil {
			return err
		}
	}
	return err
}

// discard undoes a stage or commit that failed. `git add .` may have staged
// more than the log when the working copy was not clean, so the whole index
// goes back to its snapshot.
func (r *Republisher) discard(ctx context.Context, repo Repository, path, index string) {
	if err := repo.RestoreIndex(ctx, index); err != nil {
		slog.WarnContext(ctx, "restoring index after failure", slog.String(log.Path, path), slog.Any(log.Error, err))
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "removing log after failure", slog.String(log.Path, path), slog.Any(log.Error, err))
	}
}

// writeNew writes body to path, failing if path already exists.
func writeNew(path string, body []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, logFilePerm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// Package ish runs external commands with captured output and exit status
// reporting.
package ish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/yaklabco/snowhook/internal/env"
	"github.com/yaklabco/snowhook/internal/log"
)

// ExitError is returned when a command ran but exited non-zero, or could not
// be started at all.
type ExitError struct {
	Cmd    string
	Args   []string
	Dir    string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf(`running "%s %s" failed with exit code %d`, e.Cmd, strings.Join(e.Args, " "), e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitStatus implements the exit-status interface used by the CLI.
func (e *ExitError) ExitStatus() int {
	return e.Code
}

// Exec executes the command in dir, piping its stdin, stdout and stderr to the
// given streams. env is layered on top of the current process environment.
//
// Ran reports if the command ran (rather than was not found or not
// executable). If err == nil, ran is always true.
func Exec(
	ctx context.Context,
	dir string,
	env map[string]string,
	stdin io.Reader,
	stdout, stderr io.Writer,
	cmd string,
	args ...string,
) (bool, error) {
	ran, code, err := run(ctx, dir, env, stdin, stdout, stderr, cmd, args...)
	if err == nil {
		return true, nil
	}
	return ran, &ExitError{
		Cmd:  cmd,
		Args: append([]string{}, args...),
		Dir:  dir,
		Code: code,
		Err:  err,
	}
}

func run(
	ctx context.Context,
	dir string,
	overlay map[string]string,
	stdin io.Reader,
	stdout, stderr io.Writer,
	cmd string,
	args ...string,
) (bool, int, error) {
	theCmd := exec.CommandContext(ctx, cmd, args...)
	theCmd.Dir = dir
	theCmd.Env = env.Merge(overlay)
	theCmd.Stdin = stdin
	theCmd.Stdout = stdout
	theCmd.Stderr = stderr

	start := time.Now()
	err := theCmd.Run()

	slog.DebugContext(ctx, "exec",
		slog.String(log.Cmd, cmd),
		slog.Any(log.Args, args),
		slog.String(log.Dir, dir),
		slog.Duration(log.Duration, time.Since(start)),
		slog.Int(log.Status, ExitStatus(err)),
	)

	return CmdRan(err), ExitStatus(err), err
}

// Output runs the command and returns its trimmed stdout. On failure the
// returned *ExitError carries the command's trimmed stderr.
func Output(ctx context.Context, dir string, env map[string]string, cmd string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	_, err := Exec(ctx, dir, env, nil, &stdout, &stderr, cmd, args...)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			exitErr.Stderr = strings.TrimSpace(stderr.String())
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Run is like Output but discards stdout.
func Run(ctx context.Context, dir string, env map[string]string, cmd string, args ...string) error {
	_, err := Output(ctx, dir, env, cmd, args...)
	return err
}

// CmdRan examines the error to determine if it was generated as a result of a
// command running via os/exec.Command.
func CmdRan(err error) bool {
	if err == nil {
		return true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.Exited()
	}
	return false
}

// ExitStatuser is implemented by errors that carry a process exit status.
type ExitStatuser interface {
	ExitStatus() int
}

// ExitStatus returns the exit status of the error if it is an exec.ExitError
// or if it implements ExitStatus() int. 0 if it is nil or 1 if it is a
// different error.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exit ExitStatuser
	if errors.As(err, &exit) {
		return exit.ExitStatus()
	}
	var e *exec.ExitError
	if errors.As(err, &e) {
		if ex, ok := e.Sys().(ExitStatuser); ok {
			return ex.ExitStatus()
		}
		return e.ExitCode()
	}
	return 1
}

// Package annotate appends a fixed, state-dependent message to the
// description of a test result.
package annotate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/yaklabco/snowhook/internal/log"
	"github.com/yaklabco/snowhook/pkg/testresult"
)

const (
	// SuccessMessage is appended when the result state is "success".
	SuccessMessage = "Woooooooooo!"

	// EncouragingMessage is appended for every other state.
	EncouragingMessage = "We believe in you! Go respin!"
)

// Message returns the suffix for the given state.
func Message(state string) string {
	return lo.Ternary(state == testresult.StateSuccess, SuccessMessage, EncouragingMessage)
}

// Annotate rewrites the description of rec in place. All other fields are
// left untouched.
func Annotate(rec testresult.Record) error {
	state, err := rec.State()
	if err != nil {
		return err
	}
	desc, err := rec.Description()
	if err != nil {
		return err
	}

	rec.SetDescription(strings.TrimSpace(desc + " " + Message(state)))
	return nil
}

// Run decodes a record from in, annotates it and writes it to out. Nothing
// is written when any step fails.
func Run(ctx context.Context, in io.Reader, out io.Writer) error {
	rec, err := testresult.Decode(in)
	if err != nil {
		return fmt.Errorf("reading test result: %w", err)
	}

	if err := Annotate(rec); err != nil {
		return err
	}

	slog.DebugContext(ctx, "annotated test result", slog.Any(log.Description, rec[testresult.KeyDescription]))

	return testresult.Encode(out, rec)
}

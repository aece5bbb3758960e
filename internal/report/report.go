// Package report renders failed batches into the end-of-run error log and
// prints the console summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/bulkload/internal/engine/batch"
)

// logFilePerm is the permission used when creating the error log.
const logFilePerm = 0o600

// Entry is one failed batch as the reporter sees it.
type Entry struct {
	// Number is the 1-based batch sequence index.
	Number int
	Err    error
	Items  any
	At     time.Time
}

// Message returns the error text for the entry.
func (e Entry) Message() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

// Outcome describes what Flush did with the failures.
type Outcome string

const (
	// OutcomeNone means there were no failures to report.
	OutcomeNone Outcome = "none"
	// OutcomeWritten means the error log was written.
	OutcomeWritten Outcome = "written"
	// OutcomeWriteFailed means writing the error log failed and was swallowed.
	OutcomeWriteFailed Outcome = "write_failed"
	// OutcomeNoPath means failures occurred but no log location was configured.
	OutcomeNoPath Outcome = "no_path"
)

// LogWriteError describes a failed error-log write. It is reported, never returned
// from a run.
type LogWriteError struct {
	Path string
	Err  error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("write error log %s: %v", e.Path, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }

// Render formats entries as timestamped blocks separated by a blank line.
// Items that cannot be encoded as JSON are printed with %+v after a note, so
// one bad batch never hides the others.
func Render(entries []Entry) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, fmt.Sprintf("[%s] Error in batch %d: %s\n%s",
			batch.FormatTimestamp(e.At), e.Number, e.Message(), renderItems(e.Items)))
	}
	return strings.Join(blocks, "\n\n")
}

func renderItems(items any) string {
	body, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Sprintf("(items not encodable as JSON: %v)\n%+v", err, items)
	}
	return string(body)
}

// Reporter writes the error log and the console summary.
type Reporter struct {
	// Path is the error log location; empty disables the file.
	Path string
	// Console receives summaries; ErrConsole receives write failures.
	Console    io.Writer
	ErrConsole io.Writer
	// Enabled gates the summaries. Write failures reach ErrConsole regardless.
	Enabled bool
	Logger  zerolog.Logger
}

// Result is what Flush reports back to the run.
type Result struct {
	Outcome Outcome
	// WriteErr is set when Outcome is OutcomeWriteFailed.
	WriteErr *LogWriteError
}

// Flush emits the end-of-run output for entries. It never returns an error:
// write failures are printed, logged, and carried on the Result.
func (r *Reporter) Flush(entries []Entry) Result {
	if len(entries) == 0 {
		return Result{Outcome: OutcomeNone}
	}

	if r.Path == "" {
		r.printf(r.Console, "%s failed to upload. Provide a log file location to record error details.\n",
			pluralBatches(len(entries)))
		return Result{Outcome: OutcomeNoPath}
	}

	if err := r.write(entries); err != nil {
		werr := &LogWriteError{Path: r.Path, Err: err}
		r.Logger.Error().Err(err).Str("path", r.Path).Msg("error log write failed")
		if r.ErrConsole != nil {
			_, _ = fmt.Fprintf(r.ErrConsole, "Failed to write error log to %s: %v\n", r.Path, err)
		}
		return Result{Outcome: OutcomeWriteFailed, WriteErr: werr}
	}

	r.Logger.Info().Str("path", r.Path).Int("failures", len(entries)).Msg("error log written")
	r.printf(r.Console, "%s failed to upload. Error details written to %s\n",
		pluralBatches(len(entries)), r.Path)
	return Result{Outcome: OutcomeWritten}
}

// write replaces the contents of r.Path with the rendered entries.
func (r *Reporter) write(entries []Entry) error {
	return os.WriteFile(r.Path, []byte(Render(entries)), logFilePerm)
}

func (r *Reporter) printf(w io.Writer, format string, args ...any) {
	if !r.Enabled || w == nil {
		return
	}
	_, _ = fmt.Fprintf(w, format, args...)
}

func pluralBatches(n int) string {
	if n == 1 {
		return "1 batch"
	}
	return fmt.Sprintf("%d batches", n)
}

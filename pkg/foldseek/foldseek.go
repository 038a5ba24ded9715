// Package foldseek drives the external structural aligner that reduces a
// folder of structures to its representative set, and copies the chosen
// structures out.
package foldseek

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Defaults for the easy-cluster run.
const (
	DefaultBinary   = "foldseek"
	DefaultCoverage = 0.1
	DefaultListing  = "res_rep_seq.fasta"
)

// ErrAlignerFailed is matched by every *AlignerError.
var ErrAlignerFailed = errors.New("structural aligner failed")

// AlignerError reports a failed aligner run in one folder.
type AlignerError struct {
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *AlignerError) Error() string {
	msg := fmt.Sprintf("aligner failed in %s (exit code %d)", e.Dir, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AlignerError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAlignerFailed}
	}
	return []error{ErrAlignerFailed, e.Err}
}

// Aligner turns a folder of structure files into the names of its
// representative structures.
type Aligner interface {
	Representatives(ctx context.Context, dir string) ([]string, error)
}

// Foldseek runs `foldseek easy-cluster` inside the folder and reads the
// representative listing it leaves behind.
type Foldseek struct {
	Binary   string
	Coverage float64
	Listing  string
	Logger   zerolog.Logger
}

// New returns a Foldseek aligner with the default binary, coverage and
// listing name.
func New(logger zerolog.Logger) *Foldseek {
	return &Foldseek{
		Binary:   DefaultBinary,
		Coverage: DefaultCoverage,
		Listing:  DefaultListing,
		Logger:   logger,
	}
}

// Args returns the aligner command line, without the binary.
func (f *Foldseek) Args() []string {
	return []string{"easy-cluster", ".", "res", "tmp", "-c", strconv.FormatFloat(f.Coverage, 'g', -1, 64)}
}

// Representatives runs the aligner in dir.
func (f *Foldseek) Representatives(ctx context.Context, dir string) ([]string, error) {
	listing := filepath.Join(dir, f.Listing)
	if _, err := os.Stat(listing); err == nil {
		f.Logger.Warn().Str("dir", dir).Msg("Aligner output from a previous run is present; the aligner may refuse to run")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Binary, f.Args()...)
	cmd.Dir = dir
	cmd.Stderr = &stderr

	f.Logger.Debug().Str("dir", dir).Strs("args", f.Args()).Msg("Running aligner")
	if err := cmd.Run(); err != nil {
		aerr := &AlignerError{Dir: dir, ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			aerr.ExitCode = exitErr.ExitCode()
		}
		return nil, aerr
	}

	file, err := os.Open(listing)
	if err != nil {
		return nil, fmt.Errorf("aligner produced no listing in %s: %w", dir, err)
	}
	defer file.Close()
	return ParseListing(file)
}

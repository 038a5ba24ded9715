package foldseek

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// FolderResult is the outcome for one input subfolder.
type FolderResult struct {
	Name   string
	Copied []string
	Err    error
}

// Report summarizes a Reduce run.
type Report struct {
	Folders []FolderResult
}

// Err joins the errors of every failed folder, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Folders {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, f.Err))
		}
	}
	return errors.Join(errs...)
}

// Reducer runs an Aligner over every subfolder of an input directory and
// copies the representative structures of each into a matching subfolder
// of the output directory.
type Reducer struct {
	Aligner Aligner
	Logger  zerolog.Logger
}

// NewReducer creates a reducer around aligner.
func NewReducer(aligner Aligner, logger zerolog.Logger) *Reducer {
	return &Reducer{Aligner: aligner, Logger: logger}
}

// Reduce processes the subfolders of inputDir in name order. A failure in
// one folder is recorded and the next folder is processed; files already
// copied for other folders are left untouched. The returned error is only
// for problems that stop the whole run, such as an unreadable inputDir.
func (r *Reducer) Reduce(ctx context.Context, inputDir, outputDir string) (*Report, error) {
	inputDir, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	report := &Report{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := FolderResult{Name: name}
		res.Copied, res.Err = r.reduceFolder(ctx, filepath.Join(inputDir, name), filepath.Join(outputDir, name))
		if res.Err != nil {
			r.Logger.Error().Err(res.Err).Str("folder", name).Msg("Folder failed")
		} else {
			r.Logger.Info().Str("folder", name).Int("representatives", len(res.Copied)).Msg("Folder reduced")
		}
		report.Folders = append(report.Folders, res)
	}
	return report, nil
}

func (r *Reducer) reduceFolder(ctx context.Context, src, dst string) ([]string, error) {
	names, err := r.Aligner.Representatives(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	copied := make([]string, 0, len(names))
	for _, name := range names {
		file := name + structureSuffix
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return copied, err
		}
		copied = append(copied, file)
	}
	return copied, nil
}

// copyFile writes through a temporary file in the destination folder so a
// failed copy never leaves a truncated structure behind.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("representative structure missing: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("copying %s: %w", filepath.Base(src), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	Inputs []string
	Output string
	// ListDir receives the demuxer file list. Defaults to the output dir.
	ListDir      string
	ProgressFunc ProgressFunc
}

// Concat joins clips back to back with hard cuts, re-encoding the result.
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Msg("concatenating clips")

	listDir := opts.ListDir
	if listDir == "" {
		listDir = filepath.Dir(opts.Output)
	}
	concatFile, err := createConcatFile(listDir, opts.Inputs)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(concatFile)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
	}
	args = append(args, e.encodeArgs()...)
	args = append(args, "-an", opts.Output)

	return e.Run(ctx, RunOptions{
		Args:            args,
		Timeout:         e.settings.Timeouts.Composite,
		ProgressHandler: opts.ProgressFunc,
		LogHandler:      e.debugLog("concatenating"),
	})
}

// createConcatFile generates a file list for the ffmpeg concat demuxer
func createConcatFile(dir string, inputs []string) (string, error) {
	tmpFile, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return "", err
		}
		if _, err := fmt.Fprintf(tmpFile, "file '%s'\n", escapeConcatPath(absPath)); err != nil {
			return "", err
		}
	}

	return tmpFile.Name(), nil
}

// escapeConcatPath quotes a path for a single-quoted concat list entry.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

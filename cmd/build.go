package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/config"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
)

func newBuildCommand(a *app) *cobra.Command {
	var flags *StandardFlags

	buildCmd := &cobra.Command{
		Use:     "build [file...]",
		Aliases: []string{"b"},
		Short:   "Expand documents from the source tree into the destination",
		Long: `Expand every document under the source directory that matches the build
patterns and write the result to the same relative path under the destination.
Named files are built alone; they may be given relative to the source
directory or by their full path.

Examples:
  tagforge build                              # Build src into dist
  tagforge build --src site --dest public     # Use other directories
  tagforge build -j 8 --continue-on-error     # Parallel, report every failure
  tagforge build --pattern '*.html,*.svg'     # Select documents by glob
  tagforge build index.html blog/post.html    # Rebuild two documents`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd, buildBindings)
			if err != nil {
				return err
			}
			cfg.TargetFiles = args

			return runBuild(cmd, cfg, logger, flags.Quiet)
		},
	}

	flags = AddStandardFlags(buildCmd, "build")
	buildCmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress the summary")

	return buildCmd
}

func runBuild(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, quiet bool) error {
	ctx := cmd.Context()
	eng := engine.New(cfg.EngineOptions(logger))
	processor := build.NewProcessor(eng, cfg.ProcessorOptions(logger))
	out := cmd.OutOrStdout()

	if len(cfg.TargetFiles) > 0 {
		collector := errors.NewErrorCollector()
		built := 0
		for _, target := range cfg.TargetFiles {
			rel, err := sourceRelative(cfg.Build.Src, target)
			if err == nil {
				err = processor.ProcessFile(ctx, rel, cfg.Build.Src, cfg.Build.Dest)
			}
			if err != nil {
				if cfg.Policy() == build.FailFast {
					return err
				}
				collector.AddError(err)

				continue
			}
			built++
		}
		if !quiet {
			fmt.Fprintf(out, "Built %d of %d file(s) into %s\n", built, len(cfg.TargetFiles), cfg.Build.Dest)
		}

		return collector.Err()
	}

	result, err := processor.ProcessDirectory(ctx, cfg.Build.Patterns, cfg.Build.Src, cfg.Build.Dest)
	if result != nil && !quiet {
		fmt.Fprintf(out, "Built %d file(s) into %s in %s\n",
			len(result.Processed), cfg.Build.Dest, result.Duration.Round(time.Millisecond))
		for _, failed := range result.Failed {
			fmt.Fprintf(out, "  ❌ %s\n", failed)
		}
	}

	return err
}

// sourceRelative maps a command-line file to a slash path relative to src.
// Paths that already lie inside src are accepted as well as paths relative
// to it.
func sourceRelative(src, target string) (string, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", errors.WrapIO(err, src, "resolving source directory")
	}

	candidate := target
	if !filepath.IsAbs(candidate) {
		candidate, err = filepath.Abs(target)
		if err != nil {
			return "", errors.WrapIO(err, target, "resolving file")
		}
	}
	if rel, err := filepath.Rel(absSrc, candidate); err == nil && filepath.IsLocal(rel) {
		return filepath.ToSlash(rel), nil
	}

	if filepath.IsAbs(target) || !filepath.IsLocal(target) {
		return "", errors.ErrBuildFailed(target, errors.NewValidationError(errors.ErrCodeInvalidPath,
			fmt.Sprintf("%s is outside the source directory %s", target, strings.TrimSuffix(src, "/"))))
	}

	return filepath.ToSlash(filepath.Clean(target)), nil
}

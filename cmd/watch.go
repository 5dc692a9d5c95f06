package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/watcher"
)

func newWatchCommand(a *app) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Build, then rebuild whenever sources or components change",
		Long: `Build the source tree once, then keep the destination in step with it.
Changing a document rebuilds that document, deleting one removes its output,
and changing a component template rebuilds everything.

Examples:
  tagforge watch                       # Watch src, write dist
  tagforge watch --debounce 1s         # Wait longer before rebuilding
  tagforge watch -j 4 --continue-on-error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd, mergeBindings(buildBindings, map[string]string{
				"debounce": "watch.debounce",
			}))
			if err != nil {
				return err
			}

			ctx, stop := notifyContext(cmd)
			defer stop()

			out := cmd.OutOrStdout()
			eng := engine.New(cfg.EngineOptions(logger))
			processor := build.NewProcessor(eng, cfg.ProcessorOptions(logger))
			rebuilder := watcher.NewRebuilder(eng, processor, watcher.RebuildConfig{
				Src:       cfg.Build.Src,
				Dest:      cfg.Build.Dest,
				Patterns:  cfg.Build.Patterns,
				Logger:    logger,
				OnRebuild: func(rb watcher.Rebuild) { reportRebuild(out, rb) },
			})

			initial := rebuilder.Full(ctx)
			reportRebuild(out, initial)
			if initial.Err != nil && cfg.Policy() == build.FailFast {
				return initial.Err
			}

			fw, err := rebuilder.Watch(ctx, cfg.Watch.Debounce)
			if err != nil {
				return err
			}
			defer fw.Stop()

			fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", strings.Join(fw.WatchList(), ", "))
			<-ctx.Done()

			return nil
		},
	}

	AddStandardFlags(watchCmd, "build")
	watchCmd.Flags().Duration("debounce", 0, "Wait this long for changes to settle (default from config, 300ms)")

	return watchCmd
}

func reportRebuild(w io.Writer, rb watcher.Rebuild) {
	kind := "Rebuilt"
	if rb.Full {
		kind = "Rebuilt everything:"
	}
	fmt.Fprintf(w, "%s %d file(s)", kind, len(rb.Files))
	if len(rb.Removed) > 0 {
		fmt.Fprintf(w, ", removed %d", len(rb.Removed))
	}
	fmt.Fprintln(w)
	if rb.Err != nil {
		fmt.Fprintf(w, "  ❌ %v\n", rb.Err)
	}
}

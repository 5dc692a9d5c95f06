package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Preview documents with live reload",
		Long: `Start a development server that expands documents from the source directory
on every request. Pages reload in the browser when a document or a component
template changes, and expansion errors show up as an overlay.

Examples:
  tagforge serve                      # Serve src at http://localhost:8080
  tagforge serve -p 3000 --src site   # Another port and source directory
  tagforge serve --host 0.0.0.0       # Listen on every interface`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd, mergeBindings(serverBindings, map[string]string{
				"src": "build.src",
				"xml": "build.xml_mode",
			}))
			if err != nil {
				return err
			}

			ctx, stop := notifyContext(cmd)
			defer stop()

			eng := engine.New(cfg.EngineOptions(logger))
			srv := server.New(cfg, eng, logger)

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", cfg.Build.Src, cfg.Address())

			return srv.Start(ctx)
		},
	}

	AddStandardFlags(serveCmd, "server")
	serveCmd.Flags().String("src", "src", "Source directory")
	serveCmd.Flags().Bool("xml", false, "Parse and serialize documents as XML")

	return serveCmd
}

// notifyContext is cmd.Context with interrupt handling, tolerating commands
// executed without a context.
func notifyContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

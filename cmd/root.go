// Package cmd provides the command-line interface for tagforge.
//
// Configuration System:
//
//	Every command reads its settings from several sources, highest priority first:
//	1. Command-line flags (--src, --port, etc.)
//	2. Individual environment variables (TAGFORGE_BUILD_SRC, TAGFORGE_SERVE_PORT, etc.)
//	3. The configuration file named by --config or TAGFORGE_CONFIG_FILE
//	4. .tagforge.yml in the current directory
//	5. Built-in defaults
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tagforge/internal/config"
	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
)

// ConfigFileEnv names a configuration file when --config is not given.
const ConfigFileEnv = "TAGFORGE_CONFIG_FILE"

// app carries the state shared by one command tree. Each tree owns its own
// viper instance so flag bindings never leak between invocations.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCommand builds the tagforge command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "tagforge",
		Short: "Expand custom HTML tags from a folder of templates",
		Long: `tagforge turns a folder of HTML templates into custom tags. Every file
components/<name>.html defines a <name> tag; documents using those tags are
expanded into plain HTML.

Quick Start:
  tagforge init                   Create .tagforge.yml and the project folders
  tagforge build                  Expand every document from src into dist
  tagforge render page.html       Expand one document to stdout
  tagforge list                   List the available tags
  tagforge serve                  Preview documents with live reload
  tagforge watch                  Rebuild on every change

Command Aliases (for faster typing):
  build (b), render (r), list (l), serve (s), watch (w)`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.initConfig(cmd) },
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is .tagforge.yml, can also use "+ConfigFileEnv+" env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = a.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(
		newBuildCommand(a),
		newRenderCommand(a),
		newListCommand(a),
		newServeCommand(a),
		newWatchCommand(a),
		newValidateCommand(a),
		newInitCommand(),
		newHealthCommand(a),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// initConfig selects and reads the configuration file.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. TAGFORGE_CONFIG_FILE environment variable
//  3. .tagforge.yml in the current directory
//
// A missing default file is fine; an explicitly named file must exist.
func (a *app) initConfig(cmd *cobra.Command) error {
	explicit := a.cfgFile
	if explicit == "" {
		explicit = os.Getenv(ConfigFileEnv)
	}

	if explicit != "" {
		a.v.SetConfigFile(explicit)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".tagforge")
	}
	config.BindEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit == "" && stderrors.As(err, &notFound) {
			return nil
		}

		return errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "reading configuration file")
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", a.v.ConfigFileUsed())

	return nil
}

// load binds the flags of cmd to their configuration keys, then reads and
// validates the configuration and builds the logger it asks for.
func (a *app) load(cmd *cobra.Command, bindings map[string]string) (*config.Config, logging.Logger, error) {
	if err := SetViperBindings(a.v, cmd, bindings); err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}

func newLogger(cfg *config.Config, w io.Writer) (logging.Logger, error) {
	logCfg, err := cfg.LoggerConfig(w)
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(logCfg), nil
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagforge/internal/dom"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/errors"
)

func newRenderCommand(a *app) *cobra.Command {
	var (
		xml     bool
		tree    bool
		outFile string
	)

	renderCmd := &cobra.Command{
		Use:     "render [file|-]",
		Aliases: []string{"r"},
		Short:   "Expand one document and print the result",
		Long: `Expand the custom tags of one document and write the result to stdout.
Without a file, or with "-", the document is read from stdin.

Examples:
  tagforge render page.html                  # Print the expanded page
  echo '<card title="Hi"/>' | tagforge render
  tagforge render page.html --tree           # Show the expanded node tree
  tagforge render feed.xml --xml -o out.xml  # XML mode, write to a file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd, map[string]string{"xml": "build.xml_mode"})
			if err != nil {
				return err
			}

			name := "-"
			if len(args) == 1 {
				name = args[0]
			}
			if err := ValidateFileExists(name); err != nil {
				return errors.NewFileNotFoundError(name, err)
			}
			markup, err := readInput(cmd, name)
			if err != nil {
				return err
			}

			eng := engine.New(cfg.EngineOptions(logger))
			result, err := eng.ProcessMarkup(markup)
			if err != nil {
				return errors.ErrBuildFailed(name, err)
			}

			if tree {
				doc, err := dom.Parse(result, eng.Mode())
				if err != nil {
					return err
				}
				result = dom.Dump(doc)
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, []byte(result), 0o644); err != nil {
					return errors.WrapIO(err, outFile, "writing output")
				}

				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result)

			return err
		},
	}

	renderCmd.Flags().BoolVar(&xml, "xml", false, "Parse and serialize the document as XML")
	renderCmd.Flags().BoolVar(&tree, "tree", false, "Print the expanded node tree instead of markup")
	renderCmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the result to a file")

	return renderCmd
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.WrapIO(err, "stdin", "reading document")
		}

		return string(data), nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", errors.WrapIO(err, name, "reading document")
	}

	return string(data), nil
}

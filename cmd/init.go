package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagforge/internal/config"
	"github.com/conneroisu/tagforge/internal/errors"
)

const exampleCard = `<article class="card">
  <h2>{{ title }}</h2>
  {{ html|safe }}
</article>
`

const exampleIndex = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>tagforge</title>
</head>
<body>
  <card title="Hello">
    <p>Edit components/card.html and run <code>tagforge build</code>.</p>
  </card>
</body>
</html>
`

func newInitCommand() *cobra.Command {
	var (
		wizard  bool
		force   bool
		minimal bool
	)

	initCmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create .tagforge.yml and the project folders",
		Long: `Write a configuration file and create the components and source folders.
Unless --minimal is given an example component and page are added too.

Examples:
  tagforge init                # Defaults in the current directory
  tagforge init my-site        # Create and initialize my-site
  tagforge init --wizard       # Answer a few questions first
  tagforge init --force        # Replace an existing .tagforge.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			return runInit(cmd, dir, wizard, force, minimal)
		},
	}

	initCmd.Flags().BoolVar(&wizard, "wizard", false, "Run the interactive configuration wizard")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&minimal, "minimal", false, "Skip the example component and page")

	return initCmd
}

func runInit(cmd *cobra.Command, dir string, wizard, force, minimal bool) error {
	out := cmd.OutOrStdout()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO(err, dir, "creating project directory")
	}

	cfgPath := filepath.Join(dir, config.DefaultFile)
	if _, err := os.Stat(cfgPath); err == nil && !force && !wizard {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			cfgPath+" already exists (use --force to overwrite)")
	}

	cfg := config.Default()
	if wizard {
		w := config.NewConfigWizard(cmd.InOrStdin(), out)
		var err error
		if cfg, err = w.Run(); err != nil {
			return err
		}
		if force {
			_ = os.Remove(cfgPath)
		}
		if err := w.WriteConfigFile(cfgPath); err != nil {
			return err
		}
	} else {
		content, err := config.MarshalYAML(cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
			return errors.WrapIO(err, cfgPath, "writing configuration")
		}
		fmt.Fprintf(out, "✅ Configuration saved to %s\n", cfgPath)
	}

	components := filepath.Join(dir, cfg.Components.Folder)
	src := filepath.Join(dir, cfg.Build.Src)
	for _, d := range []string{components, src} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.WrapIO(err, d, "creating directory")
		}
	}

	if !minimal {
		examples := map[string]string{
			filepath.Join(components, "card"+cfg.Components.Extension): exampleCard,
			filepath.Join(src, "index.html"):                            exampleIndex,
		}
		for path, content := range examples {
			if _, err := os.Stat(path); err == nil {
				continue
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return errors.WrapIO(err, path, "writing example")
			}
		}
	}

	fmt.Fprintf(out, "Initialized tagforge project in %s\n", dir)
	fmt.Fprintln(out, "Next: tagforge build, or tagforge serve for a live preview")

	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tagforge/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		format   string
		short    bool
		detailed bool
	)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information for tagforge including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)

Examples:
  tagforge version              # Show version
  tagforge version --detailed   # Show detailed version info
  tagforge version --format json # Output as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				return outputVersionJSON(out)
			case "yaml":
				return outputVersionYAML(out)
			case "text":
				switch {
				case short:
					fmt.Fprintln(out, version.GetShortVersion())
				case detailed:
					outputVersionDetailed(out)
				default:
					outputVersionDefault(out)
				}

				return nil
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
			}
		},
	}

	versionCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&short, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show detailed version information")

	return versionCmd
}

func outputVersionDefault(w io.Writer) {
	info := version.GetBuildInfo()

	fmt.Fprintf(w, "tagforge %s", version.GetShortVersion())
	if info.Modified {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(w, "Built: %s\n", info.BuildTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s\n", info.Platform)
}

func outputVersionDetailed(w io.Writer) {
	fmt.Fprintln(w, version.GetDetailedVersion())

	if version.IsRelease() {
		fmt.Fprintln(w, "Build type: release")
	} else {
		fmt.Fprintln(w, "Build type: development")
	}
}

type versionJSON struct {
	version.BuildInfo `yaml:",inline"`
	IsRelease         bool `json:"is_release" yaml:"is_release"`
}

func outputVersionJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(versionJSON{BuildInfo: *version.GetBuildInfo(), IsRelease: version.IsRelease()})
}

func outputVersionYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()

	return encoder.Encode(versionJSON{BuildInfo: *version.GetBuildInfo(), IsRelease: version.IsRelease()})
}

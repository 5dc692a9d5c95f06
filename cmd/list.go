package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/types"
)

type componentEntry struct {
	Name     string    `json:"name" yaml:"name"`
	File     string    `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	Dir      string    `json:"dir,omitempty" yaml:"dir,omitempty"`
	Variants []string  `json:"variants,omitempty" yaml:"variants,omitempty"`
	LastMod  time.Time `json:"last_mod" yaml:"last_mod"`
	Hash     string    `json:"hash,omitempty" yaml:"hash,omitempty"`
}

func newListCommand(a *app) *cobra.Command {
	var (
		flags    *StandardFlags
		withHash bool
	)

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "List the custom tags defined by the components folder",
		Long: `List every tag in the vocabulary with the template file behind it and the
typed variants found in its variant directory.

Examples:
  tagforge list                 # Table output
  tagforge list -o json         # Output as JSON
  tagforge list -o yaml --hash  # Include template checksums`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd, nil)
			if err != nil {
				return err
			}

			eng := engine.New(cfg.EngineOptions(logger))
			if _, err := eng.BuildTagVocabulary(); err != nil {
				return err
			}
			entries := componentEntries(eng.Registry().GetAll(), withHash)

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				if !flags.Quiet {
					fmt.Fprintf(out, "No components found in %s.\n", cfg.Components.Folder)
				}

				return nil
			}

			switch strings.ToLower(flags.OutputFormat) {
			case "json":
				return outputListJSON(out, entries)
			case "yaml":
				return outputListYAML(out, entries)
			default:
				return outputListTable(out, entries, withHash)
			}
		},
	}

	flags = AddStandardFlags(listCmd, "output")
	listCmd.Flags().BoolVar(&withHash, "hash", false, "Include template checksums")

	return listCmd
}

func componentEntries(components []*types.ComponentInfo, withHash bool) []componentEntry {
	entries := make([]componentEntry, 0, len(components))
	for _, c := range components {
		entry := componentEntry{
			Name:     c.Name,
			File:     c.FilePath,
			Dir:      c.Dir,
			Variants: c.Variants,
			LastMod:  c.LastMod,
		}
		if withHash {
			entry.Hash = c.Hash
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries
}

func outputListJSON(w io.Writer, entries []componentEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(entries)
}

func outputListYAML(w io.Writer, entries []componentEntry) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()

	return encoder.Encode(entries)
}

func outputListTable(w io.Writer, entries []componentEntry, withHash bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := "TAG\tFILE\tVARIANTS\tMODIFIED"
	if withHash {
		header += "\tHASH"
	}
	fmt.Fprintln(tw, header)

	for _, e := range entries {
		file := e.File
		if file == "" {
			file = "-"
		}
		variants := strings.Join(e.Variants, ",")
		if variants == "" {
			variants = "-"
		}
		row := fmt.Sprintf("<%s>\t%s\t%s\t%s", e.Name, file, variants, e.LastMod.Format("2006-01-02 15:04"))
		if withHash {
			row += "\t" + e.Hash
		}
		fmt.Fprintln(tw, row)
	}

	return tw.Flush()
}

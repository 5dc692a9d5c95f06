package cmd

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagforge/internal/config"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/logging"
)

// TemplateResult reports whether one template unit compiles.
type TemplateResult struct {
	Tag     string `json:"tag"`
	Type    string `json:"type,omitempty"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ValidationSummary is the JSON form of a validate run.
type ValidationSummary struct {
	Valid     bool             `json:"valid"`
	Errors    []issueJSON      `json:"errors"`
	Warnings  []issueJSON      `json:"warnings"`
	Templates []TemplateResult `json:"templates,omitempty"`
}

type issueJSON struct {
	Field       string   `json:"field"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		format        string
		skipTemplates bool
	)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and compile every component template",
		Long: `Validate the effective configuration (file, environment and flags) and
compile every template in the components folder, reporting all problems at
once instead of stopping at the first.

Examples:
  tagforge validate                  # Text report
  tagforge validate --format json    # Machine readable report
  tagforge validate --config-only    # Skip the template compile check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := SetViperBindings(a.v, cmd, nil); err != nil {
				return err
			}
			cfg, err := config.Decode(a.v)
			if err != nil {
				return err
			}

			result := config.ValidateConfigWithDetails(cfg)
			var templates []TemplateResult
			if !skipTemplates && !result.HasErrors() {
				templates = checkTemplates(cfg)
			}

			summary := summarize(result, templates)
			out := cmd.OutOrStdout()
			if format == "json" {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(summary); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, result.String())
				for _, t := range templates {
					if !t.Valid {
						fmt.Fprintf(out, "❌ <%s> %s: %s\n", t.Tag, t.Type, t.Message)
					}
				}
				if summary.Valid {
					fmt.Fprintf(out, "✅ Configuration is valid, %d template(s) compiled\n", len(templates))
				}
			}

			if !summary.Valid {
				return stderrors.New("validation failed")
			}

			return nil
		},
	}

	validateCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	validateCmd.Flags().BoolVar(&skipTemplates, "config-only", false, "Only validate the configuration")
	AddFlagValidation(validateCmd, "format", func(f string) error {
		return ValidateFormat(f, []string{"text", "json"})
	})

	return validateCmd
}

// checkTemplates compiles the untyped template and every typed variant of
// each unit in the components folder.
func checkTemplates(cfg *config.Config) []TemplateResult {
	if _, err := os.Stat(cfg.Components.Folder); err != nil {
		return nil
	}

	eng := engine.New(cfg.EngineOptions(logging.NewNopLogger()))
	if _, err := eng.BuildTagVocabulary(); err != nil {
		return []TemplateResult{{Tag: cfg.Components.Folder, Message: err.Error()}}
	}

	var results []TemplateResult
	check := func(tag, typ string) {
		r := TemplateResult{Tag: tag, Type: typ, Valid: true}
		if _, err := eng.ResolveTemplate(tag, typ); err != nil {
			r.Valid = false
			r.Message = err.Error()
		}
		results = append(results, r)
	}

	components := eng.Registry().GetAll()
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	for _, c := range components {
		if c.HasDefault() {
			check(c.Name, "")
		}
		for _, variant := range c.Variants {
			check(c.Name, variant)
		}
	}

	return results
}

func summarize(result *config.ValidationResult, templates []TemplateResult) ValidationSummary {
	summary := ValidationSummary{
		Valid:     result.Valid,
		Errors:    []issueJSON{},
		Warnings:  []issueJSON{},
		Templates: templates,
	}
	for _, e := range result.Errors {
		summary.Errors = append(summary.Errors, issueJSON{Field: e.Field, Message: e.Message, Suggestions: e.Suggestions})
	}
	for _, w := range result.Warnings {
		summary.Warnings = append(summary.Warnings, issueJSON{Field: w.Field, Message: w.Message, Suggestions: w.Suggestions})
	}
	for _, t := range templates {
		if !t.Valid {
			summary.Valid = false
		}
	}

	return summary
}

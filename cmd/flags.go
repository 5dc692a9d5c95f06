package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port int
	Host string

	// Build flags
	Src             string
	Dest            string
	Patterns        []string
	Workers         int
	ContinueOnError bool
	XML             bool

	// Output flags
	OutputFormat string
	Quiet        bool
}

// Bindings from flag names to configuration keys, per flag group.
var (
	serverBindings = map[string]string{
		"port": "serve.port",
		"host": "serve.host",
	}
	buildBindings = map[string]string{
		"src":     "build.src",
		"dest":    "build.dest",
		"pattern": "build.patterns",
		"workers": "build.workers",
		"xml":     "build.xml_mode",
	}
)

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "build":
			addBuildFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 8080, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	AddFlagValidation(cmd, "port", ValidatePort)
}

func addBuildFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVar(&flags.Src, "src", "src", "Source directory")
	cmd.Flags().StringVar(&flags.Dest, "dest", "dist", "Destination directory")
	cmd.Flags().StringSliceVar(&flags.Patterns, "pattern", []string{"*.html"}, "Glob patterns selecting documents")
	cmd.Flags().IntVarP(&flags.Workers, "workers", "j", 1, "Files processed concurrently")
	cmd.Flags().BoolVar(&flags.ContinueOnError, "continue-on-error", false, "Keep building after a file fails")
	cmd.Flags().BoolVar(&flags.XML, "xml", false, "Parse and serialize documents as XML")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
	AddFlagValidation(cmd, "output", func(format string) error {
		return ValidateFormat(format, []string{"table", "json", "yaml"})
	})
}

// SetViperBindings binds flags to viper configuration keys. Flags are bound
// when a command runs rather than when it is built, so commands sharing a
// key never shadow each other.
func SetViperBindings(v *viper.Viper, cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", flagName, err)
		}
	}

	if flag := cmd.Flags().Lookup("continue-on-error"); flag != nil && flag.Changed {
		if on, _ := strconv.ParseBool(flag.Value.String()); on {
			v.Set("build.failure_policy", "continue")
		}
	}

	return nil
}

// mergeBindings combines flag groups for commands using several.
func mergeBindings(groups ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, group := range groups {
		for flag, key := range group {
			out[flag] = key
		}
	}

	return out
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}

	return v.Value.Set(val)
}

// ValidatePort accepts 0 (any free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidateFormat checks format against the supported list, suggesting the
// closest match by prefix.
func ValidateFormat(format string, valid []string) error {
	format = strings.ToLower(format)
	for _, v := range valid {
		if format == v {
			return nil
		}
	}

	for _, v := range valid {
		if format != "" && strings.HasPrefix(v, format) {
			return fmt.Errorf("invalid format %q, did you mean %q?", format, v)
		}
	}

	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(valid, ", "))
}

// ValidateFileExists accepts "-" for standard input.
func ValidateFileExists(filename string) error {
	if filename == "" || filename == "-" {
		return nil
	}

	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", filename)
	}

	return nil
}

package config

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tagforge/internal/build"
)

// ConfigWizard provides an interactive setup experience for new projects
type ConfigWizard struct {
	reader *bufio.Reader
	out    io.Writer
	config *Config
}

// NewConfigWizard creates a wizard that prompts on out and reads answers
// from in. A nil in or out falls back to stdin or stdout.
func NewConfigWizard(in io.Reader, out io.Writer) *ConfigWizard {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	return &ConfigWizard{
		reader: bufio.NewReader(in),
		out:    out,
		config: Default(),
	}
}

// Config returns the configuration collected so far.
func (w *ConfigWizard) Config() *Config {
	return w.config
}

// Run executes the interactive configuration wizard
func (w *ConfigWizard) Run() (*Config, error) {
	w.println("🧙 tagforge configuration wizard")
	w.println("================================")
	w.println("Press enter to keep the value shown in brackets.")
	w.println()

	if err := w.configureComponents(); err != nil {
		return nil, fmt.Errorf("components configuration failed: %w", err)
	}
	if err := w.configureBuild(); err != nil {
		return nil, fmt.Errorf("build configuration failed: %w", err)
	}
	if err := w.configureServe(); err != nil {
		return nil, fmt.Errorf("serve configuration failed: %w", err)
	}

	if err := validateConfig(w.config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	w.println()
	w.println("✅ Configuration completed successfully!")

	return w.config, nil
}

func (w *ConfigWizard) configureComponents() error {
	w.println("🧩 Components")
	w.println("-------------")

	c := &w.config.Components
	c.Folder = w.askString("Components folder", c.Folder)
	c.AttrNodePrefix = w.askString("Attribute node prefix", c.AttrNodePrefix)
	c.Extension = w.askString("Template extension", c.Extension)
	w.println()

	return nil
}

func (w *ConfigWizard) configureBuild() error {
	w.println("🔨 Build")
	w.println("--------")

	b := &w.config.Build
	b.Src = w.askString("Source directory", b.Src)
	b.Dest = w.askString("Output directory", b.Dest)
	b.Patterns = splitList([]string{w.askString("File patterns (comma separated)", strings.Join(b.Patterns, ","))})

	workers, err := w.askInt("Parallel workers", b.Workers, 1, 64)
	if err != nil {
		return err
	}
	b.Workers = workers

	b.FailurePolicy = w.askChoice("On error", []string{string(build.FailFast), string(build.Continue)}, b.FailurePolicy)
	b.XMLMode = w.askBool("Treat documents as XML", b.XMLMode)
	w.println()

	return nil
}

func (w *ConfigWizard) configureServe() error {
	w.println("🌐 Preview server")
	w.println("-----------------")

	s := &w.config.Serve
	s.Host = w.askString("Host", s.Host)

	port, err := w.askInt("Port", s.Port, 1, 65535)
	if err != nil {
		return err
	}
	s.Port = port

	debounce := w.askString("Watch debounce", w.config.Watch.Debounce.String())
	if d, err := time.ParseDuration(debounce); err == nil {
		w.config.Watch.Debounce = d
	} else {
		w.printf("❌ Invalid duration %q, keeping %s\n", debounce, w.config.Watch.Debounce)
	}
	w.println()

	return nil
}

// Helper methods for user interaction

func (w *ConfigWizard) println(a ...interface{}) {
	fmt.Fprintln(w.out, a...)
}

func (w *ConfigWizard) printf(format string, a ...interface{}) {
	fmt.Fprintf(w.out, format, a...)
}

func (w *ConfigWizard) askString(prompt, defaultValue string) string {
	if defaultValue != "" {
		w.printf("%s [%s]: ", prompt, defaultValue)
	} else {
		w.printf("%s: ", prompt)
	}

	input, err := w.reader.ReadString('\n')
	if err != nil && input == "" {
		return defaultValue
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}

	return input
}

func (w *ConfigWizard) askInt(prompt string, defaultValue, min, max int) (int, error) {
	for {
		w.printf("%s [%d]: ", prompt, defaultValue)

		input, err := w.reader.ReadString('\n')
		if err != nil && input == "" {
			return defaultValue, nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			return defaultValue, nil
		}

		value, err := strconv.Atoi(input)
		if err != nil {
			w.printf("❌ Invalid number. Please enter a number between %d and %d.\n", min, max)
			continue
		}

		if value < min || value > max {
			w.printf("❌ Number out of range. Please enter a number between %d and %d.\n", min, max)
			continue
		}

		return value, nil
	}
}

func (w *ConfigWizard) askBool(prompt string, defaultValue bool) bool {
	defaultStr := "n"
	if defaultValue {
		defaultStr = "y"
	}

	w.printf("%s [%s]: ", prompt, defaultStr)

	input, err := w.reader.ReadString('\n')
	if err != nil && input == "" {
		return defaultValue
	}

	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return defaultValue
	}

	return input == "y" || input == "yes" || input == "true"
}

func (w *ConfigWizard) askChoice(prompt string, choices []string, defaultValue string) string {
	for {
		w.printf("%s [%s] (options: %s): ", prompt, defaultValue, strings.Join(choices, ", "))

		input, err := w.reader.ReadString('\n')
		if err != nil && input == "" {
			return defaultValue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			return defaultValue
		}

		for _, choice := range choices {
			if strings.EqualFold(input, choice) {
				return choice
			}
		}

		w.printf("❌ Invalid choice. Please select from: %s\n", strings.Join(choices, ", "))
	}
}

// WriteConfigFile writes the configuration to a YAML file. An existing file
// is only replaced when the user confirms.
func (w *ConfigWizard) WriteConfigFile(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		overwrite := w.askBool(fmt.Sprintf("Configuration file %s already exists. Overwrite", filename), false)
		if !overwrite {
			return fmt.Errorf("configuration file already exists")
		}
	}

	content, err := MarshalYAML(w.config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, content, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	w.printf("✅ Configuration saved to %s\n", filename)

	return nil
}

// MarshalYAML renders config as a commented .tagforge.yml document.
func MarshalYAML(config *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# tagforge configuration file\n")
	buf.WriteString("# Environment overrides use TAGFORGE_<SECTION>_<KEY>, e.g. TAGFORGE_BUILD_WORKERS=4\n\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}

	return buf.Bytes(), nil
}

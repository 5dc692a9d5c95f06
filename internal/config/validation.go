package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/logging"
	"github.com/conneroisu/tagforge/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// ValidateConfigWithDetails checks config and reports every problem found,
// plus warnings for settings that are legal but probably unintended.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateComponentsConfigDetails(&config.Components, result)
	validateBuildConfigDetails(config, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateServeConfigDetails(&config.Serve, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateComponentsConfigDetails(config *ComponentsConfig, result *ValidationResult) {
	if err := validation.ValidatePath(config.Folder); err != nil {
		result.addError("components.folder", config.Folder, err.Error(),
			"Use a relative path such as 'components' or 'src/components'",
			"Avoid '..' segments and shell metacharacters")
	} else if !pathExists(config.Folder) {
		result.addWarning("components.folder", config.Folder, "components folder does not exist",
			fmt.Sprintf("Create it with: mkdir -p %s", config.Folder),
			"Every document will pass through unchanged until templates are added")
	}

	if strings.TrimSpace(config.AttrNodePrefix) == "" {
		result.addError("components.attr_node_prefix", config.AttrNodePrefix, "prefix cannot be empty",
			"The default prefix is '_' (for example <_title>)")
	} else if strings.ContainsAny(config.AttrNodePrefix, " <>/=\"'") {
		result.addError("components.attr_node_prefix", config.AttrNodePrefix, "prefix contains characters not allowed in tag names",
			"Use letters, digits, '_' or '-'")
	}

	if err := validation.ValidateExtension(config.Extension); err != nil {
		result.addError("components.extension", config.Extension, err.Error(),
			"Use '.html' unless your templates use another suffix")
	}
}

func validateBuildConfigDetails(config *Config, result *ValidationResult) {
	b := &config.Build

	if err := validation.ValidatePath(b.Src); err != nil {
		result.addError("build.src", b.Src, err.Error())
	} else if !pathExists(b.Src) {
		result.addWarning("build.src", b.Src, "source directory does not exist")
	}

	if err := validation.ValidatePath(b.Dest); err != nil {
		result.addError("build.dest", b.Dest, err.Error())
	} else if filepath.Clean(b.Dest) == filepath.Clean(b.Src) {
		result.addError("build.dest", b.Dest, "destination must differ from the source directory",
			"Output would overwrite the input documents",
			"Use a separate directory such as 'dist'")
	}

	for _, pattern := range b.Patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			result.addError("build.patterns", pattern, fmt.Sprintf("malformed pattern: %v", err))
		}
	}

	if b.Workers < 1 {
		result.addError("build.workers", b.Workers, "workers must be at least 1")
	}

	if b.MaxDepth < 1 {
		result.addError("build.max_depth", b.MaxDepth, "max_depth must be at least 1")
	} else if b.MaxDepth < 4 {
		result.addWarning("build.max_depth", b.MaxDepth, "a low expansion depth rejects ordinary nested components")
	}

	if b.CacheSize < 0 {
		result.addError("build.cache_size", b.CacheSize, "cache_size cannot be negative",
			"Use 0 to disable the output cache")
	}

	if _, err := build.ParseFailurePolicy(b.FailurePolicy); err != nil {
		result.addError("build.failure_policy", b.FailurePolicy, "unknown failure policy",
			fmt.Sprintf("Valid values: %s, %s", build.FailFast, build.Continue))
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce <= 0 {
		result.addError("watch.debounce", config.Debounce, "debounce must be positive",
			"300ms suits most editors")
	}
}

func validateServeConfigDetails(config *ServeConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("serve.port", config.Port, fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Common development ports: 3000, 8080, 8000, 3001",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("serve.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using port 8080 or 3000 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("serve.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to listen on all interfaces")
		}
	}
	if config.Host == "0.0.0.0" {
		result.addWarning("serve.host", config.Host, "server will accept connections from any network interface")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(),
			"Valid values: debug, info, warn, error, fatal")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "format must be text or json")
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// Package config provides configuration management for tagforge using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration is read from .tagforge.yml (or the file named by
// --config), with TAGFORGE_<SECTION>_<KEY> environment overrides. It covers
// the components folder, the build (source, destination, patterns, worker
// pool and failure policy), watch debouncing, the preview server and logging.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
	"github.com/conneroisu/tagforge/internal/validation"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TAGFORGE"

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = ".tagforge.yml"

type Config struct {
	Components  ComponentsConfig `mapstructure:"components" yaml:"components"`
	Build       BuildConfig      `mapstructure:"build" yaml:"build"`
	Watch       WatchConfig      `mapstructure:"watch" yaml:"watch"`
	Serve       ServeConfig      `mapstructure:"serve" yaml:"serve"`
	Log         LogConfig        `mapstructure:"log" yaml:"log"`
	TargetFiles []string         `mapstructure:"-" yaml:"-"` // CLI arguments, not from config file
}

type ComponentsConfig struct {
	Folder         string `mapstructure:"folder" yaml:"folder"`
	AttrNodePrefix string `mapstructure:"attr_node_prefix" yaml:"attr_node_prefix"`
	Extension      string `mapstructure:"extension" yaml:"extension"`
}

type BuildConfig struct {
	Src           string   `mapstructure:"src" yaml:"src"`
	Dest          string   `mapstructure:"dest" yaml:"dest"`
	Patterns      []string `mapstructure:"patterns" yaml:"patterns"`
	Workers       int      `mapstructure:"workers" yaml:"workers"`
	FailurePolicy string   `mapstructure:"failure_policy" yaml:"failure_policy"`
	XMLMode       bool     `mapstructure:"xml_mode" yaml:"xml_mode"`
	MaxDepth      int      `mapstructure:"max_depth" yaml:"max_depth"`
	// CacheSize bounds the bytes of expanded output kept between rebuilds.
	// Zero disables the cache.
	CacheSize     int64    `mapstructure:"cache_size" yaml:"cache_size"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// MarshalYAML writes the debounce as a duration string ("300ms").
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Debounce string `yaml:"debounce"`
	}{Debounce: w.Debounce.String()}, nil
}

type ServeConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Components: ComponentsConfig{
			Folder:         engine.DefaultComponentsFolder,
			AttrNodePrefix: engine.DefaultAttrNodePrefix,
			Extension:      engine.DefaultTemplateExt,
		},
		Build: BuildConfig{
			Src:           "src",
			Dest:          "dist",
			Patterns:      append([]string(nil), build.DefaultPatterns...),
			Workers:       1,
			FailurePolicy: string(build.FailFast),
			MaxDepth:      engine.DefaultMaxDepth,
			CacheSize:     build.DefaultCacheSize,
		},
		Watch: WatchConfig{Debounce: 300 * time.Millisecond},
		Serve: ServeConfig{Host: "localhost", Port: 8080},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers every default on v so that unset keys, environment
// lookups and flag bindings all resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("components.folder", d.Components.Folder)
	v.SetDefault("components.attr_node_prefix", d.Components.AttrNodePrefix)
	v.SetDefault("components.extension", d.Components.Extension)
	v.SetDefault("build.src", d.Build.Src)
	v.SetDefault("build.dest", d.Build.Dest)
	v.SetDefault("build.patterns", d.Build.Patterns)
	v.SetDefault("build.workers", d.Build.Workers)
	v.SetDefault("build.failure_policy", d.Build.FailurePolicy)
	v.SetDefault("build.xml_mode", d.Build.XMLMode)
	v.SetDefault("build.max_depth", d.Build.MaxDepth)
	v.SetDefault("build.cache_size", d.Build.CacheSize)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("serve.host", d.Serve.Host)
	v.SetDefault("serve.port", d.Serve.Port)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// BindEnv makes every key overridable through TAGFORGE_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Decode reads and defaults the configuration held by v without validating
// it, for callers that report problems themselves.
func Decode(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "decoding configuration")
	}

	// Slices set through env or flags arrive as a single string.
	if v.IsSet("build.patterns") {
		config.Build.Patterns = splitList(v.GetStringSlice("build.patterns"))
	}
	if len(config.Build.Patterns) == 0 {
		config.Build.Patterns = append([]string(nil), build.DefaultPatterns...)
	}
	config.Components.Extension = strings.TrimSpace(config.Components.Extension)
	config.Build.FailurePolicy = strings.ToLower(strings.TrimSpace(config.Build.FailurePolicy))

	return &config, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

// Policy returns the configured failure policy.
func (c *Config) Policy() build.FailurePolicy {
	p, _ := build.ParseFailurePolicy(c.Build.FailurePolicy)

	return p
}

// EngineOptions maps the configuration onto engine options.
func (c *Config) EngineOptions(logger logging.Logger) engine.Options {
	return engine.Options{
		ComponentsFolder: c.Components.Folder,
		AttrNodePrefix:   c.Components.AttrNodePrefix,
		TemplateExt:      c.Components.Extension,
		XMLMode:          c.Build.XMLMode,
		MaxDepth:         c.Build.MaxDepth,
		Logger:           logger,
	}
}

// ProcessorOptions maps the configuration onto build options. The components
// folder is always excluded from directory walks.
func (c *Config) ProcessorOptions(logger logging.Logger) build.Options {
	opts := build.Options{
		Workers: c.Build.Workers,
		Policy:  c.Policy(),
		Exclude: []string{c.Components.Folder},
		Logger:  logger,
	}
	if c.Build.CacheSize > 0 {
		opts.Cache = build.NewOutputCache(c.Build.CacheSize)
	}

	return opts
}

// LoggerConfig builds the logger configuration for output w.
func (c *Config) LoggerConfig(w io.Writer) (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "log.level")
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.Log.Format
	if w != nil {
		cfg.Output = w
	}

	return cfg, nil
}

// Address returns host:port for the preview server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Serve.Host, c.Serve.Port)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	checks := []struct {
		field string
		err   error
	}{
		{"components", validateComponentsConfig(&config.Components)},
		{"build", validateBuildConfig(&config.Build)},
		{"watch", validateWatchConfig(&config.Watch)},
		{"serve", validateServeConfig(&config.Serve)},
		{"log", validateLogConfig(&config.Log)},
	}
	for _, check := range checks {
		if check.err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid configuration: %s config: %v", check.field, check.err))
		}
	}

	return nil
}

func validateComponentsConfig(config *ComponentsConfig) error {
	if err := validation.ValidatePath(config.Folder); err != nil {
		return fmt.Errorf("folder: %w", err)
	}
	if strings.TrimSpace(config.AttrNodePrefix) == "" {
		return fmt.Errorf("attr_node_prefix cannot be empty")
	}
	if err := validation.ValidateExtension(config.Extension); err != nil {
		return err
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	if err := validation.ValidatePath(config.Src); err != nil {
		return fmt.Errorf("src: %w", err)
	}
	if err := validation.ValidatePath(config.Dest); err != nil {
		return fmt.Errorf("dest: %w", err)
	}
	if config.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", config.Workers)
	}
	if config.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1, got %d", config.MaxDepth)
	}
	if config.CacheSize < 0 {
		return fmt.Errorf("cache_size cannot be negative, got %d", config.CacheSize)
	}
	if _, err := build.ParseFailurePolicy(config.FailurePolicy); err != nil {
		return err
	}

	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", config.Debounce)
	}

	return nil
}

// validateServeConfig allows port 0 so tests can ask for a free port.
func validateServeConfig(config *ServeConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			return fmt.Errorf("host: %w", err)
		}
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	if config.Format != "text" && config.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", config.Format)
	}

	return nil
}

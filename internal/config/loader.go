package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// loggerKey is used to store the logger in a command context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// flagKeys maps flag names whose config key is not the snake_case form of
// the flag name.
var flagKeys = map[string]string{
	"state":        "state_path",
	"strict":       "analysis.strict",
	"pass":         "analysis.passes",
	"workers":      "propagation.workers",
	"plan-timeout": "propagation.plan_timeout",
	"planner":      "planner.kind",
	"postgres-dsn": "introspect.postgres_dsn",
	"external":     "external_tables",
	"addr":         "serve.addr",
}

// FlagKey returns the config key set by the flag called name.
func FlagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// EnvVar returns the environment variable that sets key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// findConfigFile finds the config file to use.
// Priority: explicit path > leapcheck.yaml > leapcheck.yml in dir
func findConfigFile(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func configExistsIn(dir string) bool {
	return findConfigFile("", dir) != ""
}

// FindProjectRoot searches upward from startDir for a leapcheck config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Explicit --project-dir flag
//  2. Directory of an explicit config file
//  3. Infer from --models-dir (parent if contains config or named "models")
//  4. Search upward from CWD for leapcheck.yaml
//  5. Current working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if flags != nil {
		if dir, _ := flags.GetString("project-dir"); dir != "" && flags.Changed("project-dir") {
			return absOrClean(dir)
		}
	}

	if cfgFile != "" {
		return filepath.Dir(absOrClean(cfgFile))
	}

	if flags != nil {
		if modelsDir, _ := flags.GetString("models-dir"); modelsDir != "" && flags.Changed("models-dir") {
			absModels := absOrClean(modelsDir)
			parent := filepath.Dir(absModels)
			if configExistsIn(parent) || filepath.Base(absModels) == DefaultModelsDir {
				return parent
			}
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		return "."
	}
	if root := FindProjectRoot(cwd); root != "" {
		return root
	}
	return cwd
}

func absOrClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags. Precedence (highest to lowest): flags > env vars >
// config file > defaults. Only flags that were explicitly set are read.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	projectRoot := inferProjectRoot(cfgFile, flags)

	// Paths given as flags are relative to the working directory, not the
	// project root.
	flagPaths := make(map[string]string)
	if flags != nil {
		for _, name := range []string{"models-dir", "sources-dir", "state"} {
			if f := flags.Lookup(name); f != nil && f.Changed && f.Value.String() != "" {
				flagPaths[name] = absOrClean(f.Value.String())
			}
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile, projectRoot)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment: LEAPCHECK_MODELS_DIR -> models_dir,
	// LEAPCHECK_ANALYSIS__STRICT -> analysis.strict
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return FlagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				severityHook,
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectDir = projectRoot
	cfg.ModelsDir = pathFrom(flagPaths["models-dir"], cfg.ModelsDir, projectRoot)
	cfg.SourcesDir = pathFrom(flagPaths["sources-dir"], cfg.SourcesDir, projectRoot)
	cfg.StatePath = pathFrom(flagPaths["state"], cfg.StatePath, projectRoot)
	cfg.Introspect.PostgresDSN = expandEnvVars(cfg.Introspect.PostgresDSN)
	cfg.Analysis.SeverityOverrides = normalizeCodes(cfg.Analysis.SeverityOverrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

func pathFrom(flagValue, value, root string) string {
	if flagValue != "" {
		return flagValue
	}
	return resolvePathRelativeTo(value, root)
}

// severityHook decodes severity names into core.Severity values.
func severityHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(core.Severity(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	s, ok := core.ParseSeverity(reflect.ValueOf(data).String())
	if !ok {
		return nil, fmt.Errorf("invalid severity %q (want error, warning, info, hint or off)", data)
	}
	return s, nil
}

// normalizeCodes upper-cases override codes; environment keys arrive in
// lower case.
func normalizeCodes(in map[string]core.Severity) map[string]core.Severity {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]core.Severity, len(in))
	for code, sev := range in {
		out[strings.ToUpper(strings.TrimSpace(code))] = sev
	}
	return out
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the most recently loaded configuration, or nil.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}
